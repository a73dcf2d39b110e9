package entity

import "time"

// RFQ 询价单（由已批准PR一比一生成，不重复派生）
type RFQ struct {
	ID      string `json:"id" gorm:"primaryKey;size:32"`
	RFQCode string `json:"rfq_code" gorm:"size:32;uniqueIndex;not null"`
	PRID    string `json:"pr_id" gorm:"size:32;not null;uniqueIndex"`
	Status  string `json:"status" gorm:"size:20;default:open"` // open/quoting/closed

	// 分类任务（幂等：已分类的RFQ重跑是no-op）
	Classified   bool       `json:"classified" gorm:"default:false"`
	ClassifiedAt *time.Time `json:"classified_at"`

	Deadline  *time.Time `json:"deadline"`
	CreatedBy string     `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// 关联
	Items []RFQItem `json:"items,omitempty" gorm:"foreignKey:RFQID"`
}

func (RFQ) TableName() string {
	return "proc_rfqs"
}

// RFQ状态
const (
	RFQStatusOpen    = "open"
	RFQStatusQuoting = "quoting"
	RFQStatusClosed  = "closed"
)

// RFQItem 询价行项（与PR行项一比一，不按分类聚合）
type RFQItem struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	RFQID    string `json:"rfq_id" gorm:"size:32;not null;index"`
	PRItemID string `json:"pr_item_id" gorm:"size:32;not null"`

	MaterialName  string  `json:"material_name" gorm:"size:200;not null"`
	Specification string  `json:"specification" gorm:"size:500"`
	Quantity      float64 `json:"quantity" gorm:"type:decimal(10,2);not null"`
	Unit          string  `json:"unit" gorm:"size:20;default:pcs"`

	// 外部分类服务结果（存储不重算）
	Category       string   `json:"category" gorm:"size:100"`
	MajorCategory  string   `json:"major_category" gorm:"size:100"`
	MinorCategory  string   `json:"minor_category" gorm:"size:100"`
	CategorySource string   `json:"category_source" gorm:"size:20"` // ai/manual/rule
	CategoryScore  *float64 `json:"category_score" gorm:"type:decimal(5,4)"`

	SortOrder int       `json:"sort_order" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RFQItem) TableName() string {
	return "proc_rfq_items"
}
