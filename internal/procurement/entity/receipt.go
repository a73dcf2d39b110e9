package entity

import "time"

// Receipt 收货单（GRN），一张PO至多一张收货单
type Receipt struct {
	ID          string `json:"id" gorm:"primaryKey;size:32"`
	ReceiptCode string `json:"receipt_code" gorm:"size:32;uniqueIndex;not null"`
	POID        string `json:"po_id" gorm:"size:32;not null;uniqueIndex"`
	SupplierID  string `json:"supplier_id" gorm:"size:32;index"`

	// 质检结论由各行通过率聚合推导，不独立手填
	QualityStatus string  `json:"quality_status" gorm:"size:20;not null"` // qualified/defective/rejected
	PassRate      float64 `json:"pass_rate" gorm:"type:decimal(5,2)"`

	// 库存同步结果（外部系统，失败不回滚收货事实）
	InventorySyncStatus string     `json:"inventory_sync_status" gorm:"size:20;default:pending"` // success/skipped/pending/timeout/error
	InventorySyncError  string     `json:"inventory_sync_error" gorm:"size:500"`
	InventorySyncedAt   *time.Time `json:"inventory_synced_at"`

	ReceivedBy string    `json:"received_by" gorm:"size:32"`
	ReceivedAt time.Time `json:"received_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Notes      string    `json:"notes" gorm:"type:text"`

	// 关联
	Items []ReceiptItem `json:"items,omitempty" gorm:"foreignKey:ReceiptID"`
}

func (Receipt) TableName() string {
	return "proc_receipts"
}

// 质检结论
const (
	QualityQualified = "qualified"
	QualityDefective = "defective"
	QualityRejected  = "rejected"
)

// 库存同步状态
const (
	InventorySyncSuccess = "success"
	InventorySyncSkipped = "skipped"
	InventorySyncPending = "pending"
	InventorySyncTimeout = "timeout"
	InventorySyncError   = "error"
)

// DeriveQualityStatus 按总体通过率推导质检结论
// 100%合格，80%以上让步接收，低于80%整单拒收
func DeriveQualityStatus(passRate float64) string {
	switch {
	case passRate >= 100:
		return QualityQualified
	case passRate >= 80:
		return QualityDefective
	default:
		return QualityRejected
	}
}

// ReceiptItem 收货行项，约束 accepted + rejected == delivered
type ReceiptItem struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	ReceiptID string `json:"receipt_id" gorm:"size:32;not null;index"`

	MaterialCode string `json:"material_code" gorm:"size:50"`
	MaterialName string `json:"material_name" gorm:"size:200;not null"`

	OrderedQty   float64 `json:"ordered_qty" gorm:"type:decimal(10,2)"`
	DeliveredQty float64 `json:"delivered_qty" gorm:"type:decimal(10,2);not null"`
	AcceptedQty  float64 `json:"accepted_qty" gorm:"type:decimal(10,2);not null"`
	RejectedQty  float64 `json:"rejected_qty" gorm:"type:decimal(10,2);not null"`
	PassRate     float64 `json:"pass_rate" gorm:"type:decimal(5,2)"`

	SortOrder int       `json:"sort_order" gorm:"default:0"`
	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

func (ReceiptItem) TableName() string {
	return "proc_receipt_items"
}
