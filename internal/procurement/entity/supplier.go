package entity

import "time"

// Supplier 供应商
type Supplier struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	Code     string `json:"code" gorm:"size:32;uniqueIndex;not null"`
	Name     string `json:"name" gorm:"size:200;not null"`
	Category string `json:"category" gorm:"size:50"`
	Status   string `json:"status" gorm:"size:20;default:active"` // active/suspended/blacklisted

	// 联系方式
	ContactName  string `json:"contact_name" gorm:"size:100"`
	ContactPhone string `json:"contact_phone" gorm:"size:50"`
	ContactEmail string `json:"contact_email" gorm:"size:200"`

	// 付款信息
	PaymentTerms string `json:"payment_terms" gorm:"size:100"`
	TaxID        string `json:"tax_id" gorm:"size:50"`

	// 综合评分（批量任务重算，非独立实体）
	Rating           *float64   `json:"rating" gorm:"type:decimal(3,1)"`
	CompletionScore  *float64   `json:"completion_score" gorm:"type:decimal(4,2)"`
	ResponseScore    *float64   `json:"response_score" gorm:"type:decimal(4,2)"`
	DeliveryScore    *float64   `json:"delivery_score" gorm:"type:decimal(4,2)"`
	InvoiceScore     *float64   `json:"invoice_score" gorm:"type:decimal(4,2)"`
	PriceScore       *float64   `json:"price_score" gorm:"type:decimal(4,2)"`
	RatingComputedAt *time.Time `json:"rating_computed_at"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Notes     string    `json:"notes" gorm:"type:text"`
}

func (Supplier) TableName() string {
	return "proc_suppliers"
}

// 供应商状态
const (
	SupplierStatusActive      = "active"
	SupplierStatusSuspended   = "suspended"
	SupplierStatusBlacklisted = "blacklisted"
)
