package entity

import "time"

// Invoice 发票
// settlement_type为per_order时po_id必填且唯一对应一张PO；
// monthly时po_id为空，通过InvoicePOLink挂接多张PO。
type Invoice struct {
	ID          string  `json:"id" gorm:"primaryKey;size:32"`
	InvoiceCode string  `json:"invoice_code" gorm:"size:32;uniqueIndex;not null"`
	SupplierID  string  `json:"supplier_id" gorm:"size:32;not null;index"`
	SettlementType string `json:"settlement_type" gorm:"size:20;not null"` // per_order/monthly
	POID        *string `json:"po_id" gorm:"size:32;index"`
	Status      string  `json:"status" gorm:"size:20;default:pending;index"`

	Amount           float64 `json:"amount" gorm:"type:decimal(15,2);not null"`
	Currency         string  `json:"currency" gorm:"size:10;default:CNY"`
	SettlementPeriod string  `json:"settlement_period" gorm:"size:7"` // YYYY-MM，仅作展示元数据

	DueDate      *time.Time `json:"due_date"`
	ApprovedBy   *string    `json:"approved_by" gorm:"size:32"`
	ApprovedAt   *time.Time `json:"approved_at"`
	RejectReason string     `json:"reject_reason" gorm:"size:500"`
	ExpiredAt    *time.Time `json:"expired_at"`

	FileURL   string    `json:"file_url" gorm:"size:500"`
	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Notes     string    `json:"notes" gorm:"type:text"`

	// 关联
	Supplier *Supplier       `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
	POLinks  []InvoicePOLink `json:"po_links,omitempty" gorm:"foreignKey:InvoiceID"`
}

func (Invoice) TableName() string {
	return "proc_invoices"
}

// 结算类型
const (
	SettlementPerOrder = "per_order"
	SettlementMonthly  = "monthly"
)

// 发票状态
const (
	InvoiceStatusPending  = "pending"
	InvoiceStatusApproved = "approved"
	InvoiceStatusRejected = "rejected"
	InvoiceStatusExpired  = "expired"
)

// InvoicePOLink 月结发票与PO关联表
// 生命周期跟随发票，删除仅从发票侧级联；po_amount可选，用于显式拆分金额。
type InvoicePOLink struct {
	ID        string   `json:"id" gorm:"primaryKey;size:32"`
	InvoiceID string   `json:"invoice_id" gorm:"size:32;not null;uniqueIndex:uniq_invoice_po"`
	POID      string   `json:"po_id" gorm:"size:32;not null;uniqueIndex:uniq_invoice_po"`
	POAmount  *float64 `json:"po_amount" gorm:"type:decimal(15,2)"`
	CreatedAt time.Time `json:"created_at"`
}

func (InvoicePOLink) TableName() string {
	return "proc_invoice_po_links"
}
