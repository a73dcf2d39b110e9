package entity

import (
	"encoding/json"
	"time"
)

// PurchaseOrder 采购订单（由一条已接受报价生成）
type PurchaseOrder struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	PONumber   string `json:"po_number" gorm:"size:32;uniqueIndex;not null"` // PO-YYYYMMDD-NNNNN
	SupplierID string `json:"supplier_id" gorm:"size:32;not null;index"`
	QuoteID    string `json:"quote_id" gorm:"size:32;not null;uniqueIndex"`
	RFQID      string `json:"rfq_id" gorm:"size:32;index"`
	PRID       string `json:"pr_id" gorm:"size:32;index"`
	Status     string `json:"status" gorm:"size:40;default:created;index"`

	// 接受时的报价快照，后续报价变更不影响已下达订单
	QuoteSnapshot json.RawMessage `json:"quote_snapshot" gorm:"type:jsonb"`

	TotalPrice   float64 `json:"total_price" gorm:"type:decimal(15,2);not null"`
	Currency     string  `json:"currency" gorm:"size:10;default:CNY"`
	LeadTimeDays int     `json:"lead_time_days"`
	PaymentTerms string  `json:"payment_terms" gorm:"size:100"`

	// 两级确认审计字段
	AdminConfirmedBy       *string    `json:"admin_confirmed_by" gorm:"size:32"`
	AdminConfirmedAt       *time.Time `json:"admin_confirmed_at"`
	AdminConfirmNote       string     `json:"admin_confirm_note" gorm:"size:500"`
	SuperAdminConfirmedBy  *string    `json:"super_admin_confirmed_by" gorm:"size:32"`
	SuperAdminConfirmedAt  *time.Time `json:"super_admin_confirmed_at"`
	SuperAdminConfirmNote  string     `json:"super_admin_confirm_note" gorm:"size:500"`
	ConfirmedAt            *time.Time `json:"confirmed_at"`

	// 发票
	InvoiceDueDate  *time.Time `json:"invoice_due_date"`
	InvoiceUploaded bool       `json:"invoice_uploaded" gorm:"default:false"`
	InvoiceURL      string     `json:"invoice_url" gorm:"size:500"`

	CompletedAt *time.Time `json:"completed_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
	CancelReason string    `json:"cancel_reason" gorm:"size:500"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Notes     string    `json:"notes" gorm:"type:text"`

	// 关联
	Supplier *Supplier `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
}

func (PurchaseOrder) TableName() string {
	return "proc_purchase_orders"
}

// PO状态
const (
	POStatusCreated             = "created"
	POStatusPendingAdminConfirm = "pending_admin_confirmation"
	POStatusPendingSuperConfirm = "pending_super_admin_confirmation"
	POStatusConfirmed           = "confirmed"
	POStatusReceived            = "received"
	POStatusCompleted           = "completed"
	POStatusCancelled           = "cancelled"
)

// CanCancelPO 收货前任意状态可取消
func CanCancelPO(status string) bool {
	switch status {
	case POStatusCreated, POStatusPendingAdminConfirm, POStatusPendingSuperConfirm, POStatusConfirmed:
		return true
	}
	return false
}

// PONumberSeq 订单号当日序列计数器
// count-then-insert在并发下会产生重号，改为对计数行做upsert自增，由行锁串行化。
type PONumberSeq struct {
	SeqDate string `json:"seq_date" gorm:"primaryKey;size:8"` // YYYYMMDD
	Seq     int    `json:"seq" gorm:"not null;default:0"`
}

func (PONumberSeq) TableName() string {
	return "proc_po_number_seqs"
}
