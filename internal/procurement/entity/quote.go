package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// QuoteBreakdownEntry 报价明细条目
type QuoteBreakdownEntry struct {
	Item      string  `json:"item"`
	Spec      string  `json:"spec,omitempty"`
	UnitPrice float64 `json:"unit_price"`
	Amount    float64 `json:"amount"`
}

// QuoteBreakdown 报价明细列表（jsonb存储，保留逐项结构避免退化为不透明blob）
type QuoteBreakdown []QuoteBreakdownEntry

func (b QuoteBreakdown) Value() (driver.Value, error) {
	if b == nil {
		return nil, nil
	}
	return json.Marshal(b)
}

func (b *QuoteBreakdown) Scan(value interface{}) error {
	if value == nil {
		*b = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan QuoteBreakdown: %v", value)
	}
	return json.Unmarshal(bytes, b)
}

// SupplierQuote 供应商报价
// 唯一键为(supplier_id, rfq_id, rfq_item_id)，同一分类下不同行项必须各自独立成行。
// 早期按分类字符串分组导致同类物料报价被合并，该约束改到存储层后修复。
type SupplierQuote struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	SupplierID string `json:"supplier_id" gorm:"size:32;not null;uniqueIndex:uniq_quote_supplier_item"`
	RFQID      string `json:"rfq_id" gorm:"size:32;not null;uniqueIndex:uniq_quote_supplier_item;index"`
	RFQItemID  string `json:"rfq_item_id" gorm:"size:32;not null;uniqueIndex:uniq_quote_supplier_item"`
	Status     string `json:"status" gorm:"size:20;default:pending"` // pending/received/expired/withdrawn

	// 报价内容（供应商响应时填写）
	TotalPrice      *float64       `json:"total_price" gorm:"type:decimal(15,2)"`
	LeadTimeDays    *int           `json:"lead_time_days"`
	PaymentTerms    string         `json:"payment_terms" gorm:"size:100"`
	Breakdown       QuoteBreakdown `json:"breakdown" gorm:"type:jsonb"`
	RespondedAt     *time.Time     `json:"responded_at"`
	Accepted        bool           `json:"accepted" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Notes     string    `json:"notes" gorm:"type:text"`

	// 关联
	Supplier *Supplier `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
}

func (SupplierQuote) TableName() string {
	return "proc_supplier_quotes"
}

// 报价状态
const (
	QuoteStatusPending   = "pending"
	QuoteStatusReceived  = "received"
	QuoteStatusExpired   = "expired"
	QuoteStatusWithdrawn = "withdrawn"
)
