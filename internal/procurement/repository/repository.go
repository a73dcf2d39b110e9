package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 采购仓库集合
type Repositories struct {
	Supplier     *SupplierRepository
	PR           *PRRepository
	RFQ          *RFQRepository
	Quote        *QuoteRepository
	PO           *PORepository
	Invoice      *InvoiceRepository
	Receipt      *ReceiptRepository
	Notification *NotificationRepository
}

// NewRepositories 创建采购仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Supplier:     NewSupplierRepository(db),
		PR:           NewPRRepository(db),
		RFQ:          NewRFQRepository(db),
		Quote:        NewQuoteRepository(db),
		PO:           NewPORepository(db),
		Invoice:      NewInvoiceRepository(db),
		Receipt:      NewReceiptRepository(db),
		Notification: NewNotificationRepository(db),
	}
}
