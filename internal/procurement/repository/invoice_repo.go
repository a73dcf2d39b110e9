package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"gorm.io/gorm"
)

// InvoiceRepository 发票仓库
type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// FindAll 查询发票列表
func (r *InvoiceRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Invoice, int64, error) {
	var items []entity.Invoice
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Invoice{})

	if supplierID := filters["supplier_id"]; supplierID != "" {
		query = query.Where("supplier_id = ?", supplierID)
	}
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if settlementType := filters["settlement_type"]; settlementType != "" {
		query = query.Where("settlement_type = ?", settlementType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Supplier").
		Preload("POLinks").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找发票（含PO关联）
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*entity.Invoice, error) {
	var inv entity.Invoice
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Preload("POLinks").
		Where("id = ?", id).
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// CreateWithLinks 创建发票及PO关联（同一事务）
func (r *InvoiceRepository) CreateWithLinks(ctx context.Context, inv *entity.Invoice, links []entity.InvoicePOLink) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(inv).Error; err != nil {
			return err
		}
		if len(links) > 0 {
			if err := tx.Create(&links).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Update 更新发票
func (r *InvoiceRepository) Update(ctx context.Context, inv *entity.Invoice) error {
	return r.db.WithContext(ctx).Save(inv).Error
}

// TransitionStatus 带状态前置条件的更新，返回是否命中
func (r *InvoiceRepository) TransitionStatus(ctx context.Context, id, expected string, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.Invoice{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// HasApprovedInvoice 订单是否已有核准发票（按单发票或月结挂接均算）
func (r *InvoiceRepository) HasApprovedInvoice(ctx context.Context, poID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Invoice{}).
		Where("settlement_type = ? AND po_id = ? AND status = ?",
			entity.SettlementPerOrder, poID, entity.InvoiceStatusApproved).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}

	err = r.db.WithContext(ctx).Model(&entity.InvoicePOLink{}).
		Joins("JOIN proc_invoices ON proc_invoices.id = proc_invoice_po_links.invoice_id").
		Where("proc_invoice_po_links.po_id = ? AND proc_invoices.status = ?",
			poID, entity.InvoiceStatusApproved).
		Count(&count).Error
	return count > 0, err
}

// TotalPOAmount 月结发票关联PO金额合计
// 有显式拆分金额用拆分值，否则取PO总价
func (r *InvoiceRepository) TotalPOAmount(ctx context.Context, invoiceID string) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(COALESCE(l.po_amount, p.total_price)), 0)
		FROM proc_invoice_po_links l
		JOIN proc_purchase_orders p ON p.id = l.po_id
		WHERE l.invoice_id = ?`, invoiceID).Scan(&total).Error
	return total, err
}

// ExpireOverdue 将逾期未处理的发票置为expired，返回处理条数
func (r *InvoiceRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&entity.Invoice{}).
		Where("status = ? AND due_date IS NOT NULL AND due_date < ?", entity.InvoiceStatusPending, now).
		Updates(map[string]interface{}{"status": entity.InvoiceStatusExpired, "expired_at": now})
	return res.RowsAffected, res.Error
}

// GenerateCode 生成发票编码 INV-{year}-{4位}
func (r *InvoiceRepository) GenerateCode(ctx context.Context) (string, error) {
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("INV-%s-", year)

	var maxCode string
	err := r.db.WithContext(ctx).
		Model(&entity.Invoice{}).
		Select("COALESCE(MAX(invoice_code), '')").
		Where("invoice_code LIKE ?", prefix+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, "INV-"+year+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("INV-%s-%04d", year, seq), nil
}
