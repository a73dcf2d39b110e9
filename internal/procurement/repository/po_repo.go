package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"gorm.io/gorm"
)

// PORepository 采购订单仓库
type PORepository struct {
	db *gorm.DB
}

func NewPORepository(db *gorm.DB) *PORepository {
	return &PORepository{db: db}
}

// FindAll 查询采购订单列表
func (r *PORepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseOrder, int64, error) {
	var items []entity.PurchaseOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{})

	if supplierID := filters["supplier_id"]; supplierID != "" {
		query = query.Where("supplier_id = ?", supplierID)
	}
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("po_number ILIKE ?", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Supplier").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找采购订单
func (r *PORepository) FindByID(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	var po entity.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Where("id = ?", id).
		First(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &po, nil
}

// Create 创建采购订单
func (r *PORepository) Create(ctx context.Context, po *entity.PurchaseOrder) error {
	return r.db.WithContext(ctx).Create(po).Error
}

// Update 更新采购订单
func (r *PORepository) Update(ctx context.Context, po *entity.PurchaseOrder) error {
	return r.db.WithContext(ctx).Save(po).Error
}

// TransitionStatus 带状态前置条件的更新，返回是否命中
func (r *PORepository) TransitionStatus(ctx context.Context, id, expected string, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// NextPONumber 生成订单号 PO-{YYYYMMDD}-{5位}
// 当日序列通过计数行upsert自增取得，由行锁串行化，并发创建不会重号。
func (r *PORepository) NextPONumber(ctx context.Context) (string, error) {
	date := time.Now().Format("20060102")

	var seq int
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO proc_po_number_seqs (seq_date, seq) VALUES (?, 1)
		ON CONFLICT (seq_date) DO UPDATE SET seq = proc_po_number_seqs.seq + 1
		RETURNING seq`, date).Scan(&seq).Error
	if err != nil {
		return "", fmt.Errorf("获取当日订单序列失败: %w", err)
	}

	return fmt.Sprintf("PO-%s-%05d", date, seq), nil
}

// FindPendingReceipt 待收货订单：已确认、发票已核准、尚无收货单
func (r *PORepository) FindPendingReceipt(ctx context.Context, page, pageSize int) ([]entity.PurchaseOrder, int64, error) {
	var items []entity.PurchaseOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{}).
		Where("status = ?", entity.POStatusConfirmed).
		Where("id NOT IN (?)", r.db.Model(&entity.Receipt{}).Select("po_id")).
		Where(`id IN (?) OR id IN (?)`,
			r.db.Model(&entity.Invoice{}).Select("po_id").
				Where("settlement_type = ? AND status = ?", entity.SettlementPerOrder, entity.InvoiceStatusApproved),
			r.db.Model(&entity.InvoicePOLink{}).Select("proc_invoice_po_links.po_id").
				Joins("JOIN proc_invoices ON proc_invoices.id = proc_invoice_po_links.invoice_id").
				Where("proc_invoices.status = ?", entity.InvoiceStatusApproved),
		)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Supplier").
		Order("created_at ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindBySupplier 查询供应商的全量订单历史（评分用，不过滤状态）
func (r *PORepository) FindBySupplier(ctx context.Context, supplierID string) ([]entity.PurchaseOrder, error) {
	var pos []entity.PurchaseOrder
	err := r.db.WithContext(ctx).
		Where("supplier_id = ?", supplierID).
		Find(&pos).Error
	return pos, err
}
