package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"gorm.io/gorm"
)

// ReceiptRepository 收货单仓库
type ReceiptRepository struct {
	db *gorm.DB
}

func NewReceiptRepository(db *gorm.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// FindAll 查询收货单列表
func (r *ReceiptRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Receipt, int64, error) {
	var items []entity.Receipt
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Receipt{})

	if poID := filters["po_id"]; poID != "" {
		query = query.Where("po_id = ?", poID)
	}
	if supplierID := filters["supplier_id"]; supplierID != "" {
		query = query.Where("supplier_id = ?", supplierID)
	}
	if quality := filters["quality_status"]; quality != "" {
		query = query.Where("quality_status = ?", quality)
	}
	if sync := filters["inventory_sync_status"]; sync != "" {
		query = query.Where("inventory_sync_status = ?", sync)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Items").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找收货单（含行项）
func (r *ReceiptRepository) FindByID(ctx context.Context, id string) (*entity.Receipt, error) {
	var receipt entity.Receipt
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("id = ?", id).
		First(&receipt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &receipt, nil
}

// FindByPOID 根据PO查找收货单
func (r *ReceiptRepository) FindByPOID(ctx context.Context, poID string) (*entity.Receipt, error) {
	var receipt entity.Receipt
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("po_id = ?", poID).
		First(&receipt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &receipt, nil
}

// Create 创建收货单及行项（同一事务）
// po_id唯一索引兜底重复提交，命中返回gorm.ErrDuplicatedKey
func (r *ReceiptRepository) Create(ctx context.Context, receipt *entity.Receipt) error {
	return r.db.WithContext(ctx).Create(receipt).Error
}

// UpdateSyncStatus 更新库存同步结果
func (r *ReceiptRepository) UpdateSyncStatus(ctx context.Context, id, status, errMsg string) error {
	updates := map[string]interface{}{
		"inventory_sync_status": status,
		"inventory_sync_error":  errMsg,
	}
	if status == entity.InventorySyncSuccess || status == entity.InventorySyncSkipped {
		updates["inventory_synced_at"] = time.Now()
	}
	return r.db.WithContext(ctx).Model(&entity.Receipt{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// GenerateCode 生成收货单编码 GRN-{year}-{4位}
func (r *ReceiptRepository) GenerateCode(ctx context.Context) (string, error) {
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("GRN-%s-", year)

	var maxCode string
	err := r.db.WithContext(ctx).
		Model(&entity.Receipt{}).
		Select("COALESCE(MAX(receipt_code), '')").
		Where("receipt_code LIKE ?", prefix+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, "GRN-"+year+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("GRN-%s-%04d", year, seq), nil
}
