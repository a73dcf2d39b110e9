package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"gorm.io/gorm"
)

// RFQRepository 询价单仓库
type RFQRepository struct {
	db *gorm.DB
}

func NewRFQRepository(db *gorm.DB) *RFQRepository {
	return &RFQRepository{db: db}
}

// FindAll 查询询价单列表
func (r *RFQRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.RFQ, int64, error) {
	var items []entity.RFQ
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.RFQ{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if prID := filters["pr_id"]; prID != "" {
		query = query.Where("pr_id = ?", prID)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("rfq_code ILIKE ?", "%"+search+"%")
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

// FindByID 根据ID查找询价单（含行项）
func (r *RFQRepository) FindByID(ctx context.Context, id string) (*entity.RFQ, error) {
	var rfq entity.RFQ
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("id = ?", id).
		First(&rfq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rfq, nil
}

// FindByPRID 根据PR查找询价单（防重复派生）
func (r *RFQRepository) FindByPRID(ctx context.Context, prID string) (*entity.RFQ, error) {
	var rfq entity.RFQ
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("pr_id = ?", prID).
		First(&rfq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rfq, nil
}

// Create 创建询价单
func (r *RFQRepository) Create(ctx context.Context, rfq *entity.RFQ) error {
	return r.db.WithContext(ctx).Create(rfq).Error
}

// Update 更新询价单
func (r *RFQRepository) Update(ctx context.Context, rfq *entity.RFQ) error {
	return r.db.WithContext(ctx).Save(rfq).Error
}

// UpdateItem 更新询价行项
func (r *RFQRepository) UpdateItem(ctx context.Context, item *entity.RFQItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// MarkClassified 标记分类完成（仅未分类时命中，保证幂等）
func (r *RFQRepository) MarkClassified(ctx context.Context, id string) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&entity.RFQ{}).
		Where("id = ? AND classified = false", id).
		Updates(map[string]interface{}{"classified": true, "classified_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GenerateCode 生成RFQ编码 RFQ-{year}-{4位}
func (r *RFQRepository) GenerateCode(ctx context.Context) (string, error) {
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("RFQ-%s-", year)

	var maxCode string
	err := r.db.WithContext(ctx).
		Model(&entity.RFQ{}).
		Select("COALESCE(MAX(rfq_code), '')").
		Where("rfq_code LIKE ?", prefix+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, "RFQ-"+year+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("RFQ-%s-%04d", year, seq), nil
}
