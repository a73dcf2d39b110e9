package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"gorm.io/gorm"
)

// PRRepository 采购申请仓库
type PRRepository struct {
	db *gorm.DB
}

func NewPRRepository(db *gorm.DB) *PRRepository {
	return &PRRepository{db: db}
}

// FindAll 查询采购申请列表
func (r *PRRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseRequest, int64, error) {
	var items []entity.PurchaseRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PurchaseRequest{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if dept := filters["department"]; dept != "" {
		query = query.Where("department = ?", dept)
	}
	if owner := filters["requested_by"]; owner != "" {
		query = query.Where("requested_by = ?", owner)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("title ILIKE ? OR pr_code ILIKE ?", "%"+search+"%", "%"+search+"%")
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

// FindByID 根据ID查找采购申请（含行项）
func (r *PRRepository) FindByID(ctx context.Context, id string) (*entity.PurchaseRequest, error) {
	var pr entity.PurchaseRequest
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("id = ?", id).
		First(&pr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &pr, nil
}

// Create 创建采购申请
func (r *PRRepository) Create(ctx context.Context, pr *entity.PurchaseRequest) error {
	return r.db.WithContext(ctx).Create(pr).Error
}

// Update 更新采购申请
func (r *PRRepository) Update(ctx context.Context, pr *entity.PurchaseRequest) error {
	return r.db.WithContext(ctx).Save(pr).Error
}

// TransitionStatus 带状态前置条件的更新，返回是否命中
// 并发冲突的转换只会有一个赢家，输家拿到false
func (r *PRRepository) TransitionStatus(ctx context.Context, id, expected string, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.PurchaseRequest{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateItem 更新PR行项
func (r *PRRepository) UpdateItem(ctx context.Context, item *entity.PRItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// GenerateCode 生成PR编码 PR-{year}-{4位}
func (r *PRRepository) GenerateCode(ctx context.Context) (string, error) {
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("PR-%s-", year)

	var maxCode string
	err := r.db.WithContext(ctx).
		Model(&entity.PurchaseRequest{}).
		Select("COALESCE(MAX(pr_code), '')").
		Where("pr_code LIKE ?", prefix+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, "PR-"+year+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("PR-%s-%04d", year, seq), nil
}
