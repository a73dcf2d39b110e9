package repository

import (
	"context"
	"errors"

	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"gorm.io/gorm"
)

// QuoteRepository 供应商报价仓库
// (supplier_id, rfq_id, rfq_item_id)唯一约束由存储层强制，
// 并发邀请同一供应商同一行项只会成功一次。
type QuoteRepository struct {
	db *gorm.DB
}

func NewQuoteRepository(db *gorm.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

// CreateBatch 批量预置报价行（邀请供应商时调用，状态pending）
// 命中唯一索引返回gorm.ErrDuplicatedKey
func (r *QuoteRepository) CreateBatch(ctx context.Context, quotes []entity.SupplierQuote) error {
	if len(quotes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&quotes).Error
}

// FindByID 根据ID查找报价
func (r *QuoteRepository) FindByID(ctx context.Context, id string) (*entity.SupplierQuote, error) {
	var quote entity.SupplierQuote
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Where("id = ?", id).
		First(&quote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &quote, nil
}

// FindBySupplierAndItem 按唯一键查找报价行
func (r *QuoteRepository) FindBySupplierAndItem(ctx context.Context, supplierID, rfqID, rfqItemID string) (*entity.SupplierQuote, error) {
	var quote entity.SupplierQuote
	err := r.db.WithContext(ctx).
		Where("supplier_id = ? AND rfq_id = ? AND rfq_item_id = ?", supplierID, rfqID, rfqItemID).
		First(&quote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &quote, nil
}

// FindByRFQ 查询询价单下全部报价
func (r *QuoteRepository) FindByRFQ(ctx context.Context, rfqID string) ([]entity.SupplierQuote, error) {
	var quotes []entity.SupplierQuote
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Where("rfq_id = ?", rfqID).
		Order("rfq_item_id ASC, total_price ASC NULLS LAST, responded_at ASC NULLS LAST").
		Find(&quotes).Error
	return quotes, err
}

// FindByItemRanked 同一行项的报价按价格升序排列，价格相同先响应者优先
func (r *QuoteRepository) FindByItemRanked(ctx context.Context, rfqItemID string) ([]entity.SupplierQuote, error) {
	var quotes []entity.SupplierQuote
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Where("rfq_item_id = ? AND status = ?", rfqItemID, entity.QuoteStatusReceived).
		Order("total_price ASC, responded_at ASC").
		Find(&quotes).Error
	return quotes, err
}

// SubmitResponse 供应商响应，仅更新pending状态的同一行，绝不另起新行
func (r *QuoteRepository) SubmitResponse(ctx context.Context, id string, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.SupplierQuote{}).
		Where("id = ? AND status = ?", id, entity.QuoteStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Update 更新报价
func (r *QuoteRepository) Update(ctx context.Context, quote *entity.SupplierQuote) error {
	return r.db.WithContext(ctx).Save(quote).Error
}

// FindBySupplier 查询供应商的全部已响应报价
func (r *QuoteRepository) FindBySupplier(ctx context.Context, supplierID string) ([]entity.SupplierQuote, error) {
	var quotes []entity.SupplierQuote
	err := r.db.WithContext(ctx).
		Where("supplier_id = ? AND status = ?", supplierID, entity.QuoteStatusReceived).
		Find(&quotes).Error
	return quotes, err
}
