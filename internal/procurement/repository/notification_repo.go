package repository

import (
	"context"
	"errors"
	"time"

	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"gorm.io/gorm"
)

// NotificationRepository 询价通知任务仓库
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create 创建通知任务
func (r *NotificationRepository) Create(ctx context.Context, task *entity.RFQNotificationTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// FindByID 根据ID查找通知任务
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*entity.RFQNotificationTask, error) {
	var task entity.RFQNotificationTask
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// FindDue 查询到期待投递的任务
func (r *NotificationRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]entity.RFQNotificationTask, error) {
	var tasks []entity.RFQNotificationTask
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", entity.NotifyStatusPending, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

// MarkSent 标记投递成功，仅pending状态命中（终态任务重复处理是no-op）
func (r *NotificationRepository) MarkSent(ctx context.Context, id string) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&entity.RFQNotificationTask{}).
		Where("id = ? AND status = ?", id, entity.NotifyStatusPending).
		Updates(map[string]interface{}{"status": entity.NotifyStatusSent, "sent_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkRetry 投递失败，推进重试计数和下次重试时间
func (r *NotificationRepository) MarkRetry(ctx context.Context, id string, retryCount int, nextRetryAt time.Time, lastErr string) error {
	return r.db.WithContext(ctx).Model(&entity.RFQNotificationTask{}).
		Where("id = ? AND status = ?", id, entity.NotifyStatusPending).
		Updates(map[string]interface{}{
			"retry_count":   retryCount,
			"next_retry_at": nextRetryAt,
			"last_error":    lastErr,
		}).Error
}

// MarkFailed 超过重试上限，标记永久失败转人工
func (r *NotificationRepository) MarkFailed(ctx context.Context, id, lastErr string) error {
	return r.db.WithContext(ctx).Model(&entity.RFQNotificationTask{}).
		Where("id = ? AND status = ?", id, entity.NotifyStatusPending).
		Updates(map[string]interface{}{"status": entity.NotifyStatusFailed, "last_error": lastErr}).Error
}

// FindFailed 查询永久失败任务（人工跟进列表）
func (r *NotificationRepository) FindFailed(ctx context.Context, page, pageSize int) ([]entity.RFQNotificationTask, int64, error) {
	var tasks []entity.RFQNotificationTask
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.RFQNotificationTask{}).
		Where("status = ?", entity.NotifyStatusFailed)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("updated_at DESC").Offset(offset).Limit(pageSize).Find(&tasks).Error
	return tasks, total, err
}
