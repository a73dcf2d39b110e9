package service

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/repository"
	"github.com/zp184764679/jzc-systems-sub003/internal/shared/notify"
)

// =============================================================================
// NotificationService — 询价通知调度器
// 按next_retry_at轮询到期任务投递，失败指数退避，超过上限转人工跟进。
// 单个任务失败不影响同批其他任务。
// =============================================================================

const (
	notifySweepLockKey = "proc:lock:notify_sweep"
	notifySweepLockTTL = 50 * time.Second
	notifySweepBatch   = 100
)

// NotifyChannel 消息通道接口
type NotifyChannel interface {
	SendQuoteInvite(ctx context.Context, recipient string, msg *notify.QuoteInviteMessage) error
}

// NotificationService 通知调度服务
type NotificationService struct {
	notifyRepo   *repository.NotificationRepository
	rfqRepo      *repository.RFQRepository
	supplierRepo *repository.SupplierRepository

	channel     NotifyChannel
	redisClient *redis.Client

	maxRetries  int
	backoffBase time.Duration
}

// NewNotificationService 创建通知调度服务
func NewNotificationService(repos *repository.Repositories, maxRetries int, backoffBase time.Duration) *NotificationService {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if backoffBase <= 0 {
		backoffBase = 5 * time.Minute
	}
	return &NotificationService{
		notifyRepo:   repos.Notification,
		rfqRepo:      repos.RFQ,
		supplierRepo: repos.Supplier,
		maxRetries:   maxRetries,
		backoffBase:  backoffBase,
	}
}

// SetChannel 注入消息通道客户端
func (s *NotificationService) SetChannel(c NotifyChannel) {
	s.channel = c
}

// SetRedisClient 注入redis客户端（多实例部署时互斥扫描）
func (s *NotificationService) SetRedisClient(client *redis.Client) {
	s.redisClient = client
}

// NextRetryDelay 第n次重试的退避间隔 base * 2^n
func (s *NotificationService) NextRetryDelay(retryCount int) time.Duration {
	delay := s.backoffBase
	for i := 0; i < retryCount; i++ {
		delay *= 2
	}
	return delay
}

// Sweep 扫描到期通知任务并投递，返回处理条数
// redis锁保证同一时刻只有一个实例在扫描，拿不到锁直接返回
func (s *NotificationService) Sweep(ctx context.Context) (int, error) {
	if s.redisClient != nil {
		token, ok := acquireSweepLock(ctx, s.redisClient, notifySweepLockKey, notifySweepLockTTL)
		if !ok {
			return 0, nil
		}
		defer releaseSweepLock(ctx, s.redisClient, notifySweepLockKey, token)
	}

	tasks, err := s.notifyRepo.FindDue(ctx, time.Now(), notifySweepBatch)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range tasks {
		// 单任务失败只影响自身的重试计划
		s.deliverTask(ctx, &tasks[i])
		processed++
	}
	return processed, nil
}

// deliverTask 投递单个通知任务
func (s *NotificationService) deliverTask(ctx context.Context, task *entity.RFQNotificationTask) {
	err := s.sendInvite(ctx, task)
	if err == nil {
		if _, err := s.notifyRepo.MarkSent(ctx, task.ID); err != nil {
			log.Printf("[PROC] 通知任务 %s 标记成功失败: %v", task.ID, err)
		}
		return
	}

	nextRetry := task.RetryCount + 1
	if nextRetry >= s.maxRetries {
		if markErr := s.notifyRepo.MarkFailed(ctx, task.ID, err.Error()); markErr != nil {
			log.Printf("[PROC] 通知任务 %s 标记失败失败: %v", task.ID, markErr)
		}
		log.Printf("[PROC] 通知任务 %s 超过重试上限(%d)转人工: %v", task.ID, s.maxRetries, err)
		return
	}

	nextAt := time.Now().Add(s.NextRetryDelay(task.RetryCount))
	if markErr := s.notifyRepo.MarkRetry(ctx, task.ID, nextRetry, nextAt, err.Error()); markErr != nil {
		log.Printf("[PROC] 通知任务 %s 记录重试失败: %v", task.ID, markErr)
	}
}

// sendInvite 组装并发送询价邀请
func (s *NotificationService) sendInvite(ctx context.Context, task *entity.RFQNotificationTask) error {
	if s.channel == nil {
		return NewValidationError("消息通道未配置")
	}

	rfq, err := s.rfqRepo.FindByID(ctx, task.RFQID)
	if err != nil {
		return err
	}
	supplier, err := s.supplierRepo.FindByID(ctx, task.SupplierID)
	if err != nil {
		return err
	}

	return s.channel.SendQuoteInvite(ctx, supplier.ContactEmail, &notify.QuoteInviteMessage{
		RFQCode:      rfq.RFQCode,
		ItemCount:    len(rfq.Items),
		Deadline:     rfq.Deadline,
		ContactEmail: supplier.ContactEmail,
	})
}

// ListFailedTasks 永久失败任务列表（人工跟进）
func (s *NotificationService) ListFailedTasks(ctx context.Context, page, pageSize int) ([]entity.RFQNotificationTask, int64, error) {
	return s.notifyRepo.FindFailed(ctx, page, pageSize)
}
