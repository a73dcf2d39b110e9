package entity

import "time"

// RFQNotificationTask 供应商询价通知任务
// 仅在未成功且未永久失败期间存在于待处理集合，按next_retry_at指数退避重试。
type RFQNotificationTask struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	RFQID      string `json:"rfq_id" gorm:"size:32;not null;index"`
	SupplierID string `json:"supplier_id" gorm:"size:32;not null"`
	Status     string `json:"status" gorm:"size:20;default:pending;index"`

	RetryCount  int        `json:"retry_count" gorm:"default:0"`
	NextRetryAt time.Time  `json:"next_retry_at" gorm:"index;not null"`
	LastError   string     `json:"last_error" gorm:"size:500"`
	SentAt      *time.Time `json:"sent_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RFQNotificationTask) TableName() string {
	return "proc_rfq_notification_tasks"
}

// 通知任务状态
const (
	NotifyStatusPending = "pending"
	NotifyStatusSent    = "sent"
	NotifyStatusFailed  = "failed" // 超过最大重试次数，转人工跟进
)
