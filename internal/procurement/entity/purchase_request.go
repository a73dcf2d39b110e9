package entity

import "time"

// PurchaseRequest 采购申请单
type PurchaseRequest struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	PRCode     string `json:"pr_code" gorm:"size:32;uniqueIndex;not null"`
	Title      string `json:"title" gorm:"size:200;not null"`
	Department string `json:"department" gorm:"size:100"`
	Status     string `json:"status" gorm:"size:30;default:draft;index"`

	// 金额（定价环节填写后计算）
	TotalAmount *float64 `json:"total_amount" gorm:"type:decimal(15,2)"`
	Currency    string   `json:"currency" gorm:"size:10;default:CNY"`

	// 审批记录
	SubmittedAt          *time.Time `json:"submitted_at"`
	SupervisorApprovedBy *string    `json:"supervisor_approved_by" gorm:"size:32"`
	SupervisorApprovedAt *time.Time `json:"supervisor_approved_at"`
	AdminApprovedBy      *string    `json:"admin_approved_by" gorm:"size:32"`
	AdminApprovedAt      *time.Time `json:"admin_approved_at"`
	SuperAdminApprovedBy *string    `json:"super_admin_approved_by" gorm:"size:32"`
	SuperAdminApprovedAt *time.Time `json:"super_admin_approved_at"`
	ApprovalNote         string     `json:"approval_note" gorm:"size:500"` // 自动审批原因等审计说明
	RejectReason         string     `json:"reject_reason" gorm:"size:500"`

	// 管理
	RequestedBy string    `json:"requested_by" gorm:"size:32;not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Notes       string    `json:"notes" gorm:"type:text"`

	// 关联
	Items []PRItem `json:"items,omitempty" gorm:"foreignKey:PRID"`
}

func (PurchaseRequest) TableName() string {
	return "proc_purchase_requests"
}

// PR状态
const (
	PRStatusDraft              = "draft"
	PRStatusSubmitted          = "submitted"
	PRStatusSupervisorApproved = "supervisor_approved"
	PRStatusPendingSuperAdmin  = "pending_super_admin"
	PRStatusApproved           = "approved"
	PRStatusRejected           = "rejected"
	PRStatusCancelled          = "cancelled"
)

// IsTerminalPRStatus 终态PR不允许再变更
func IsTerminalPRStatus(status string) bool {
	switch status {
	case PRStatusApproved, PRStatusRejected, PRStatusCancelled:
		return true
	}
	return false
}

// PRItem 采购申请行项
type PRItem struct {
	ID   string `json:"id" gorm:"primaryKey;size:32"`
	PRID string `json:"pr_id" gorm:"size:32;not null;index"`

	// 物料信息
	MaterialName  string `json:"material_name" gorm:"size:200;not null"`
	Specification string `json:"specification" gorm:"size:500"`
	Category      string `json:"category" gorm:"size:100"` // 由外部分类服务给出
	Quantity      float64 `json:"quantity" gorm:"type:decimal(10,2);not null"`
	Unit          string  `json:"unit" gorm:"size:20;default:pcs"`

	// 定价（fill-price环节填写）
	UnitPrice   *float64 `json:"unit_price" gorm:"type:decimal(12,4)"`
	TotalAmount *float64 `json:"total_amount" gorm:"type:decimal(15,2)"`

	SortOrder int       `json:"sort_order" gorm:"default:0"`
	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PRItem) TableName() string {
	return "proc_pr_items"
}
