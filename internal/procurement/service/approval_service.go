package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/repository"
)

// =============================================================================
// ApprovalService — 审批链
// 采购申请(PR)三级审批与采购订单(PO)两级确认。
// 金额不超过阈值的申请在管理员环节自动通过，超过的升级到超级管理员。
// 所有状态转换使用条件更新做乐观并发控制，输家收到状态冲突错误。
// =============================================================================

// ApprovalService 审批服务
type ApprovalService struct {
	prRepo           *repository.PRRepository
	poRepo           *repository.PORepository
	threshold        float64 // 自动审批金额阈值（元）
	paymentTermsDays int     // 确认后开票账期（天）
}

// NewApprovalService 创建审批服务
func NewApprovalService(repos *repository.Repositories, autoApproveThreshold float64, paymentTermsDays int) *ApprovalService {
	if paymentTermsDays <= 0 {
		paymentTermsDays = 90
	}
	return &ApprovalService{
		prRepo:           repos.PR,
		poRepo:           repos.PO,
		threshold:        autoApproveThreshold,
		paymentTermsDays: paymentTermsDays,
	}
}

// === 请求结构 ===

// CreatePRRequest 创建采购申请请求
type CreatePRRequest struct {
	Title      string                `json:"title" binding:"required"`
	Department string                `json:"department"`
	Notes      string                `json:"notes"`
	Items      []CreatePRItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CreatePRItemRequest 创建采购申请行项请求
type CreatePRItemRequest struct {
	MaterialName  string  `json:"material_name" binding:"required"`
	Specification string  `json:"specification"`
	Quantity      float64 `json:"quantity" binding:"required,gt=0"`
	Unit          string  `json:"unit"`
	Notes         string  `json:"notes"`
}

// FillPricesRequest 定价请求
type FillPricesRequest struct {
	Items []FillPriceItemRequest `json:"items" binding:"required,min=1,dive"`
}

// FillPriceItemRequest 单行定价
type FillPriceItemRequest struct {
	ItemID    string  `json:"item_id" binding:"required"`
	UnitPrice float64 `json:"unit_price" binding:"required,gt=0"`
}

// RejectRequest 驳回请求
type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ConfirmPORequest 订单确认请求
type ConfirmPORequest struct {
	Note string `json:"note"`
}

// === 采购申请(PR) ===

// CreatePR 创建采购申请（草稿）
func (s *ApprovalService) CreatePR(ctx context.Context, userID string, req *CreatePRRequest) (*entity.PurchaseRequest, error) {
	code, err := s.prRepo.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成申请编码失败: %w", err)
	}

	pr := &entity.PurchaseRequest{
		ID:          uuid.New().String()[:32],
		PRCode:      code,
		Title:       req.Title,
		Department:  req.Department,
		Status:      entity.PRStatusDraft,
		RequestedBy: userID,
		Notes:       req.Notes,
	}
	for i, item := range req.Items {
		unit := item.Unit
		if unit == "" {
			unit = "pcs"
		}
		pr.Items = append(pr.Items, entity.PRItem{
			ID:            uuid.New().String()[:32],
			PRID:          pr.ID,
			MaterialName:  item.MaterialName,
			Specification: item.Specification,
			Quantity:      item.Quantity,
			Unit:          unit,
			SortOrder:     i,
			Notes:         item.Notes,
		})
	}

	if err := s.prRepo.Create(ctx, pr); err != nil {
		return nil, fmt.Errorf("创建采购申请失败: %w", err)
	}

	log.Printf("[PROC] 创建采购申请: %s (%d行)", pr.PRCode, len(pr.Items))
	return pr, nil
}

// SubmitPR 提交采购申请进入审批 draft -> submitted
func (s *ApprovalService) SubmitPR(ctx context.Context, id, userID string) (*entity.PurchaseRequest, error) {
	pr, err := s.prRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(pr.Items) == 0 {
		return nil, NewValidationError("申请单没有行项，不能提交")
	}

	now := time.Now()
	ok, err := s.prRepo.TransitionStatus(ctx, id, entity.PRStatusDraft, map[string]interface{}{
		"status":       entity.PRStatusSubmitted,
		"submitted_at": now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewStateConflict("采购申请", pr.PRCode, entity.PRStatusDraft, pr.Status)
	}

	return s.prRepo.FindByID(ctx, id)
}

// SupervisorApprove 主管审批 submitted -> supervisor_approved
func (s *ApprovalService) SupervisorApprove(ctx context.Context, id, userID string) (*entity.PurchaseRequest, error) {
	pr, err := s.prRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ok, err := s.prRepo.TransitionStatus(ctx, id, entity.PRStatusSubmitted, map[string]interface{}{
		"status":                 entity.PRStatusSupervisorApproved,
		"supervisor_approved_by": userID,
		"supervisor_approved_at": now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewStateConflict("采购申请", pr.PRCode, entity.PRStatusSubmitted, pr.Status)
	}

	return s.prRepo.FindByID(ctx, id)
}

// FillPrices 定价：主管审批后填写单价，计算行项金额与总额
// 只允许在supervisor_approved状态进行，进入管理员环节后价格冻结
func (s *ApprovalService) FillPrices(ctx context.Context, id string, req *FillPricesRequest) (*entity.PurchaseRequest, error) {
	pr, err := s.prRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pr.Status != entity.PRStatusSupervisorApproved {
		return nil, NewStateConflict("采购申请", pr.PRCode, entity.PRStatusSupervisorApproved, pr.Status)
	}

	priceByItem := make(map[string]float64, len(req.Items))
	for _, p := range req.Items {
		priceByItem[p.ItemID] = p.UnitPrice
	}

	var total float64
	for i := range pr.Items {
		price, has := priceByItem[pr.Items[i].ID]
		if !has {
			if pr.Items[i].UnitPrice == nil {
				return nil, NewValidationError("行项 %s 缺少定价", pr.Items[i].MaterialName)
			}
			price = *pr.Items[i].UnitPrice
		}
		amount := price * pr.Items[i].Quantity
		pr.Items[i].UnitPrice = &price
		pr.Items[i].TotalAmount = &amount
		total += amount

		if err := s.prRepo.UpdateItem(ctx, &pr.Items[i]); err != nil {
			return nil, fmt.Errorf("更新行项定价失败: %w", err)
		}
	}

	// 总额写回带状态守卫，避免与并发审批交错
	ok, err := s.prRepo.TransitionStatus(ctx, id, entity.PRStatusSupervisorApproved, map[string]interface{}{
		"total_amount": total,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewStateConflict("采购申请", pr.PRCode, entity.PRStatusSupervisorApproved, "")
	}

	log.Printf("[PROC] 申请定价完成: %s 总额 %.2f", pr.PRCode, total)
	return s.prRepo.FindByID(ctx, id)
}

// AdminApprove 管理员审批 supervisor_approved -> approved | pending_super_admin
// 定价后的总额不超过阈值直接通过并记录自动审批说明，超过的升级到超级管理员
func (s *ApprovalService) AdminApprove(ctx context.Context, id, userID string) (*entity.PurchaseRequest, error) {
	pr, err := s.prRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pr.TotalAmount == nil {
		return nil, NewValidationError("申请 %s 尚未定价，不能进入管理员审批", pr.PRCode)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"admin_approved_by": userID,
		"admin_approved_at": now,
	}
	if *pr.TotalAmount <= s.threshold {
		updates["status"] = entity.PRStatusApproved
		updates["approval_note"] = fmt.Sprintf("金额%.2f元未超过自动审批阈值%.2f元，管理员审批即终审", *pr.TotalAmount, s.threshold)
	} else {
		updates["status"] = entity.PRStatusPendingSuperAdmin
	}

	ok, err := s.prRepo.TransitionStatus(ctx, id, entity.PRStatusSupervisorApproved, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewStateConflict("采购申请", pr.PRCode, entity.PRStatusSupervisorApproved, pr.Status)
	}

	log.Printf("[PROC] 管理员审批: %s -> %s", pr.PRCode, updates["status"])
	return s.prRepo.FindByID(ctx, id)
}

// SuperAdminApprove 超级管理员终审 pending_super_admin -> approved
func (s *ApprovalService) SuperAdminApprove(ctx context.Context, id, userID string) (*entity.PurchaseRequest, error) {
	pr, err := s.prRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ok, err := s.prRepo.TransitionStatus(ctx, id, entity.PRStatusPendingSuperAdmin, map[string]interface{}{
		"status":                  entity.PRStatusApproved,
		"super_admin_approved_by": userID,
		"super_admin_approved_at": now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewStateConflict("采购申请", pr.PRCode, entity.PRStatusPendingSuperAdmin, pr.Status)
	}

	return s.prRepo.FindByID(ctx, id)
}

// RejectPR 驳回采购申请，任一审批环节可驳回，必须给出原因
func (s *ApprovalService) RejectPR(ctx context.Context, id, userID string, req *RejectRequest) (*entity.PurchaseRequest, error) {
	pr, err := s.prRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch pr.Status {
	case entity.PRStatusSubmitted, entity.PRStatusSupervisorApproved, entity.PRStatusPendingSuperAdmin:
	default:
		return nil, NewStateConflict("采购申请", pr.PRCode, "审批中状态", pr.Status)
	}

	ok, err := s.prRepo.TransitionStatus(ctx, id, pr.Status, map[string]interface{}{
		"status":        entity.PRStatusRejected,
		"reject_reason": req.Reason,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewStateConflict("采购申请", pr.PRCode, pr.Status, "")
	}

	log.Printf("[PROC] 申请被驳回: %s 原因: %s", pr.PRCode, req.Reason)
	return s.prRepo.FindByID(ctx, id)
}

// CancelPR 申请人撤销，终态前均可
func (s *ApprovalService) CancelPR(ctx context.Context, id, userID string) (*entity.PurchaseRequest, error) {
	pr, err := s.prRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pr.RequestedBy != userID {
		return nil, NewValidationError("只有申请人可以撤销申请")
	}
	if entity.IsTerminalPRStatus(pr.Status) {
		return nil, NewStateConflict("采购申请", pr.PRCode, "非终态", pr.Status)
	}

	ok, err := s.prRepo.TransitionStatus(ctx, id, pr.Status, map[string]interface{}{
		"status": entity.PRStatusCancelled,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewStateConflict("采购申请", pr.PRCode, pr.Status, "")
	}

	return s.prRepo.FindByID(ctx, id)
}

// GetPR 查询采购申请详情
func (s *ApprovalService) GetPR(ctx context.Context, id string) (*entity.PurchaseRequest, error) {
	return s.prRepo.FindByID(ctx, id)
}

// ListPRs 查询采购申请列表
func (s *ApprovalService) ListPRs(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseRequest, int64, error) {
	return s.prRepo.FindAll(ctx, page, pageSize, filters)
}

// === 采购订单(PO)确认链 ===

// SubmitPO 提交订单进入确认流程 created -> pending_admin_confirmation
func (s *ApprovalService) SubmitPO(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	po, err := s.poRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ok, err := s.poRepo.TransitionStatus(ctx, id, entity.POStatusCreated, map[string]interface{}{
		"status": entity.POStatusPendingAdminConfirm,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewStateConflict("采购订单", po.PONumber, entity.POStatusCreated, po.Status)
	}

	return s.poRepo.FindByID(ctx, id)
}

// ConfirmPOAdmin 管理员确认订单
// 低值订单管理员确认即生效，高值订单升级到超级管理员
func (s *ApprovalService) ConfirmPOAdmin(ctx context.Context, id, userID string, req *ConfirmPORequest) (*entity.PurchaseOrder, error) {
	po, err := s.poRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"admin_confirmed_by": userID,
		"admin_confirmed_at": now,
		"admin_confirm_note": req.Note,
	}
	if po.TotalPrice <= s.threshold {
		updates["status"] = entity.POStatusConfirmed
		updates["confirmed_at"] = now
		updates["invoice_due_date"] = now.AddDate(0, 0, s.paymentTermsDays)
	} else {
		updates["status"] = entity.POStatusPendingSuperConfirm
	}

	ok, err := s.poRepo.TransitionStatus(ctx, id, entity.POStatusPendingAdminConfirm, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewStateConflict("采购订单", po.PONumber, entity.POStatusPendingAdminConfirm, po.Status)
	}

	log.Printf("[PROC] 管理员确认订单: %s -> %s", po.PONumber, updates["status"])
	return s.poRepo.FindByID(ctx, id)
}

// ConfirmPOSuperAdmin 超级管理员确认订单 pending_super_admin_confirmation -> confirmed
func (s *ApprovalService) ConfirmPOSuperAdmin(ctx context.Context, id, userID string, req *ConfirmPORequest) (*entity.PurchaseOrder, error) {
	po, err := s.poRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ok, err := s.poRepo.TransitionStatus(ctx, id, entity.POStatusPendingSuperConfirm, map[string]interface{}{
		"status":                   entity.POStatusConfirmed,
		"super_admin_confirmed_by": userID,
		"super_admin_confirmed_at": now,
		"super_admin_confirm_note": req.Note,
		"confirmed_at":             now,
		"invoice_due_date":         now.AddDate(0, 0, s.paymentTermsDays),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewStateConflict("采购订单", po.PONumber, entity.POStatusPendingSuperConfirm, po.Status)
	}

	return s.poRepo.FindByID(ctx, id)
}
