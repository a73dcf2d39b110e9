package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/service"
)

// PRHandler 采购申请处理器
type PRHandler struct {
	svc *service.ApprovalService
}

func NewPRHandler(svc *service.ApprovalService) *PRHandler {
	return &PRHandler{svc: svc}
}

// ListPRs 采购申请列表
// GET /api/v1/procurement/purchase-requests?status=xxx&department=xxx&search=xxx
func (h *PRHandler) ListPRs(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"status":       c.Query("status"),
		"department":   c.Query("department"),
		"requested_by": c.Query("requested_by"),
		"search":       c.Query("search"),
	}

	items, total, err := h.svc.ListPRs(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取采购申请列表失败: "+err.Error())
		return
	}

	Success(c, listOf(items, page, pageSize, total))
}

// GetPR 采购申请详情
// GET /api/v1/procurement/purchase-requests/:id
func (h *PRHandler) GetPR(c *gin.Context) {
	pr, err := h.svc.GetPR(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "采购申请不存在")
		return
	}
	Success(c, pr)
}

// CreatePR 创建采购申请
// POST /api/v1/procurement/purchase-requests
func (h *PRHandler) CreatePR(c *gin.Context) {
	var req service.CreatePRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	pr, err := h.svc.CreatePR(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, pr)
}

// SubmitPR 提交审批
// POST /api/v1/procurement/purchase-requests/:id/submit
func (h *PRHandler) SubmitPR(c *gin.Context) {
	pr, err := h.svc.SubmitPR(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, pr)
}

// SupervisorApprove 主管审批
// POST /api/v1/procurement/purchase-requests/:id/supervisor-approve
func (h *PRHandler) SupervisorApprove(c *gin.Context) {
	pr, err := h.svc.SupervisorApprove(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, pr)
}

// FillPrices 定价
// POST /api/v1/procurement/purchase-requests/:id/prices
func (h *PRHandler) FillPrices(c *gin.Context) {
	var req service.FillPricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	pr, err := h.svc.FillPrices(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, pr)
}

// AdminApprove 管理员审批
// POST /api/v1/procurement/purchase-requests/:id/admin-approve
func (h *PRHandler) AdminApprove(c *gin.Context) {
	pr, err := h.svc.AdminApprove(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, pr)
}

// SuperAdminApprove 超级管理员终审
// POST /api/v1/procurement/purchase-requests/:id/super-admin-approve
func (h *PRHandler) SuperAdminApprove(c *gin.Context) {
	pr, err := h.svc.SuperAdminApprove(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, pr)
}

// RejectPR 驳回
// POST /api/v1/procurement/purchase-requests/:id/reject
func (h *PRHandler) RejectPR(c *gin.Context) {
	var req service.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	pr, err := h.svc.RejectPR(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, pr)
}

// CancelPR 申请人撤销
// POST /api/v1/procurement/purchase-requests/:id/cancel
func (h *PRHandler) CancelPR(c *gin.Context) {
	pr, err := h.svc.CancelPR(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, pr)
}
