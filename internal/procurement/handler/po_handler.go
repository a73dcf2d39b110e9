package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/service"
)

// POHandler 采购订单处理器
type POHandler struct {
	approvalSvc   *service.ApprovalService
	settlementSvc *service.SettlementService
}

func NewPOHandler(approvalSvc *service.ApprovalService, settlementSvc *service.SettlementService) *POHandler {
	return &POHandler{approvalSvc: approvalSvc, settlementSvc: settlementSvc}
}

// ListPOs 采购订单列表
// GET /api/v1/procurement/purchase-orders?supplier_id=xxx&status=xxx&search=xxx
func (h *POHandler) ListPOs(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"supplier_id": c.Query("supplier_id"),
		"status":      c.Query("status"),
		"search":      c.Query("search"),
	}

	items, total, err := h.settlementSvc.ListPOs(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取采购订单列表失败: "+err.Error())
		return
	}

	Success(c, listOf(items, page, pageSize, total))
}

// GetPO 采购订单详情
// GET /api/v1/procurement/purchase-orders/:id
func (h *POHandler) GetPO(c *gin.Context) {
	po, err := h.settlementSvc.GetPO(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "采购订单不存在")
		return
	}
	Success(c, po)
}

// AcceptQuote 接受报价生成采购订单
// POST /api/v1/procurement/quotes/:id/accept
func (h *POHandler) AcceptQuote(c *gin.Context) {
	var req service.AcceptQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	po, err := h.settlementSvc.AcceptQuote(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, po)
}

// SubmitPO 提交订单进入确认流程
// POST /api/v1/procurement/purchase-orders/:id/submit
func (h *POHandler) SubmitPO(c *gin.Context) {
	po, err := h.approvalSvc.SubmitPO(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, po)
}

// ConfirmPOAdmin 管理员确认订单
// POST /api/v1/procurement/purchase-orders/:id/admin-confirm
func (h *POHandler) ConfirmPOAdmin(c *gin.Context) {
	var req service.ConfirmPORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	po, err := h.approvalSvc.ConfirmPOAdmin(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, po)
}

// ConfirmPOSuperAdmin 超级管理员确认订单
// POST /api/v1/procurement/purchase-orders/:id/super-admin-confirm
func (h *POHandler) ConfirmPOSuperAdmin(c *gin.Context) {
	var req service.ConfirmPORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	po, err := h.approvalSvc.ConfirmPOSuperAdmin(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, po)
}

// CancelPO 取消采购订单
// POST /api/v1/procurement/purchase-orders/:id/cancel
func (h *POHandler) CancelPO(c *gin.Context) {
	var req service.CancelPORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	po, err := h.settlementSvc.CancelPO(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, po)
}

// UploadInvoiceFile 上传订单发票扫描件
// POST /api/v1/procurement/purchase-orders/:id/invoice-file
func (h *POHandler) UploadInvoiceFile(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少文件: "+err.Error())
		return
	}
	defer file.Close()

	po, err := h.settlementSvc.UploadPOInvoiceFile(
		c.Request.Context(),
		c.Param("id"),
		header.Filename,
		file,
		header.Size,
		header.Header.Get("Content-Type"),
	)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, po)
}
