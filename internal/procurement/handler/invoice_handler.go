package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/service"
)

// InvoiceHandler 发票处理器
type InvoiceHandler struct {
	svc *service.SettlementService
}

func NewInvoiceHandler(svc *service.SettlementService) *InvoiceHandler {
	return &InvoiceHandler{svc: svc}
}

// ListInvoices 发票列表
// GET /api/v1/procurement/invoices?supplier_id=xxx&status=xxx&settlement_type=xxx
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"supplier_id":     c.Query("supplier_id"),
		"status":          c.Query("status"),
		"settlement_type": c.Query("settlement_type"),
	}

	items, total, err := h.svc.ListInvoices(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取发票列表失败: "+err.Error())
		return
	}

	Success(c, listOf(items, page, pageSize, total))
}

// GetInvoice 发票详情
// GET /api/v1/procurement/invoices/:id
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	inv, err := h.svc.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "发票不存在")
		return
	}
	Success(c, inv)
}

// CreateInvoice 发票登记
// POST /api/v1/procurement/invoices
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	inv, err := h.svc.CreateInvoice(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, inv)
}

// ApproveInvoice 核准发票
// POST /api/v1/procurement/invoices/:id/approve
// 金额与订单不一致时核准仍然生效，warning字段提示差异
func (h *InvoiceHandler) ApproveInvoice(c *gin.Context) {
	inv, warning, err := h.svc.ApproveInvoice(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	Success(c, gin.H{
		"invoice": inv,
		"warning": warning,
	})
}

// RejectInvoice 驳回发票
// POST /api/v1/procurement/invoices/:id/reject
func (h *InvoiceHandler) RejectInvoice(c *gin.Context) {
	var req service.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	inv, err := h.svc.RejectInvoice(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, inv)
}
