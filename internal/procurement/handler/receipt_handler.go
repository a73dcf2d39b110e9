package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/service"
)

// ReceiptHandler 收货处理器
type ReceiptHandler struct {
	svc *service.ReceivingService
}

func NewReceiptHandler(svc *service.ReceivingService) *ReceiptHandler {
	return &ReceiptHandler{svc: svc}
}

// ListReceipts 收货单列表
// GET /api/v1/procurement/receipts?po_id=xxx&supplier_id=xxx&quality_status=xxx
func (h *ReceiptHandler) ListReceipts(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"po_id":                 c.Query("po_id"),
		"supplier_id":           c.Query("supplier_id"),
		"quality_status":        c.Query("quality_status"),
		"inventory_sync_status": c.Query("inventory_sync_status"),
	}

	items, total, err := h.svc.ListReceipts(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取收货单列表失败: "+err.Error())
		return
	}

	Success(c, listOf(items, page, pageSize, total))
}

// GetReceipt 收货单详情
// GET /api/v1/procurement/receipts/:id
func (h *ReceiptHandler) GetReceipt(c *gin.Context) {
	receipt, err := h.svc.GetReceipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "收货单不存在")
		return
	}
	Success(c, receipt)
}

// ListPendingReceiptPOs 待收货订单列表
// GET /api/v1/procurement/receipts/pending-pos
func (h *ReceiptHandler) ListPendingReceiptPOs(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListPendingReceiptPOs(c.Request.Context(), page, pageSize)
	if err != nil {
		InternalError(c, "获取待收货订单失败: "+err.Error())
		return
	}
	Success(c, listOf(items, page, pageSize, total))
}

// SubmitReceipt 提交收货单
// POST /api/v1/procurement/purchase-orders/:id/receipt
func (h *ReceiptHandler) SubmitReceipt(c *gin.Context) {
	var req service.SubmitReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	receipt, err := h.svc.SubmitReceipt(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, receipt)
}

// GetReceiptByPO 查询订单的收货单
// GET /api/v1/procurement/purchase-orders/:id/receipt
func (h *ReceiptHandler) GetReceiptByPO(c *gin.Context) {
	receipt, err := h.svc.GetReceiptByPO(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, receipt)
}

// RetryInventorySync 人工重试库存同步
// POST /api/v1/procurement/receipts/:id/retry-sync
func (h *ReceiptHandler) RetryInventorySync(c *gin.Context) {
	receipt, err := h.svc.RetryInventorySync(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, receipt)
}

// CompletePO 订单归档
// POST /api/v1/procurement/purchase-orders/:id/complete
func (h *ReceiptHandler) CompletePO(c *gin.Context) {
	po, err := h.svc.CompletePO(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, po)
}
