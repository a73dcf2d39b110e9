package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/service"
)

// RFQHandler 询价处理器
type RFQHandler struct {
	svc       *service.RFQService
	notifySvc *service.NotificationService
}

func NewRFQHandler(svc *service.RFQService, notifySvc *service.NotificationService) *RFQHandler {
	return &RFQHandler{svc: svc, notifySvc: notifySvc}
}

// ListRFQs 询价单列表
// GET /api/v1/procurement/rfqs?status=xxx&pr_id=xxx&search=xxx
func (h *RFQHandler) ListRFQs(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"status": c.Query("status"),
		"pr_id":  c.Query("pr_id"),
		"search": c.Query("search"),
	}

	items, total, err := h.svc.ListRFQs(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取询价单列表失败: "+err.Error())
		return
	}

	Success(c, listOf(items, page, pageSize, total))
}

// GetRFQ 询价单详情
// GET /api/v1/procurement/rfqs/:id
func (h *RFQHandler) GetRFQ(c *gin.Context) {
	rfq, err := h.svc.GetRFQ(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "询价单不存在")
		return
	}
	Success(c, rfq)
}

// CreateRFQ 从已批准申请派生询价单
// POST /api/v1/procurement/rfqs
func (h *RFQHandler) CreateRFQ(c *gin.Context) {
	var req service.CreateRFQRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	rfq, err := h.svc.CreateFromPR(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, rfq)
}

// ClassifyRFQ 触发行项分类（幂等）
// POST /api/v1/procurement/rfqs/:id/classify
func (h *RFQHandler) ClassifyRFQ(c *gin.Context) {
	if err := h.svc.ClassifyRFQ(c.Request.Context(), c.Param("id")); err != nil {
		HandleServiceError(c, err)
		return
	}
	rfq, err := h.svc.GetRFQ(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, rfq)
}

// InviteSupplier 邀请供应商报价
// POST /api/v1/procurement/rfqs/:id/invite
func (h *RFQHandler) InviteSupplier(c *gin.Context) {
	var req service.InviteSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	rfq, err := h.svc.InviteSupplier(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, rfq)
}

// CloseRFQ 关闭询价单
// POST /api/v1/procurement/rfqs/:id/close
func (h *RFQHandler) CloseRFQ(c *gin.Context) {
	rfq, err := h.svc.CloseRFQ(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, rfq)
}

// ListQuotes 询价单下全部报价
// GET /api/v1/procurement/rfqs/:id/quotes
func (h *RFQHandler) ListQuotes(c *gin.Context) {
	quotes, err := h.svc.ListQuotes(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, quotes)
}

// RankItemQuotes 单行项报价排名
// GET /api/v1/procurement/rfq-items/:id/quotes
func (h *RFQHandler) RankItemQuotes(c *gin.Context) {
	quotes, err := h.svc.RankItemQuotes(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, quotes)
}

// SubmitQuote 供应商提交报价响应
// POST /api/v1/procurement/quotes/:id/respond
func (h *RFQHandler) SubmitQuote(c *gin.Context) {
	var req service.SubmitQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	quote, err := h.svc.SubmitQuote(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, quote)
}

// WithdrawQuote 供应商撤回报价行
// POST /api/v1/procurement/quotes/:id/withdraw
func (h *RFQHandler) WithdrawQuote(c *gin.Context) {
	quote, err := h.svc.WithdrawQuote(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, quote)
}

// ExportQuoteComparison 导出报价比较表
// GET /api/v1/procurement/rfqs/:id/quotes/export
func (h *RFQHandler) ExportQuoteComparison(c *gin.Context) {
	f, err := h.svc.ExportQuoteComparison(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("quote-comparison-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "导出失败: "+err.Error())
	}
}

// ListFailedNotifications 永久失败的通知任务（人工跟进）
// GET /api/v1/procurement/notifications/failed
func (h *RFQHandler) ListFailedNotifications(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.notifySvc.ListFailedTasks(c.Request.Context(), page, pageSize)
	if err != nil {
		InternalError(c, "获取失败通知列表失败: "+err.Error())
		return
	}
	Success(c, listOf(items, page, pageSize, total))
}
