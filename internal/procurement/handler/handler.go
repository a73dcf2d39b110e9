package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/repository"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/service"
)

// Handlers 采购处理器集合
type Handlers struct {
	Supplier *SupplierHandler
	PR       *PRHandler
	RFQ      *RFQHandler
	PO       *POHandler
	Invoice  *InvoiceHandler
	Receipt  *ReceiptHandler
}

// NewHandlers 创建采购处理器集合
func NewHandlers(
	supplierSvc *service.SupplierService,
	approvalSvc *service.ApprovalService,
	rfqSvc *service.RFQService,
	settlementSvc *service.SettlementService,
	receivingSvc *service.ReceivingService,
	notificationSvc *service.NotificationService,
	ratingSvc *service.RatingService,
) *Handlers {
	return &Handlers{
		Supplier: NewSupplierHandler(supplierSvc, ratingSvc),
		PR:       NewPRHandler(approvalSvc),
		RFQ:      NewRFQHandler(rfqSvc, notificationSvc),
		PO:       NewPOHandler(approvalSvc, settlementSvc),
		Invoice:  NewInvoiceHandler(settlementSvc),
		Receipt:  NewReceiptHandler(receivingSvc),
	}
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// HandleServiceError 按服务层错误分类映射状态码
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, "记录不存在")
	case service.IsValidationError(err):
		BadRequest(c, err.Error())
	case service.IsStateConflict(err):
		Conflict(c, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

func listOf(items interface{}, page, pageSize int, total int64) ListResponse {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	}
}
