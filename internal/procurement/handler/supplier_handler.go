package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/service"
)

// SupplierHandler 供应商处理器
type SupplierHandler struct {
	svc       *service.SupplierService
	ratingSvc *service.RatingService
}

func NewSupplierHandler(svc *service.SupplierService, ratingSvc *service.RatingService) *SupplierHandler {
	return &SupplierHandler{svc: svc, ratingSvc: ratingSvc}
}

// ListSuppliers 供应商列表
// GET /api/v1/procurement/suppliers?status=xxx&category=xxx&search=xxx
func (h *SupplierHandler) ListSuppliers(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"status":   c.Query("status"),
		"category": c.Query("category"),
		"search":   c.Query("search"),
	}

	items, total, err := h.svc.ListSuppliers(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取供应商列表失败: "+err.Error())
		return
	}

	Success(c, listOf(items, page, pageSize, total))
}

// GetSupplier 供应商详情
// GET /api/v1/procurement/suppliers/:id
func (h *SupplierHandler) GetSupplier(c *gin.Context) {
	supplier, err := h.svc.GetSupplier(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "供应商不存在")
		return
	}
	Success(c, supplier)
}

// CreateSupplier 创建供应商
// POST /api/v1/procurement/suppliers
func (h *SupplierHandler) CreateSupplier(c *gin.Context) {
	var req service.CreateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	supplier, err := h.svc.CreateSupplier(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, supplier)
}

// UpdateSupplier 更新供应商档案
// PUT /api/v1/procurement/suppliers/:id
func (h *SupplierHandler) UpdateSupplier(c *gin.Context) {
	var req service.UpdateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	supplier, err := h.svc.UpdateSupplier(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, supplier)
}

// RecomputeRating 重算单个供应商评分
// POST /api/v1/procurement/suppliers/:id/recompute-rating
func (h *SupplierHandler) RecomputeRating(c *gin.Context) {
	supplier, err := h.ratingSvc.RecomputeSupplier(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, supplier)
}

// RecomputeAllRatings 全量重算供应商评分
// POST /api/v1/procurement/suppliers/recompute-ratings
func (h *SupplierHandler) RecomputeAllRatings(c *gin.Context) {
	n, err := h.ratingSvc.RecomputeAll(c.Request.Context())
	if err != nil {
		InternalError(c, "评分重算失败: "+err.Error())
		return
	}
	Success(c, gin.H{"processed": n})
}
