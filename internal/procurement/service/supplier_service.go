package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/repository"
)

// SupplierService 供应商档案管理
type SupplierService struct {
	supplierRepo *repository.SupplierRepository
}

// NewSupplierService 创建供应商服务
func NewSupplierService(repos *repository.Repositories) *SupplierService {
	return &SupplierService{supplierRepo: repos.Supplier}
}

// CreateSupplierRequest 创建供应商请求
type CreateSupplierRequest struct {
	Name         string `json:"name" binding:"required"`
	Category     string `json:"category"`
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`
	PaymentTerms string `json:"payment_terms"`
	TaxID        string `json:"tax_id"`
	Notes        string `json:"notes"`
}

// UpdateSupplierRequest 更新供应商请求
type UpdateSupplierRequest struct {
	Name         *string `json:"name"`
	Category     *string `json:"category"`
	Status       *string `json:"status" binding:"omitempty,oneof=active suspended blacklisted"`
	ContactName  *string `json:"contact_name"`
	ContactPhone *string `json:"contact_phone"`
	ContactEmail *string `json:"contact_email"`
	PaymentTerms *string `json:"payment_terms"`
	TaxID        *string `json:"tax_id"`
	Notes        *string `json:"notes"`
}

// CreateSupplier 创建供应商
func (s *SupplierService) CreateSupplier(ctx context.Context, userID string, req *CreateSupplierRequest) (*entity.Supplier, error) {
	code, err := s.supplierRepo.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成供应商编码失败: %w", err)
	}

	supplier := &entity.Supplier{
		ID:           uuid.New().String()[:32],
		Code:         code,
		Name:         req.Name,
		Category:     req.Category,
		Status:       entity.SupplierStatusActive,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
		PaymentTerms: req.PaymentTerms,
		TaxID:        req.TaxID,
		CreatedBy:    userID,
		Notes:        req.Notes,
	}

	if err := s.supplierRepo.Create(ctx, supplier); err != nil {
		return nil, fmt.Errorf("创建供应商失败: %w", err)
	}

	log.Printf("[PROC] 创建供应商: %s %s", supplier.Code, supplier.Name)
	return supplier, nil
}

// UpdateSupplier 更新供应商档案
func (s *SupplierService) UpdateSupplier(ctx context.Context, id string, req *UpdateSupplierRequest) (*entity.Supplier, error) {
	supplier, err := s.supplierRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		supplier.Name = *req.Name
	}
	if req.Category != nil {
		supplier.Category = *req.Category
	}
	if req.Status != nil {
		supplier.Status = *req.Status
	}
	if req.ContactName != nil {
		supplier.ContactName = *req.ContactName
	}
	if req.ContactPhone != nil {
		supplier.ContactPhone = *req.ContactPhone
	}
	if req.ContactEmail != nil {
		supplier.ContactEmail = *req.ContactEmail
	}
	if req.PaymentTerms != nil {
		supplier.PaymentTerms = *req.PaymentTerms
	}
	if req.TaxID != nil {
		supplier.TaxID = *req.TaxID
	}
	if req.Notes != nil {
		supplier.Notes = *req.Notes
	}

	if err := s.supplierRepo.Update(ctx, supplier); err != nil {
		return nil, err
	}
	return supplier, nil
}

// GetSupplier 查询供应商详情
func (s *SupplierService) GetSupplier(ctx context.Context, id string) (*entity.Supplier, error) {
	return s.supplierRepo.FindByID(ctx, id)
}

// ListSuppliers 查询供应商列表
func (s *SupplierService) ListSuppliers(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Supplier, int64, error) {
	return s.supplierRepo.FindAll(ctx, page, pageSize, filters)
}
