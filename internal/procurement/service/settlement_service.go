package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/repository"
	"gorm.io/gorm"
)

// =============================================================================
// SettlementService — 结算引擎
// 接受报价生成采购订单（快照定价），发票登记与审核，逾期发票作废。
// 订单号按日期域编号，重复接受同一报价被quote_id唯一索引拒绝。
// =============================================================================

// 金额比对容差（分）
const amountTolerance = 0.01

// SettlementService 结算服务
type SettlementService struct {
	poRepo       *repository.PORepository
	quoteRepo    *repository.QuoteRepository
	rfqRepo      *repository.RFQRepository
	invoiceRepo  *repository.InvoiceRepository
	supplierRepo *repository.SupplierRepository

	paymentTermsDays int

	objectStore *minio.Client
	bucket      string
}

// NewSettlementService 创建结算服务
func NewSettlementService(repos *repository.Repositories, paymentTermsDays int) *SettlementService {
	if paymentTermsDays <= 0 {
		paymentTermsDays = 90
	}
	return &SettlementService{
		poRepo:           repos.PO,
		quoteRepo:        repos.Quote,
		rfqRepo:          repos.RFQ,
		invoiceRepo:      repos.Invoice,
		supplierRepo:     repos.Supplier,
		paymentTermsDays: paymentTermsDays,
	}
}

// SetObjectStorage 注入对象存储客户端（发票扫描件上传）
func (s *SettlementService) SetObjectStorage(client *minio.Client, bucket string) {
	s.objectStore = client
	s.bucket = bucket
}

// === 请求结构 ===

// AcceptQuoteRequest 接受报价请求
type AcceptQuoteRequest struct {
	Notes string `json:"notes"`
}

// CancelPORequest 取消订单请求
type CancelPORequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CreateInvoiceRequest 发票登记请求
type CreateInvoiceRequest struct {
	SupplierID       string                 `json:"supplier_id" binding:"required"`
	SettlementType   string                 `json:"settlement_type" binding:"required,oneof=per_order monthly"`
	POID             string                 `json:"po_id"`
	POLinks          []InvoicePOLinkRequest `json:"po_links"`
	Amount           float64                `json:"amount" binding:"required,gt=0"`
	SettlementPeriod string                 `json:"settlement_period"`
	DueDate          *time.Time             `json:"due_date"`
	Notes            string                 `json:"notes"`
}

// InvoicePOLinkRequest 月结发票PO关联
type InvoicePOLinkRequest struct {
	POID     string   `json:"po_id" binding:"required"`
	POAmount *float64 `json:"po_amount"`
}

// === 采购订单 ===

// AcceptQuote 接受报价生成采购订单
// 订单携带接受时的报价快照，后续报价变更不影响已下达订单。
// 同一报价重复接受被quote_id唯一索引拒绝。
func (s *SettlementService) AcceptQuote(ctx context.Context, quoteID, userID string, req *AcceptQuoteRequest) (*entity.PurchaseOrder, error) {
	quote, err := s.quoteRepo.FindByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Status != entity.QuoteStatusReceived {
		return nil, NewStateConflict("报价", quote.ID, entity.QuoteStatusReceived, quote.Status)
	}
	if quote.TotalPrice == nil || quote.LeadTimeDays == nil {
		return nil, NewValidationError("报价 %s 缺少价格或交期", quote.ID)
	}

	rfq, err := s.rfqRepo.FindByID(ctx, quote.RFQID)
	if err != nil {
		return nil, err
	}

	snapshot, err := json.Marshal(quote)
	if err != nil {
		return nil, fmt.Errorf("生成报价快照失败: %w", err)
	}

	poNumber, err := s.poRepo.NextPONumber(ctx)
	if err != nil {
		return nil, err
	}

	paymentTerms := quote.PaymentTerms
	if paymentTerms == "" {
		paymentTerms = fmt.Sprintf("%d天账期", s.paymentTermsDays)
	}

	po := &entity.PurchaseOrder{
		ID:            uuid.New().String()[:32],
		PONumber:      poNumber,
		SupplierID:    quote.SupplierID,
		QuoteID:       quote.ID,
		RFQID:         quote.RFQID,
		PRID:          rfq.PRID,
		Status:        entity.POStatusCreated,
		QuoteSnapshot: snapshot,
		TotalPrice:    *quote.TotalPrice,
		LeadTimeDays:  *quote.LeadTimeDays,
		PaymentTerms:  paymentTerms,
		CreatedBy:     userID,
		Notes:         req.Notes,
	}

	if err := s.poRepo.Create(ctx, po); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, NewStateConflict("报价", quote.ID, "未生成订单", "已生成订单")
		}
		return nil, fmt.Errorf("创建采购订单失败: %w", err)
	}

	quote.Accepted = true
	if err := s.quoteRepo.Update(ctx, quote); err != nil {
		return nil, err
	}

	log.Printf("[PROC] 接受报价生成订单: %s 金额 %.2f", po.PONumber, po.TotalPrice)
	return s.poRepo.FindByID(ctx, po.ID)
}

// CancelPO 取消采购订单，收货前任意状态可取消，必须给出原因
func (s *SettlementService) CancelPO(ctx context.Context, id, userID string, req *CancelPORequest) (*entity.PurchaseOrder, error) {
	po, err := s.poRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entity.CanCancelPO(po.Status) {
		return nil, NewStateConflict("采购订单", po.PONumber, "收货前状态", po.Status)
	}

	now := time.Now()
	ok, err := s.poRepo.TransitionStatus(ctx, id, po.Status, map[string]interface{}{
		"status":        entity.POStatusCancelled,
		"cancelled_at":  now,
		"cancel_reason": req.Reason,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewStateConflict("采购订单", po.PONumber, po.Status, "")
	}

	log.Printf("[PROC] 取消订单: %s 原因: %s", po.PONumber, req.Reason)
	return s.poRepo.FindByID(ctx, id)
}

// GetPO 查询采购订单详情
func (s *SettlementService) GetPO(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	return s.poRepo.FindByID(ctx, id)
}

// ListPOs 查询采购订单列表
func (s *SettlementService) ListPOs(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseOrder, int64, error) {
	return s.poRepo.FindAll(ctx, page, pageSize, filters)
}

// UploadPOInvoiceFile 上传订单发票扫描件到对象存储
func (s *SettlementService) UploadPOInvoiceFile(ctx context.Context, poID, filename string, reader io.Reader, size int64, contentType string) (*entity.PurchaseOrder, error) {
	if s.objectStore == nil {
		return nil, NewValidationError("对象存储未配置")
	}

	po, err := s.poRepo.FindByID(ctx, poID)
	if err != nil {
		return nil, err
	}

	objectName := fmt.Sprintf("invoices/%s/%s%s", po.PONumber, uuid.New().String()[:8], path.Ext(filename))
	_, err = s.objectStore.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("上传发票文件失败: %w", err)
	}

	po.InvoiceUploaded = true
	po.InvoiceURL = fmt.Sprintf("/%s/%s", s.bucket, objectName)
	if err := s.poRepo.Update(ctx, po); err != nil {
		return nil, err
	}

	log.Printf("[PROC] 订单发票上传: %s -> %s", po.PONumber, objectName)
	return po, nil
}

// === 发票 ===

// CreateInvoice 发票登记
// per_order必须挂单张PO；monthly通过关联表挂多张PO，显式拆分金额之和不得超过票面金额
func (s *SettlementService) CreateInvoice(ctx context.Context, userID string, req *CreateInvoiceRequest) (*entity.Invoice, error) {
	supplier, err := s.supplierRepo.FindByID(ctx, req.SupplierID)
	if err != nil {
		return nil, err
	}

	code, err := s.invoiceRepo.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成发票编码失败: %w", err)
	}

	dueDate := req.DueDate
	if dueDate == nil {
		d := time.Now().AddDate(0, 0, s.paymentTermsDays)
		dueDate = &d
	}

	inv := &entity.Invoice{
		ID:               uuid.New().String()[:32],
		InvoiceCode:      code,
		SupplierID:       supplier.ID,
		SettlementType:   req.SettlementType,
		Status:           entity.InvoiceStatusPending,
		Amount:           req.Amount,
		SettlementPeriod: req.SettlementPeriod,
		DueDate:          dueDate,
		CreatedBy:        userID,
		Notes:            req.Notes,
	}

	var links []entity.InvoicePOLink
	switch req.SettlementType {
	case entity.SettlementPerOrder:
		if req.POID == "" {
			return nil, NewValidationError("单票结算必须指定采购订单")
		}
		po, err := s.poRepo.FindByID(ctx, req.POID)
		if err != nil {
			return nil, err
		}
		if po.SupplierID != supplier.ID {
			return nil, NewValidationError("订单 %s 不属于供应商 %s", po.PONumber, supplier.Name)
		}
		inv.POID = &po.ID

	case entity.SettlementMonthly:
		if len(req.POLinks) == 0 {
			return nil, NewValidationError("月结发票至少关联一张采购订单")
		}
		var splitSum float64
		hasSplit := false
		for _, l := range req.POLinks {
			po, err := s.poRepo.FindByID(ctx, l.POID)
			if err != nil {
				return nil, err
			}
			if po.SupplierID != supplier.ID {
				return nil, NewValidationError("订单 %s 不属于供应商 %s", po.PONumber, supplier.Name)
			}
			if l.POAmount != nil {
				hasSplit = true
				splitSum += *l.POAmount
			}
			links = append(links, entity.InvoicePOLink{
				ID:        uuid.New().String()[:32],
				InvoiceID: inv.ID,
				POID:      po.ID,
				POAmount:  l.POAmount,
			})
		}
		if hasSplit && splitSum > req.Amount+amountTolerance {
			return nil, NewValidationError("关联订单拆分金额合计%.2f超过票面金额%.2f", splitSum, req.Amount)
		}
	}

	if err := s.invoiceRepo.CreateWithLinks(ctx, inv, links); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, NewValidationError("发票关联的采购订单存在重复")
		}
		return nil, fmt.Errorf("创建发票失败: %w", err)
	}

	log.Printf("[PROC] 发票登记: %s %s 金额 %.2f", inv.InvoiceCode, inv.SettlementType, inv.Amount)
	return s.invoiceRepo.FindByID(ctx, inv.ID)
}

// ApproveInvoice 核准发票
// 票面金额与订单金额不一致不阻断核准，返回提示由前端展示
func (s *SettlementService) ApproveInvoice(ctx context.Context, id, userID string) (*entity.Invoice, string, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, "", err
	}

	var warning string
	switch inv.SettlementType {
	case entity.SettlementPerOrder:
		if inv.POID != nil {
			po, err := s.poRepo.FindByID(ctx, *inv.POID)
			if err != nil {
				return nil, "", err
			}
			if math.Abs(inv.Amount-po.TotalPrice) > amountTolerance {
				warning = fmt.Sprintf("票面金额%.2f与订单金额%.2f不一致", inv.Amount, po.TotalPrice)
			}
		}
	case entity.SettlementMonthly:
		poTotal, err := s.invoiceRepo.TotalPOAmount(ctx, id)
		if err != nil {
			return nil, "", err
		}
		if math.Abs(inv.Amount-poTotal) > amountTolerance {
			warning = fmt.Sprintf("票面金额%.2f与关联订单合计%.2f不一致", inv.Amount, poTotal)
		}
	}

	now := time.Now()
	ok, err := s.invoiceRepo.TransitionStatus(ctx, id, entity.InvoiceStatusPending, map[string]interface{}{
		"status":      entity.InvoiceStatusApproved,
		"approved_by": userID,
		"approved_at": now,
	})
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", NewStateConflict("发票", inv.InvoiceCode, entity.InvoiceStatusPending, inv.Status)
	}

	if warning != "" {
		log.Printf("[PROC] 发票核准(金额不一致): %s %s", inv.InvoiceCode, warning)
	}
	result, err := s.invoiceRepo.FindByID(ctx, id)
	return result, warning, err
}

// RejectInvoice 驳回发票
func (s *SettlementService) RejectInvoice(ctx context.Context, id, userID string, req *RejectRequest) (*entity.Invoice, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ok, err := s.invoiceRepo.TransitionStatus(ctx, id, entity.InvoiceStatusPending, map[string]interface{}{
		"status":        entity.InvoiceStatusRejected,
		"reject_reason": req.Reason,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewStateConflict("发票", inv.InvoiceCode, entity.InvoiceStatusPending, inv.Status)
	}

	return s.invoiceRepo.FindByID(ctx, id)
}

// ExpireOverdueInvoices 逾期未处理的发票作废（定时任务调用）
func (s *SettlementService) ExpireOverdueInvoices(ctx context.Context) (int64, error) {
	n, err := s.invoiceRepo.ExpireOverdue(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("[PROC] 逾期发票作废: %d张", n)
	}
	return n, nil
}

// GetInvoice 查询发票详情
func (s *SettlementService) GetInvoice(ctx context.Context, id string) (*entity.Invoice, error) {
	return s.invoiceRepo.FindByID(ctx, id)
}

// ListInvoices 查询发票列表
func (s *SettlementService) ListInvoices(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Invoice, int64, error) {
	return s.invoiceRepo.FindAll(ctx, page, pageSize, filters)
}
