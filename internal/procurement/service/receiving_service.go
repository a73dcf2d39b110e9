package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/repository"
	"github.com/zp184764679/jzc-systems-sub003/internal/shared/inventory"
	"gorm.io/gorm"
)

// =============================================================================
// ReceivingService — 收货与质检
// 质检结论由各行通过率聚合推导。库存同步异步执行，
// 外部系统失败只体现在收货单的同步状态字段，本地收货事实不回滚。
// =============================================================================

// 数量平衡校验容差
const qtyTolerance = 1e-9

// InventoryPusher 库存系统推送接口
type InventoryPusher interface {
	PushStockIn(ctx context.Context, lines []inventory.StockInLine) error
}

// ReceivingService 收货服务
type ReceivingService struct {
	receiptRepo *repository.ReceiptRepository
	poRepo      *repository.PORepository
	invoiceRepo *repository.InvoiceRepository
	inventory   InventoryPusher
	syncTimeout time.Duration
}

// NewReceivingService 创建收货服务
func NewReceivingService(repos *repository.Repositories) *ReceivingService {
	return &ReceivingService{
		receiptRepo: repos.Receipt,
		poRepo:      repos.PO,
		invoiceRepo: repos.Invoice,
		syncTimeout: 10 * time.Second,
	}
}

// SetInventoryPusher 注入库存系统客户端（未注入时同步跳过）
func (s *ReceivingService) SetInventoryPusher(p InventoryPusher) {
	s.inventory = p
}

// === 请求结构 ===

// SubmitReceiptRequest 提交收货单请求
type SubmitReceiptRequest struct {
	Items []ReceiptItemRequest `json:"items" binding:"required,min=1,dive"`
	Notes string               `json:"notes"`
}

// ReceiptItemRequest 收货行项请求
type ReceiptItemRequest struct {
	MaterialCode string  `json:"material_code"`
	MaterialName string  `json:"material_name" binding:"required"`
	OrderedQty   float64 `json:"ordered_qty"`
	DeliveredQty float64 `json:"delivered_qty" binding:"required,gt=0"`
	AcceptedQty  float64 `json:"accepted_qty" binding:"gte=0"`
	RejectedQty  float64 `json:"rejected_qty" binding:"gte=0"`
	Notes        string  `json:"notes"`
}

// SubmitReceipt 提交收货单
// 订单须已确认且有核准发票才具备收货资格。
// 每行必须满足 accepted + rejected == delivered；
// 整单通过率 = 合格总量/到货总量，据此推导质检结论。
// 一张PO至多一张收货单，重复提交报冲突。
func (s *ReceivingService) SubmitReceipt(ctx context.Context, poID, userID string, req *SubmitReceiptRequest) (*entity.Receipt, error) {
	po, err := s.poRepo.FindByID(ctx, poID)
	if err != nil {
		return nil, err
	}
	if po.Status != entity.POStatusConfirmed {
		return nil, NewStateConflict("采购订单", po.PONumber, entity.POStatusConfirmed, po.Status)
	}

	invoiced, err := s.invoiceRepo.HasApprovedInvoice(ctx, po.ID)
	if err != nil {
		return nil, err
	}
	if !invoiced {
		return nil, NewValidationError("订单 %s 尚无已核准发票，不能收货", po.PONumber)
	}

	var totalDelivered, totalAccepted float64
	items := make([]entity.ReceiptItem, 0, len(req.Items))
	for i, line := range req.Items {
		if math.Abs(line.AcceptedQty+line.RejectedQty-line.DeliveredQty) > qtyTolerance {
			return nil, NewValidationError("行项 %s 数量不平: 合格%.2f + 拒收%.2f != 到货%.2f",
				line.MaterialName, line.AcceptedQty, line.RejectedQty, line.DeliveredQty)
		}
		linePassRate := line.AcceptedQty / line.DeliveredQty * 100
		totalDelivered += line.DeliveredQty
		totalAccepted += line.AcceptedQty

		items = append(items, entity.ReceiptItem{
			ID:           uuid.New().String()[:32],
			MaterialCode: line.MaterialCode,
			MaterialName: line.MaterialName,
			OrderedQty:   line.OrderedQty,
			DeliveredQty: line.DeliveredQty,
			AcceptedQty:  line.AcceptedQty,
			RejectedQty:  line.RejectedQty,
			PassRate:     math.Round(linePassRate*100) / 100,
			SortOrder:    i,
			Notes:        line.Notes,
		})
	}

	passRate := totalAccepted / totalDelivered * 100
	passRate = math.Round(passRate*100) / 100

	code, err := s.receiptRepo.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成收货编码失败: %w", err)
	}

	receipt := &entity.Receipt{
		ID:                  uuid.New().String()[:32],
		ReceiptCode:         code,
		POID:                po.ID,
		SupplierID:          po.SupplierID,
		QualityStatus:       entity.DeriveQualityStatus(passRate),
		PassRate:            passRate,
		InventorySyncStatus: entity.InventorySyncPending,
		ReceivedBy:          userID,
		ReceivedAt:          time.Now(),
		Notes:               req.Notes,
	}
	for i := range items {
		items[i].ReceiptID = receipt.ID
	}
	receipt.Items = items

	if err := s.receiptRepo.Create(ctx, receipt); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateReceipt
		}
		return nil, fmt.Errorf("创建收货单失败: %w", err)
	}

	// 收货事实已落库，订单推进与库存同步都不回滚它
	if _, err := s.poRepo.TransitionStatus(ctx, po.ID, entity.POStatusConfirmed, map[string]interface{}{
		"status": entity.POStatusReceived,
	}); err != nil {
		log.Printf("[PROC] 订单 %s 推进received失败: %v", po.PONumber, err)
	}

	log.Printf("[PROC] 收货: %s PO=%s 通过率%.2f%% 结论=%s",
		receipt.ReceiptCode, po.PONumber, passRate, receipt.QualityStatus)

	go s.syncInventory(context.Background(), receipt)

	return s.receiptRepo.FindByID(ctx, receipt.ID)
}

// syncInventory 推送合格入库增量到库存系统，结果分类写回同步状态
func (s *ReceivingService) syncInventory(ctx context.Context, receipt *entity.Receipt) {
	ctx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	var lines []inventory.StockInLine
	for _, item := range receipt.Items {
		if item.AcceptedQty <= 0 {
			continue
		}
		lines = append(lines, inventory.StockInLine{
			MaterialCode:  item.MaterialCode,
			QuantityDelta: item.AcceptedQty,
			TxType:        "IN",
			Reference:     receipt.ReceiptCode,
		})
	}

	status := entity.InventorySyncSuccess
	errMsg := ""
	switch {
	case len(lines) == 0:
		// 整单拒收或无合格量，无需入库
		status = entity.InventorySyncSkipped
	case s.inventory == nil:
		status = entity.InventorySyncPending
		errMsg = "库存系统未配置"
	default:
		if err := s.inventory.PushStockIn(ctx, lines); err != nil {
			errMsg = err.Error()
			switch {
			case errors.Is(err, inventory.ErrTimeout):
				status = entity.InventorySyncTimeout
			case errors.Is(err, inventory.ErrUnreachable):
				status = entity.InventorySyncPending
			default:
				status = entity.InventorySyncError
			}
			log.Printf("[PROC] 收货单 %s 库存同步失败(%s): %v", receipt.ReceiptCode, status, err)
		}
	}

	if err := s.receiptRepo.UpdateSyncStatus(ctx, receipt.ID, status, errMsg); err != nil {
		log.Printf("[PROC] 收货单 %s 写回同步状态失败: %v", receipt.ReceiptCode, err)
	}
}

// RetryInventorySync 人工重试库存同步（pending/timeout/error状态可重试）
func (s *ReceivingService) RetryInventorySync(ctx context.Context, receiptID string) (*entity.Receipt, error) {
	receipt, err := s.receiptRepo.FindByID(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	switch receipt.InventorySyncStatus {
	case entity.InventorySyncSuccess, entity.InventorySyncSkipped:
		return receipt, nil
	}

	s.syncInventory(ctx, receipt)
	return s.receiptRepo.FindByID(ctx, receiptID)
}

// CompletePO 订单收货后归档 received -> completed
func (s *ReceivingService) CompletePO(ctx context.Context, poID string) (*entity.PurchaseOrder, error) {
	po, err := s.poRepo.FindByID(ctx, poID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ok, err := s.poRepo.TransitionStatus(ctx, poID, entity.POStatusReceived, map[string]interface{}{
		"status":       entity.POStatusCompleted,
		"completed_at": now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewStateConflict("采购订单", po.PONumber, entity.POStatusReceived, po.Status)
	}

	return s.poRepo.FindByID(ctx, poID)
}

// ListPendingReceiptPOs 待收货订单列表：已确认、发票已核准、尚无收货单
func (s *ReceivingService) ListPendingReceiptPOs(ctx context.Context, page, pageSize int) ([]entity.PurchaseOrder, int64, error) {
	return s.poRepo.FindPendingReceipt(ctx, page, pageSize)
}

// GetReceipt 查询收货单详情
func (s *ReceivingService) GetReceipt(ctx context.Context, id string) (*entity.Receipt, error) {
	return s.receiptRepo.FindByID(ctx, id)
}

// GetReceiptByPO 查询订单的收货单
func (s *ReceivingService) GetReceiptByPO(ctx context.Context, poID string) (*entity.Receipt, error) {
	receipt, err := s.receiptRepo.FindByPOID(ctx, poID)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, repository.ErrNotFound
	}
	return receipt, nil
}

// ListReceipts 查询收货单列表
func (s *ReceivingService) ListReceipts(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Receipt, int64, error) {
	return s.receiptRepo.FindAll(ctx, page, pageSize, filters)
}
