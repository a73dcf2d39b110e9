package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/repository"
	"github.com/zp184764679/jzc-systems-sub003/internal/shared/classifier"
	"gorm.io/gorm"
)

// =============================================================================
// RFQService — 询价引擎
// 从已批准PR一比一派生询价单，邀请供应商报价并接收响应。
// 报价行唯一键(supplier_id, rfq_id, rfq_item_id)在存储层强制，
// 同一分类下的不同物料各自独立成行。
// =============================================================================

// Classifier 物料分类服务
type Classifier interface {
	Classify(ctx context.Context, name, spec, remark string) (*classifier.Result, error)
}

// RFQService 询价服务
type RFQService struct {
	rfqRepo      *repository.RFQRepository
	prRepo       *repository.PRRepository
	quoteRepo    *repository.QuoteRepository
	supplierRepo *repository.SupplierRepository
	notifyRepo   *repository.NotificationRepository
	classifier   Classifier
}

// NewRFQService 创建询价服务
func NewRFQService(repos *repository.Repositories) *RFQService {
	return &RFQService{
		rfqRepo:      repos.RFQ,
		prRepo:       repos.PR,
		quoteRepo:    repos.Quote,
		supplierRepo: repos.Supplier,
		notifyRepo:   repos.Notification,
	}
}

// SetClassifier 注入分类服务客户端（未注入时跳过分类）
func (s *RFQService) SetClassifier(c Classifier) {
	s.classifier = c
}

// === 请求结构 ===

// CreateRFQRequest 创建询价单请求
type CreateRFQRequest struct {
	PRID     string     `json:"pr_id" binding:"required"`
	Deadline *time.Time `json:"deadline"`
}

// InviteSupplierRequest 邀请供应商报价请求
type InviteSupplierRequest struct {
	SupplierID string `json:"supplier_id" binding:"required"`
}

// SubmitQuoteRequest 供应商报价响应请求
type SubmitQuoteRequest struct {
	TotalPrice   float64                      `json:"total_price" binding:"required,gt=0"`
	LeadTimeDays int                          `json:"lead_time_days" binding:"required,gt=0"`
	PaymentTerms string                       `json:"payment_terms"`
	Breakdown    []entity.QuoteBreakdownEntry `json:"breakdown"`
	Notes        string                       `json:"notes"`
}

// === 询价单 ===

// CreateFromPR 从已批准PR派生询价单
// 同一PR重复调用返回已有询价单，不重复派生（pr_id唯一索引兜底）
func (s *RFQService) CreateFromPR(ctx context.Context, userID string, req *CreateRFQRequest) (*entity.RFQ, error) {
	pr, err := s.prRepo.FindByID(ctx, req.PRID)
	if err != nil {
		return nil, err
	}
	if pr.Status != entity.PRStatusApproved {
		return nil, NewStateConflict("采购申请", pr.PRCode, entity.PRStatusApproved, pr.Status)
	}

	if existing, err := s.rfqRepo.FindByPRID(ctx, req.PRID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	code, err := s.rfqRepo.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成询价编码失败: %w", err)
	}

	rfq := &entity.RFQ{
		ID:        uuid.New().String()[:32],
		RFQCode:   code,
		PRID:      pr.ID,
		Status:    entity.RFQStatusOpen,
		Deadline:  req.Deadline,
		CreatedBy: userID,
	}
	// 行项与PR行项一比一，不按分类聚合
	for i, item := range pr.Items {
		rfq.Items = append(rfq.Items, entity.RFQItem{
			ID:            uuid.New().String()[:32],
			RFQID:         rfq.ID,
			PRItemID:      item.ID,
			MaterialName:  item.MaterialName,
			Specification: item.Specification,
			Quantity:      item.Quantity,
			Unit:          item.Unit,
			SortOrder:     i,
		})
	}

	if err := s.rfqRepo.Create(ctx, rfq); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 并发派生输家：读回赢家创建的那条
			return s.rfqRepo.FindByPRID(ctx, req.PRID)
		}
		return nil, fmt.Errorf("创建询价单失败: %w", err)
	}

	log.Printf("[PROC] 从申请派生询价单: %s -> %s (%d行)", pr.PRCode, rfq.RFQCode, len(rfq.Items))

	// 分类异步执行，失败不阻塞派生
	if s.classifier != nil {
		go func() {
			if err := s.ClassifyRFQ(context.Background(), rfq.ID); err != nil {
				log.Printf("[PROC] 询价单 %s 分类失败: %v", rfq.RFQCode, err)
			}
		}()
	}

	return s.rfqRepo.FindByID(ctx, rfq.ID)
}

// ClassifyRFQ 对询价行项做物料分类
// 已分类的询价单重跑是no-op，分类结果存储后不再重算
func (s *RFQService) ClassifyRFQ(ctx context.Context, rfqID string) error {
	rfq, err := s.rfqRepo.FindByID(ctx, rfqID)
	if err != nil {
		return err
	}
	if rfq.Classified {
		return nil
	}
	if s.classifier == nil {
		return NewValidationError("分类服务未配置")
	}

	for i := range rfq.Items {
		result, err := s.classifier.Classify(ctx, rfq.Items[i].MaterialName, rfq.Items[i].Specification, "")
		if err != nil {
			return fmt.Errorf("行项 %s 分类失败: %w", rfq.Items[i].MaterialName, err)
		}
		rfq.Items[i].Category = result.Category
		rfq.Items[i].MajorCategory = result.MajorCategory
		rfq.Items[i].MinorCategory = result.MinorCategory
		rfq.Items[i].CategorySource = result.Source
		score := result.Score
		rfq.Items[i].CategoryScore = &score

		if err := s.rfqRepo.UpdateItem(ctx, &rfq.Items[i]); err != nil {
			return fmt.Errorf("写回分类结果失败: %w", err)
		}
	}

	if _, err := s.rfqRepo.MarkClassified(ctx, rfqID); err != nil {
		return err
	}
	return nil
}

// InviteSupplier 邀请供应商对询价单报价
// 为每个行项预置一条pending报价行，重复邀请同一供应商被唯一索引拒绝
func (s *RFQService) InviteSupplier(ctx context.Context, rfqID string, req *InviteSupplierRequest) (*entity.RFQ, error) {
	rfq, err := s.rfqRepo.FindByID(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if rfq.Status == entity.RFQStatusClosed {
		return nil, NewStateConflict("询价单", rfq.RFQCode, "open/quoting", rfq.Status)
	}
	if len(rfq.Items) == 0 {
		return nil, NewValidationError("询价单 %s 没有行项", rfq.RFQCode)
	}

	supplier, err := s.supplierRepo.FindByID(ctx, req.SupplierID)
	if err != nil {
		return nil, err
	}
	if supplier.Status != entity.SupplierStatusActive {
		return nil, NewValidationError("供应商 %s 状态为 %s，不能邀请报价", supplier.Name, supplier.Status)
	}

	quotes := make([]entity.SupplierQuote, 0, len(rfq.Items))
	for _, item := range rfq.Items {
		quotes = append(quotes, entity.SupplierQuote{
			ID:         uuid.New().String()[:32],
			SupplierID: supplier.ID,
			RFQID:      rfq.ID,
			RFQItemID:  item.ID,
			Status:     entity.QuoteStatusPending,
		})
	}
	if err := s.quoteRepo.CreateBatch(ctx, quotes); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateQuote
		}
		return nil, fmt.Errorf("预置报价行失败: %w", err)
	}

	// 通知任务立即可投递，由调度器负责发送与退避重试
	task := &entity.RFQNotificationTask{
		ID:          uuid.New().String()[:32],
		RFQID:       rfq.ID,
		SupplierID:  supplier.ID,
		Status:      entity.NotifyStatusPending,
		NextRetryAt: time.Now(),
	}
	if err := s.notifyRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("创建通知任务失败: %w", err)
	}

	if rfq.Status == entity.RFQStatusOpen {
		rfq.Status = entity.RFQStatusQuoting
		if err := s.rfqRepo.Update(ctx, rfq); err != nil {
			return nil, err
		}
	}

	log.Printf("[PROC] 邀请供应商报价: %s <- %s (%d行)", rfq.RFQCode, supplier.Name, len(quotes))
	return s.rfqRepo.FindByID(ctx, rfqID)
}

// SubmitQuote 供应商提交报价响应
// 只更新邀请时预置的那条pending行，已响应或已撤回的行报状态冲突
func (s *RFQService) SubmitQuote(ctx context.Context, quoteID string, req *SubmitQuoteRequest) (*entity.SupplierQuote, error) {
	quote, err := s.quoteRepo.FindByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	breakdown := entity.QuoteBreakdown(req.Breakdown)
	ok, err := s.quoteRepo.SubmitResponse(ctx, quoteID, map[string]interface{}{
		"status":        entity.QuoteStatusReceived,
		"total_price":   req.TotalPrice,
		"lead_time_days": req.LeadTimeDays,
		"payment_terms": req.PaymentTerms,
		"breakdown":     breakdown,
		"responded_at":  now,
		"notes":         req.Notes,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewStateConflict("报价", quote.ID, entity.QuoteStatusPending, quote.Status)
	}

	return s.quoteRepo.FindByID(ctx, quoteID)
}

// WithdrawQuote 供应商撤回未响应的报价行
func (s *RFQService) WithdrawQuote(ctx context.Context, quoteID string) (*entity.SupplierQuote, error) {
	quote, err := s.quoteRepo.FindByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	ok, err := s.quoteRepo.SubmitResponse(ctx, quoteID, map[string]interface{}{
		"status": entity.QuoteStatusWithdrawn,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewStateConflict("报价", quote.ID, entity.QuoteStatusPending, quote.Status)
	}
	return s.quoteRepo.FindByID(ctx, quoteID)
}

// CloseRFQ 关闭询价单，剩余未响应的报价行作废
func (s *RFQService) CloseRFQ(ctx context.Context, rfqID string) (*entity.RFQ, error) {
	rfq, err := s.rfqRepo.FindByID(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if rfq.Status == entity.RFQStatusClosed {
		return rfq, nil
	}

	quotes, err := s.quoteRepo.FindByRFQ(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	for _, q := range quotes {
		if q.Status == entity.QuoteStatusPending {
			if _, err := s.quoteRepo.SubmitResponse(ctx, q.ID, map[string]interface{}{
				"status": entity.QuoteStatusExpired,
			}); err != nil {
				return nil, err
			}
		}
	}

	rfq.Status = entity.RFQStatusClosed
	if err := s.rfqRepo.Update(ctx, rfq); err != nil {
		return nil, err
	}

	log.Printf("[PROC] 关闭询价单: %s", rfq.RFQCode)
	return rfq, nil
}

// GetRFQ 查询询价单详情
func (s *RFQService) GetRFQ(ctx context.Context, id string) (*entity.RFQ, error) {
	return s.rfqRepo.FindByID(ctx, id)
}

// ListRFQs 查询询价单列表
func (s *RFQService) ListRFQs(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.RFQ, int64, error) {
	return s.rfqRepo.FindAll(ctx, page, pageSize, filters)
}

// ListQuotes 查询询价单下全部报价（按行项和价格排序）
func (s *RFQService) ListQuotes(ctx context.Context, rfqID string) ([]entity.SupplierQuote, error) {
	if _, err := s.rfqRepo.FindByID(ctx, rfqID); err != nil {
		return nil, err
	}
	return s.quoteRepo.FindByRFQ(ctx, rfqID)
}

// RankItemQuotes 单个行项的报价排名（价格升序，同价先响应者优先）
func (s *RFQService) RankItemQuotes(ctx context.Context, rfqItemID string) ([]entity.SupplierQuote, error) {
	return s.quoteRepo.FindByItemRanked(ctx, rfqItemID)
}

// ExportQuoteComparison 导出报价比较表(xlsx)
func (s *RFQService) ExportQuoteComparison(ctx context.Context, rfqID string) (*excelize.File, error) {
	rfq, err := s.rfqRepo.FindByID(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	quotes, err := s.quoteRepo.FindByRFQ(ctx, rfqID)
	if err != nil {
		return nil, err
	}

	itemName := make(map[string]string, len(rfq.Items))
	for _, item := range rfq.Items {
		itemName[item.ID] = item.MaterialName
	}

	f := excelize.NewFile()
	sheet := "报价比较"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"物料名称", "供应商", "状态", "报价(元)", "交期(天)", "付款条件", "响应时间"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	f.SetColWidth(sheet, "A", "B", 24)
	f.SetColWidth(sheet, "C", "G", 16)

	row := 2
	for _, q := range quotes {
		supplierName := q.SupplierID
		if q.Supplier != nil {
			supplierName = q.Supplier.Name
		}
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), itemName[q.RFQItemID])
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), supplierName)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), q.Status)
		if q.TotalPrice != nil {
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), *q.TotalPrice)
		}
		if q.LeadTimeDays != nil {
			f.SetCellValue(sheet, fmt.Sprintf("E%d", row), *q.LeadTimeDays)
		}
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), q.PaymentTerms)
		if q.RespondedAt != nil {
			f.SetCellValue(sheet, fmt.Sprintf("G%d", row), q.RespondedAt.Format("2006-01-02 15:04"))
		}
		row++
	}

	return f, nil
}
