package service

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/repository"
)

// =============================================================================
// RatingService — 供应商综合评分
// 五个子项独立归一到0-5后加权合成：完成率40%、响应速度20%、
// 交付准时20%、发票合规10%、价格竞争力10%。
// 无订单历史给中性分3.0，缺数据的子项同样取中性分。
// 评分是批量任务的计算产物，直接写回供应商记录。
// =============================================================================

const (
	ratingNeutral      = 3.0
	ratingSweepLockKey = "proc:lock:rating_sweep"
	ratingSweepLockTTL = 10 * time.Minute
)

// RatingService 评分服务
type RatingService struct {
	supplierRepo *repository.SupplierRepository
	poRepo       *repository.PORepository
	quoteRepo    *repository.QuoteRepository
	redisClient  *redis.Client
}

// NewRatingService 创建评分服务
func NewRatingService(repos *repository.Repositories) *RatingService {
	return &RatingService{
		supplierRepo: repos.Supplier,
		poRepo:       repos.PO,
		quoteRepo:    repos.Quote,
	}
}

// SetRedisClient 注入redis客户端（多实例部署时互斥批量重算）
func (s *RatingService) SetRedisClient(client *redis.Client) {
	s.redisClient = client
}

// RecomputeAll 全量重算有订单历史的供应商评分，返回处理数量
func (s *RatingService) RecomputeAll(ctx context.Context) (int, error) {
	if s.redisClient != nil {
		token, ok := acquireSweepLock(ctx, s.redisClient, ratingSweepLockKey, ratingSweepLockTTL)
		if !ok {
			return 0, nil
		}
		defer releaseSweepLock(ctx, s.redisClient, ratingSweepLockKey, token)
	}

	ids, err := s.supplierRepo.FindIDsWithOrders(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, id := range ids {
		if _, err := s.RecomputeSupplier(ctx, id); err != nil {
			log.Printf("[PROC] 供应商 %s 评分重算失败: %v", id, err)
			continue
		}
		processed++
	}
	return processed, nil
}

// RecomputeSupplier 重算单个供应商评分
func (s *RatingService) RecomputeSupplier(ctx context.Context, supplierID string) (*entity.Supplier, error) {
	supplier, err := s.supplierRepo.FindByID(ctx, supplierID)
	if err != nil {
		return nil, err
	}

	pos, err := s.poRepo.FindBySupplier(ctx, supplierID)
	if err != nil {
		return nil, err
	}

	var rating float64
	sub := map[string]float64{}
	if len(pos) == 0 {
		rating = ratingNeutral
	} else {
		quotes, err := s.quoteRepo.FindBySupplier(ctx, supplierID)
		if err != nil {
			return nil, err
		}

		completion := s.completionScore(pos)
		response := s.responseScore(quotes)
		delivery := s.deliveryScore(pos)
		invoice := s.invoiceScore(pos)
		price, err := s.priceScore(ctx, quotes)
		if err != nil {
			return nil, err
		}

		rating = 0.4*completion + 0.2*response + 0.2*delivery + 0.1*invoice + 0.1*price
		sub = map[string]float64{
			"completion_score": round2(completion),
			"response_score":   round2(response),
			"delivery_score":   round2(delivery),
			"invoice_score":    round2(invoice),
			"price_score":      round2(price),
		}
	}

	rating = clampRating(rating)
	if err := s.supplierRepo.UpdateRating(ctx, supplierID, rating, sub); err != nil {
		return nil, err
	}

	log.Printf("[PROC] 供应商评分: %s -> %.1f", supplier.Name, rating)
	return s.supplierRepo.FindByID(ctx, supplierID)
}

// completionScore 完成率子项：completed / (total - cancelled)
func (s *RatingService) completionScore(pos []entity.PurchaseOrder) float64 {
	total, cancelled, completed := 0, 0, 0
	for _, po := range pos {
		total++
		switch po.Status {
		case entity.POStatusCancelled:
			cancelled++
		case entity.POStatusCompleted:
			completed++
		}
	}
	denom := total - cancelled
	if denom <= 0 {
		return ratingNeutral
	}
	return float64(completed) / float64(denom) * 5
}

// responseScore 响应速度子项：邀请到响应的平均时长分档
func (s *RatingService) responseScore(quotes []entity.SupplierQuote) float64 {
	var totalHours float64
	n := 0
	for _, q := range quotes {
		if q.RespondedAt == nil {
			continue
		}
		totalHours += q.RespondedAt.Sub(q.CreatedAt).Hours()
		n++
	}
	if n == 0 {
		return ratingNeutral
	}
	return responseBucket(totalHours / float64(n))
}

// responseBucket 平均响应时长分档打分
func responseBucket(meanHours float64) float64 {
	switch {
	case meanHours <= 24:
		return 5
	case meanHours <= 48:
		return 4
	case meanHours <= 72:
		return 3
	case meanHours <= 96:
		return 2
	default:
		return 1
	}
}

// deliveryScore 交付准时子项：实际完成对比确认时间+承诺交期
func (s *RatingService) deliveryScore(pos []entity.PurchaseOrder) float64 {
	var totalFactor float64
	n := 0
	for _, po := range pos {
		if po.Status != entity.POStatusCompleted || po.ConfirmedAt == nil || po.CompletedAt == nil {
			continue
		}
		due := po.ConfirmedAt.AddDate(0, 0, po.LeadTimeDays)
		lateDays := po.CompletedAt.Sub(due).Hours() / 24
		totalFactor += deliveryFactor(lateDays)
		n++
	}
	if n == 0 {
		return ratingNeutral
	}
	return totalFactor / float64(n) * 5
}

// deliveryFactor 单笔订单准时系数
func deliveryFactor(lateDays float64) float64 {
	switch {
	case lateDays <= 0:
		return 1.0
	case lateDays <= 3:
		return 0.8
	case lateDays <= 7:
		return 0.5
	default:
		return 0.2
	}
}

// invoiceScore 发票合规子项：到期订单中发票已上传的比例
func (s *RatingService) invoiceScore(pos []entity.PurchaseOrder) float64 {
	uploaded, n := 0, 0
	for _, po := range pos {
		if po.InvoiceDueDate == nil {
			continue
		}
		n++
		if po.InvoiceUploaded {
			uploaded++
		}
	}
	if n == 0 {
		return ratingNeutral
	}
	return float64(uploaded) / float64(n) * 5
}

// priceScore 价格竞争力子项：同行项报价中的价格排名线性映射到5..1
func (s *RatingService) priceScore(ctx context.Context, quotes []entity.SupplierQuote) (float64, error) {
	var total float64
	n := 0
	for _, q := range quotes {
		ranked, err := s.quoteRepo.FindByItemRanked(ctx, q.RFQItemID)
		if err != nil {
			return 0, err
		}
		rank := 0
		for i, r := range ranked {
			if r.ID == q.ID {
				rank = i + 1
				break
			}
		}
		if rank == 0 {
			continue
		}
		total += priceRankScore(rank, len(ranked))
		n++
	}
	if n == 0 {
		return ratingNeutral, nil
	}
	return total / float64(n), nil
}

// priceRankScore 排名线性打分，最低价5分最高价1分，独家报价5分
func priceRankScore(rank, n int) float64 {
	if n <= 1 {
		return 5
	}
	return 5 - 4*float64(rank-1)/float64(n-1)
}

// clampRating 合成分截断到[0,5]并保留1位小数
func clampRating(x float64) float64 {
	if x < 0 {
		x = 0
	}
	if x > 5 {
		x = 5
	}
	return math.Round(x*10) / 10
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
