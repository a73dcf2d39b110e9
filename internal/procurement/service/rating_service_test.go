package service

import (
	"context"
	"testing"
	"time"

	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/repository"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/testutil"
)

func TestResponseBucket(t *testing.T) {
	cases := []struct {
		hours float64
		want  float64
	}{
		{10, 5},
		{24, 5},
		{24.1, 4},
		{48, 4},
		{72, 3},
		{96, 2},
		{200, 1},
	}
	for _, c := range cases {
		if got := responseBucket(c.hours); got != c.want {
			t.Errorf("responseBucket(%v) = %v, want %v", c.hours, got, c.want)
		}
	}
}

func TestDeliveryFactor(t *testing.T) {
	cases := []struct {
		lateDays float64
		want     float64
	}{
		{-2, 1.0},
		{0, 1.0},
		{3, 0.8},
		{7, 0.5},
		{8, 0.2},
	}
	for _, c := range cases {
		if got := deliveryFactor(c.lateDays); got != c.want {
			t.Errorf("deliveryFactor(%v) = %v, want %v", c.lateDays, got, c.want)
		}
	}
}

func TestPriceRankScore(t *testing.T) {
	// 独家报价满分
	if got := priceRankScore(1, 1); got != 5 {
		t.Errorf("sole quote = %v, want 5", got)
	}
	// 最低价5分，最高价1分，中间线性
	if got := priceRankScore(1, 3); got != 5 {
		t.Errorf("rank 1/3 = %v, want 5", got)
	}
	if got := priceRankScore(2, 3); got != 3 {
		t.Errorf("rank 2/3 = %v, want 3", got)
	}
	if got := priceRankScore(3, 3); got != 1 {
		t.Errorf("rank 3/3 = %v, want 1", got)
	}
}

func TestClampRating(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{5.7, 5},
		{3.14, 3.1},
		{3.15, 3.2},
	}
	for _, c := range cases {
		if got := clampRating(c.in); got != c.want {
			t.Errorf("clampRating(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func setupRatingTest(t *testing.T) (*repository.Repositories, *RatingService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	return repos, NewRatingService(repos)
}

// TestRecomputeSupplierNoOrders 无订单历史给中性分
func TestRecomputeSupplierNoOrders(t *testing.T) {
	repos, svc := setupRatingTest(t)
	ctx := context.Background()

	supplier := &entity.Supplier{
		ID:     "sup-rate-0",
		Code:   "SUP-RATE-0",
		Name:   "新供应商",
		Status: entity.SupplierStatusActive,
	}
	if err := repos.Supplier.Create(ctx, supplier); err != nil {
		t.Fatalf("seed supplier: %v", err)
	}

	got, err := svc.RecomputeSupplier(ctx, supplier.ID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if got.Rating == nil || *got.Rating != 3.0 {
		t.Fatalf("expected neutral 3.0, got %v", got.Rating)
	}
	if got.RatingComputedAt == nil {
		t.Fatal("expected rating_computed_at set")
	}
}

// TestRecomputeSupplierPerfectHistory 全部子项满分的供应商得5.0
func TestRecomputeSupplierPerfectHistory(t *testing.T) {
	repos, svc := setupRatingTest(t)
	ctx := context.Background()

	supplier := &entity.Supplier{
		ID:     "sup-rate-1",
		Code:   "SUP-RATE-1",
		Name:   "优质供应商",
		Status: entity.SupplierStatusActive,
	}
	if err := repos.Supplier.Create(ctx, supplier); err != nil {
		t.Fatalf("seed supplier: %v", err)
	}

	// 完成的订单：准时交付（确认后5天完成，承诺7天）、发票已传
	confirmed := time.Now().AddDate(0, 0, -10)
	completed := confirmed.AddDate(0, 0, 5)
	due := confirmed.AddDate(0, 0, 90)
	po := &entity.PurchaseOrder{
		ID:              "po-rate-1",
		PONumber:        "PO-RATE-00001",
		SupplierID:      supplier.ID,
		QuoteID:         "quote-rate-1",
		Status:          entity.POStatusCompleted,
		TotalPrice:      1000,
		LeadTimeDays:    7,
		ConfirmedAt:     &confirmed,
		CompletedAt:     &completed,
		InvoiceDueDate:  &due,
		InvoiceUploaded: true,
	}
	if err := repos.PO.Create(ctx, po); err != nil {
		t.Fatalf("seed po: %v", err)
	}

	// 10小时内响应的独家报价
	created := time.Now().Add(-48 * time.Hour)
	responded := created.Add(10 * time.Hour)
	price := 1000.0
	lead := 7
	quote := &entity.SupplierQuote{
		ID:           "quote-rate-1",
		SupplierID:   supplier.ID,
		RFQID:        "rfq-rate-1",
		RFQItemID:    "item-rate-1",
		Status:       entity.QuoteStatusReceived,
		TotalPrice:   &price,
		LeadTimeDays: &lead,
		RespondedAt:  &responded,
		CreatedAt:    created,
	}
	if err := repos.Quote.CreateBatch(ctx, []entity.SupplierQuote{*quote}); err != nil {
		t.Fatalf("seed quote: %v", err)
	}

	got, err := svc.RecomputeSupplier(ctx, supplier.ID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if got.Rating == nil || *got.Rating != 5.0 {
		t.Fatalf("expected 5.0, got %v", got.Rating)
	}
	for name, score := range map[string]*float64{
		"completion": got.CompletionScore,
		"response":   got.ResponseScore,
		"delivery":   got.DeliveryScore,
		"invoice":    got.InvoiceScore,
		"price":      got.PriceScore,
	} {
		if score == nil || *score != 5 {
			t.Errorf("expected %s score 5, got %v", name, score)
		}
	}
}

// TestRecomputeAllSkipsSuppliersWithoutOrders 全量重算只覆盖有订单历史的供应商
func TestRecomputeAllSkipsSuppliersWithoutOrders(t *testing.T) {
	repos, svc := setupRatingTest(t)
	ctx := context.Background()

	withOrders := &entity.Supplier{ID: "sup-all-1", Code: "SUP-ALL-1", Name: "有历史", Status: entity.SupplierStatusActive}
	noOrders := &entity.Supplier{ID: "sup-all-2", Code: "SUP-ALL-2", Name: "无历史", Status: entity.SupplierStatusActive}
	for _, sup := range []*entity.Supplier{withOrders, noOrders} {
		if err := repos.Supplier.Create(ctx, sup); err != nil {
			t.Fatalf("seed supplier: %v", err)
		}
	}

	now := time.Now()
	po := &entity.PurchaseOrder{
		ID:         "po-all-1",
		PONumber:   "PO-ALL-00001",
		SupplierID: withOrders.ID,
		QuoteID:    "quote-all-1",
		Status:     entity.POStatusCancelled,
		TotalPrice: 500,
		CreatedAt:  now,
	}
	if err := repos.PO.Create(ctx, po); err != nil {
		t.Fatalf("seed po: %v", err)
	}

	n, err := svc.RecomputeAll(ctx)
	if err != nil {
		t.Fatalf("recompute all: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 supplier processed, got %d", n)
	}

	rated, _ := repos.Supplier.FindByID(ctx, withOrders.ID)
	if rated.Rating == nil {
		t.Fatal("expected rating written for supplier with orders")
	}
	// 全取消：有效订单数为0，完成率退中性分
	unrated, _ := repos.Supplier.FindByID(ctx, noOrders.ID)
	if unrated.Rating != nil {
		t.Fatalf("expected no rating for supplier without orders, got %v", unrated.Rating)
	}
}
