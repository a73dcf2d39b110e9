package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zp184764679/jzc-systems-sub003/internal/middleware"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/repository"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/service"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/testutil"
)

// 测试用业务参数，与生产默认值一致
const (
	testAutoApproveThreshold = 2000
	testPaymentTermsDays     = 90
)

func setupProcTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)

	supplierSvc := service.NewSupplierService(repos)
	approvalSvc := service.NewApprovalService(repos, testAutoApproveThreshold, testPaymentTermsDays)
	rfqSvc := service.NewRFQService(repos)
	settlementSvc := service.NewSettlementService(repos, testPaymentTermsDays)
	receivingSvc := service.NewReceivingService(repos)
	notificationSvc := service.NewNotificationService(repos, 5, 5*time.Minute)
	ratingSvc := service.NewRatingService(repos)

	h := NewHandlers(supplierSvc, approvalSvc, rfqSvc, settlementSvc, receivingSvc, notificationSvc, ratingSvc)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1/procurement")
	registerProcTestRoutes(api, h)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func registerProcTestRoutes(api *gin.RouterGroup, h *Handlers) {
	api.GET("/suppliers", h.Supplier.ListSuppliers)
	api.POST("/suppliers", h.Supplier.CreateSupplier)
	api.GET("/suppliers/:id", h.Supplier.GetSupplier)
	api.PUT("/suppliers/:id", h.Supplier.UpdateSupplier)
	api.POST("/suppliers/:id/recompute-rating", h.Supplier.RecomputeRating)
	api.POST("/suppliers/recompute-ratings", middleware.RequireRole("procurement_admin"), h.Supplier.RecomputeAllRatings)

	api.GET("/purchase-requests", h.PR.ListPRs)
	api.POST("/purchase-requests", h.PR.CreatePR)
	api.GET("/purchase-requests/:id", h.PR.GetPR)
	api.POST("/purchase-requests/:id/submit", h.PR.SubmitPR)
	api.POST("/purchase-requests/:id/supervisor-approve", middleware.RequireRole("supervisor"), h.PR.SupervisorApprove)
	api.POST("/purchase-requests/:id/prices", middleware.RequireRole("supervisor"), h.PR.FillPrices)
	api.POST("/purchase-requests/:id/admin-approve", middleware.RequireRole("procurement_admin"), h.PR.AdminApprove)
	api.POST("/purchase-requests/:id/super-admin-approve", middleware.RequireRole("super_admin"), h.PR.SuperAdminApprove)
	api.POST("/purchase-requests/:id/reject", middleware.RequireRole("supervisor", "procurement_admin"), h.PR.RejectPR)
	api.POST("/purchase-requests/:id/cancel", h.PR.CancelPR)

	api.GET("/rfqs", h.RFQ.ListRFQs)
	api.POST("/rfqs", h.RFQ.CreateRFQ)
	api.GET("/rfqs/:id", h.RFQ.GetRFQ)
	api.POST("/rfqs/:id/classify", h.RFQ.ClassifyRFQ)
	api.POST("/rfqs/:id/invite", h.RFQ.InviteSupplier)
	api.POST("/rfqs/:id/close", h.RFQ.CloseRFQ)
	api.GET("/rfqs/:id/quotes", h.RFQ.ListQuotes)
	api.GET("/rfqs/:id/quotes/export", h.RFQ.ExportQuoteComparison)
	api.GET("/rfq-items/:id/quotes", h.RFQ.RankItemQuotes)
	api.GET("/notifications/failed", h.RFQ.ListFailedNotifications)

	api.POST("/quotes/:id/respond", h.RFQ.SubmitQuote)
	api.POST("/quotes/:id/withdraw", h.RFQ.WithdrawQuote)
	api.POST("/quotes/:id/accept", middleware.RequireRole("procurement_admin"), h.PO.AcceptQuote)

	api.GET("/purchase-orders", h.PO.ListPOs)
	api.GET("/purchase-orders/:id", h.PO.GetPO)
	api.POST("/purchase-orders/:id/submit", h.PO.SubmitPO)
	api.POST("/purchase-orders/:id/admin-confirm", middleware.RequireRole("procurement_admin"), h.PO.ConfirmPOAdmin)
	api.POST("/purchase-orders/:id/super-admin-confirm", middleware.RequireRole("super_admin"), h.PO.ConfirmPOSuperAdmin)
	api.POST("/purchase-orders/:id/cancel", h.PO.CancelPO)
	api.POST("/purchase-orders/:id/invoice-file", h.PO.UploadInvoiceFile)
	api.POST("/purchase-orders/:id/receipt", h.Receipt.SubmitReceipt)
	api.GET("/purchase-orders/:id/receipt", h.Receipt.GetReceiptByPO)
	api.POST("/purchase-orders/:id/complete", h.Receipt.CompletePO)

	api.GET("/invoices", h.Invoice.ListInvoices)
	api.POST("/invoices", h.Invoice.CreateInvoice)
	api.GET("/invoices/:id", h.Invoice.GetInvoice)
	api.POST("/invoices/:id/approve", middleware.RequireRole("procurement_admin"), h.Invoice.ApproveInvoice)
	api.POST("/invoices/:id/reject", middleware.RequireRole("procurement_admin"), h.Invoice.RejectInvoice)

	api.GET("/receipts", h.Receipt.ListReceipts)
	api.GET("/receipts/pending-pos", h.Receipt.ListPendingReceiptPOs)
	api.GET("/receipts/:id", h.Receipt.GetReceipt)
	api.POST("/receipts/:id/retry-sync", h.Receipt.RetryInventorySync)
}

// seedApprovedPR 直接落库一张已批准、已定价的采购申请（两个行项，各占一半金额）
func seedApprovedPR(t *testing.T, env *testutil.TestEnv, id string, total float64) *entity.PurchaseRequest {
	t.Helper()
	half := total / 2
	now := time.Now()
	pr := &entity.PurchaseRequest{
		ID:          id,
		PRCode:      "PR-TEST-" + id,
		Title:       "测试采购申请",
		Department:  "硬件部",
		Status:      entity.PRStatusApproved,
		TotalAmount: &total,
		RequestedBy: "test-user-001",
		CreatedAt:   now,
		UpdatedAt:   now,
		Items: []entity.PRItem{
			{
				ID:            id + "-i1",
				PRID:          id,
				MaterialName:  "铝合金外壳",
				Specification: "6061 CNC阳极氧化",
				Quantity:      1,
				Unit:          "pcs",
				UnitPrice:     &half,
				TotalAmount:   &half,
				SortOrder:     0,
			},
			{
				ID:           id + "-i2",
				PRID:         id,
				MaterialName: "钢化玻璃面板",
				Quantity:     1,
				Unit:         "pcs",
				UnitPrice:    &half,
				TotalAmount:  &half,
				SortOrder:    1,
			},
		},
	}
	if err := env.DB.Create(pr).Error; err != nil {
		t.Fatalf("Failed to seed approved PR: %v", err)
	}
	return pr
}

// seedConfirmedPO 直接落库一张已确认待收货的采购订单
func seedConfirmedPO(t *testing.T, env *testutil.TestEnv, id, supplierID string, price float64) *entity.PurchaseOrder {
	t.Helper()
	now := time.Now()
	due := now.AddDate(0, 0, testPaymentTermsDays)
	po := &entity.PurchaseOrder{
		ID:             id,
		PONumber:       "PO-TEST-" + id,
		SupplierID:     supplierID,
		QuoteID:        "quote-" + id,
		RFQID:          "rfq-" + id,
		PRID:           "pr-" + id,
		Status:         entity.POStatusConfirmed,
		TotalPrice:     price,
		LeadTimeDays:   7,
		PaymentTerms:   "90天账期",
		ConfirmedAt:    &now,
		InvoiceDueDate: &due,
		CreatedBy:      "test-user-001",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := env.DB.Create(po).Error; err != nil {
		t.Fatalf("Failed to seed confirmed PO: %v", err)
	}
	return po
}

// seedApprovedInvoice 直接落库一张已核准的按单发票，使订单具备收货资格
func seedApprovedInvoice(t *testing.T, env *testutil.TestEnv, id string, po *entity.PurchaseOrder) *entity.Invoice {
	t.Helper()
	now := time.Now()
	inv := &entity.Invoice{
		ID:             id,
		InvoiceCode:    "INV-TEST-" + id,
		SupplierID:     po.SupplierID,
		SettlementType: entity.SettlementPerOrder,
		POID:           &po.ID,
		Status:         entity.InvoiceStatusApproved,
		Amount:         po.TotalPrice,
		ApprovedAt:     &now,
	}
	if err := env.DB.Create(inv).Error; err != nil {
		t.Fatalf("Failed to seed approved invoice: %v", err)
	}
	return inv
}

// createReceivedQuote 走API把一条报价推进到received状态，返回报价ID
// 路径：批准PR -> 派生询价单 -> 邀请供应商 -> 供应商响应
func createReceivedQuote(t *testing.T, env *testutil.TestEnv, token, tag string, price float64) string {
	t.Helper()
	supplier := testutil.SeedSupplier(t, env.DB, "sup-"+tag, "测试供应商"+tag)
	pr := seedApprovedPR(t, env, "pr-"+tag, price)

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/rfqs",
		map[string]interface{}{"pr_id": pr.ID}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("derive RFQ: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	rfqID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/rfqs/"+rfqID+"/invite",
		map[string]interface{}{"supplier_id": supplier.ID}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("invite supplier: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/procurement/rfqs/"+rfqID+"/quotes", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("list quotes: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	quotes := testutil.ParseResponse(w)["data"].([]interface{})
	if len(quotes) == 0 {
		t.Fatal("expected pending quotes after invite")
	}
	quoteID := quotes[0].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/quotes/"+quoteID+"/respond",
		map[string]interface{}{"total_price": price, "lead_time_days": 7, "payment_terms": "月结90天"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("respond quote: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	return quoteID
}
