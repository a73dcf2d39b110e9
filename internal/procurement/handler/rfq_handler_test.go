package handler

import (
	"net/http"
	"testing"

	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/testutil"
)

// TestRFQDeriveIdempotent 同一PR重复派生返回已有询价单
func TestRFQDeriveIdempotent(t *testing.T) {
	env := setupProcTest(t)
	token := testutil.DefaultTestToken()

	pr := seedApprovedPR(t, env, "pr-rfq-001", 1000)

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/rfqs",
		map[string]interface{}{"pr_id": pr.ID}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	first := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if len(first["items"].([]interface{})) != 2 {
		t.Fatalf("expected 2 RFQ items, got %v", first["items"])
	}

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/rfqs",
		map[string]interface{}{"pr_id": pr.ID}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 on repeat, got %d: %s", w.Code, w.Body.String())
	}
	second := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if first["id"] != second["id"] {
		t.Fatalf("expected same RFQ on repeat derive, got %v vs %v", first["id"], second["id"])
	}

	var count int64
	env.DB.Model(&entity.RFQ{}).Where("pr_id = ?", pr.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 RFQ row, got %d", count)
	}
}

// TestRFQDeriveRequiresApprovedPR 未批准的申请不能派生询价单
func TestRFQDeriveRequiresApprovedPR(t *testing.T) {
	env := setupProcTest(t)
	token := testutil.DefaultTestToken()

	prID, _ := createPRViaAPI(t, env, token)

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/rfqs",
		map[string]interface{}{"pr_id": prID}, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

// TestRFQInviteSupplier 邀请供应商预置报价行并登记通知任务，重复邀请被拒
func TestRFQInviteSupplier(t *testing.T) {
	env := setupProcTest(t)
	token := testutil.DefaultTestToken()

	supplier := testutil.SeedSupplier(t, env.DB, "sup-inv-001", "邀约供应商A")
	pr := seedApprovedPR(t, env, "pr-inv-001", 1000)

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/rfqs",
		map[string]interface{}{"pr_id": pr.ID}, token)
	rfqID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/rfqs/"+rfqID+"/invite",
		map[string]interface{}{"supplier_id": supplier.ID}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("invite: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != entity.RFQStatusQuoting {
		t.Fatalf("expected quoting, got %v", data["status"])
	}

	// 每个行项一条pending报价行
	var quoteCount int64
	env.DB.Model(&entity.SupplierQuote{}).
		Where("rfq_id = ? AND supplier_id = ? AND status = ?", rfqID, supplier.ID, entity.QuoteStatusPending).
		Count(&quoteCount)
	if quoteCount != 2 {
		t.Fatalf("expected 2 pending quotes, got %d", quoteCount)
	}

	// 通知任务已登记
	var taskCount int64
	env.DB.Model(&entity.RFQNotificationTask{}).
		Where("rfq_id = ? AND supplier_id = ?", rfqID, supplier.ID).
		Count(&taskCount)
	if taskCount != 1 {
		t.Fatalf("expected 1 notification task, got %d", taskCount)
	}

	// 重复邀请命中唯一索引
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/rfqs/"+rfqID+"/invite",
		map[string]interface{}{"supplier_id": supplier.ID}, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate invite: expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

// TestRFQInviteRejectsInactiveSupplier 非active供应商不能被邀请
func TestRFQInviteRejectsInactiveSupplier(t *testing.T) {
	env := setupProcTest(t)
	token := testutil.DefaultTestToken()

	supplier := testutil.SeedSupplier(t, env.DB, "sup-black-001", "黑名单供应商")
	env.DB.Model(supplier).Update("status", entity.SupplierStatusBlacklisted)
	pr := seedApprovedPR(t, env, "pr-black-001", 1000)

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/rfqs",
		map[string]interface{}{"pr_id": pr.ID}, token)
	rfqID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/rfqs/"+rfqID+"/invite",
		map[string]interface{}{"supplier_id": supplier.ID}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

// TestQuoteRespondConflict 报价响应只更新pending行，重复响应报冲突
func TestQuoteRespondConflict(t *testing.T) {
	env := setupProcTest(t)
	token := testutil.DefaultTestToken()

	quoteID := createReceivedQuote(t, env, token, "resp", 800)

	// 已响应的行再次响应
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/quotes/"+quoteID+"/respond",
		map[string]interface{}{"total_price": 750, "lead_time_days": 5}, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("double respond: expected 409, got %d: %s", w.Code, w.Body.String())
	}

	// 已响应的行不能撤回
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/quotes/"+quoteID+"/withdraw", nil, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("withdraw responded: expected 409, got %d: %s", w.Code, w.Body.String())
	}

	var quote entity.SupplierQuote
	if err := env.DB.First(&quote, "id = ?", quoteID).Error; err != nil {
		t.Fatalf("load quote: %v", err)
	}
	if quote.Status != entity.QuoteStatusReceived || quote.TotalPrice == nil || *quote.TotalPrice != 800 {
		t.Fatalf("first response should win: status=%s price=%v", quote.Status, quote.TotalPrice)
	}
	if quote.RespondedAt == nil {
		t.Fatal("expected responded_at set")
	}
}

// TestRFQCloseExpiresPendingQuotes 关闭询价单作废未响应报价，关闭幂等
func TestRFQCloseExpiresPendingQuotes(t *testing.T) {
	env := setupProcTest(t)
	token := testutil.DefaultTestToken()

	supplier := testutil.SeedSupplier(t, env.DB, "sup-close-001", "关单供应商")
	pr := seedApprovedPR(t, env, "pr-close-001", 1000)

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/rfqs",
		map[string]interface{}{"pr_id": pr.ID}, token)
	rfqID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/rfqs/"+rfqID+"/invite",
		map[string]interface{}{"supplier_id": supplier.ID}, token)

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/rfqs/"+rfqID+"/close", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if data := testutil.ParseResponse(w)["data"].(map[string]interface{}); data["status"] != entity.RFQStatusClosed {
		t.Fatalf("expected closed, got %v", data["status"])
	}

	var expired int64
	env.DB.Model(&entity.SupplierQuote{}).
		Where("rfq_id = ? AND status = ?", rfqID, entity.QuoteStatusExpired).
		Count(&expired)
	if expired != 2 {
		t.Fatalf("expected 2 expired quotes, got %d", expired)
	}

	// 幂等
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/rfqs/"+rfqID+"/close", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("close again: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// 关闭后不能再邀请
	other := testutil.SeedSupplier(t, env.DB, "sup-close-002", "关单供应商B")
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/rfqs/"+rfqID+"/invite",
		map[string]interface{}{"supplier_id": other.ID}, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("invite after close: expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

// TestRankItemQuotes 同一行项报价按价格升序排名
func TestRankItemQuotes(t *testing.T) {
	env := setupProcTest(t)
	token := testutil.DefaultTestToken()

	supplierA := testutil.SeedSupplier(t, env.DB, "sup-rank-a", "排名供应商A")
	supplierB := testutil.SeedSupplier(t, env.DB, "sup-rank-b", "排名供应商B")
	pr := seedApprovedPR(t, env, "pr-rank-001", 1000)

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/rfqs",
		map[string]interface{}{"pr_id": pr.ID}, token)
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	rfqID := data["id"].(string)
	itemID := data["items"].([]interface{})[0].(map[string]interface{})["id"].(string)

	for _, sup := range []*entity.Supplier{supplierA, supplierB} {
		w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/rfqs/"+rfqID+"/invite",
			map[string]interface{}{"supplier_id": sup.ID}, token)
		if w.Code != http.StatusOK {
			t.Fatalf("invite %s: got %d: %s", sup.Name, w.Code, w.Body.String())
		}
	}

	respond := func(supplierID string, price float64) {
		var quote entity.SupplierQuote
		if err := env.DB.First(&quote, "supplier_id = ? AND rfq_item_id = ?", supplierID, itemID).Error; err != nil {
			t.Fatalf("load quote: %v", err)
		}
		w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/quotes/"+quote.ID+"/respond",
			map[string]interface{}{"total_price": price, "lead_time_days": 7}, token)
		if w.Code != http.StatusOK {
			t.Fatalf("respond: got %d: %s", w.Code, w.Body.String())
		}
	}
	respond(supplierA.ID, 900)
	respond(supplierB.ID, 800)

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/procurement/rfq-items/"+itemID+"/quotes", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("rank: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	ranked := testutil.ParseResponse(w)["data"].([]interface{})
	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked quotes, got %d", len(ranked))
	}
	first := ranked[0].(map[string]interface{})
	if first["supplier_id"] != supplierB.ID || first["total_price"].(float64) != 800 {
		t.Fatalf("expected cheapest quote first, got %v", first)
	}
}

// TestExportQuoteComparison 报价比较表导出为xlsx附件
func TestExportQuoteComparison(t *testing.T) {
	env := setupProcTest(t)
	token := testutil.DefaultTestToken()

	quoteID := createReceivedQuote(t, env, token, "xlsx", 600)

	var quote entity.SupplierQuote
	if err := env.DB.First(&quote, "id = ?", quoteID).Error; err != nil {
		t.Fatalf("load quote: %v", err)
	}

	w := testutil.DoRequest(env.Router, http.MethodGet,
		"/api/v1/procurement/rfqs/"+quote.RFQID+"/quotes/export", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if w.Body.Len() == 0 {
		t.Fatal("expected non-empty xlsx body")
	}
}
