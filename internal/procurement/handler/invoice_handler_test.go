package handler

import (
	"net/http"
	"testing"

	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/testutil"
)

// TestPerOrderInvoiceApproveWithWarning 单票结算金额不一致不阻断核准，返回提示
func TestPerOrderInvoiceApproveWithWarning(t *testing.T) {
	env := setupProcTest(t)
	token := testutil.DefaultTestToken()

	supplier := testutil.SeedSupplier(t, env.DB, "sup-inv-p1", "结算供应商A")
	po := seedConfirmedPO(t, env, "po-inv-p1", supplier.ID, 1000)

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/invoices",
		map[string]interface{}{
			"supplier_id":     supplier.ID,
			"settlement_type": entity.SettlementPerOrder,
			"po_id":           po.ID,
			"amount":          1200,
		}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create invoice: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	invoiceID := data["id"].(string)
	if data["status"] != entity.InvoiceStatusPending {
		t.Fatalf("expected pending, got %v", data["status"])
	}
	if data["due_date"] == nil {
		t.Fatal("expected default due date from payment terms")
	}

	w = testutil.DoRequest(env.Router, http.MethodPost,
		"/api/v1/procurement/invoices/"+invoiceID+"/approve", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)["data"].(map[string]interface{})
	inv := resp["invoice"].(map[string]interface{})
	if inv["status"] != entity.InvoiceStatusApproved {
		t.Fatalf("expected approved, got %v", inv["status"])
	}
	if resp["warning"].(string) == "" {
		t.Fatal("expected amount mismatch warning")
	}

	// 已核准发票不能再核准
	w = testutil.DoRequest(env.Router, http.MethodPost,
		"/api/v1/procurement/invoices/"+invoiceID+"/approve", nil, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("approve again: expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

// TestPerOrderInvoiceRequiresPO 单票结算必须指定订单
func TestPerOrderInvoiceRequiresPO(t *testing.T) {
	env := setupProcTest(t)
	token := testutil.DefaultTestToken()

	supplier := testutil.SeedSupplier(t, env.DB, "sup-inv-p2", "结算供应商B")

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/invoices",
		map[string]interface{}{
			"supplier_id":     supplier.ID,
			"settlement_type": entity.SettlementPerOrder,
			"amount":          500,
		}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

// TestMonthlyInvoiceSplitValidation 月结拆分金额合计不得超过票面金额
func TestMonthlyInvoiceSplitValidation(t *testing.T) {
	env := setupProcTest(t)
	token := testutil.DefaultTestToken()

	supplier := testutil.SeedSupplier(t, env.DB, "sup-inv-m1", "月结供应商A")
	po1 := seedConfirmedPO(t, env, "po-inv-m1", supplier.ID, 1000)
	po2 := seedConfirmedPO(t, env, "po-inv-m2", supplier.ID, 1000)

	// 拆分1000+1000超过票面1500
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/invoices",
		map[string]interface{}{
			"supplier_id":       supplier.ID,
			"settlement_type":   entity.SettlementMonthly,
			"amount":            1500,
			"settlement_period": "2026-08",
			"po_links": []map[string]interface{}{
				{"po_id": po1.ID, "po_amount": 1000},
				{"po_id": po2.ID, "po_amount": 1000},
			},
		}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("oversplit: expected 400, got %d: %s", w.Code, w.Body.String())
	}

	// 拆分700+800与票面一致
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/invoices",
		map[string]interface{}{
			"supplier_id":       supplier.ID,
			"settlement_type":   entity.SettlementMonthly,
			"amount":            1500,
			"settlement_period": "2026-08",
			"po_links": []map[string]interface{}{
				{"po_id": po1.ID, "po_amount": 700},
				{"po_id": po2.ID, "po_amount": 800},
			},
		}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create monthly: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	invoiceID := data["id"].(string)

	var linkCount int64
	env.DB.Model(&entity.InvoicePOLink{}).Where("invoice_id = ?", invoiceID).Count(&linkCount)
	if linkCount != 2 {
		t.Fatalf("expected 2 PO links, got %d", linkCount)
	}

	// 拆分合计等于票面金额，核准无提示
	w = testutil.DoRequest(env.Router, http.MethodPost,
		"/api/v1/procurement/invoices/"+invoiceID+"/approve", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if resp["warning"].(string) != "" {
		t.Fatalf("unexpected warning: %v", resp["warning"])
	}
}

// TestMonthlyInvoiceRequiresLinks 月结发票至少关联一张订单
func TestMonthlyInvoiceRequiresLinks(t *testing.T) {
	env := setupProcTest(t)
	token := testutil.DefaultTestToken()

	supplier := testutil.SeedSupplier(t, env.DB, "sup-inv-m2", "月结供应商B")

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/invoices",
		map[string]interface{}{
			"supplier_id":     supplier.ID,
			"settlement_type": entity.SettlementMonthly,
			"amount":          500,
		}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

// TestInvoiceSupplierMismatch 不能把别家供应商的订单挂到发票上
func TestInvoiceSupplierMismatch(t *testing.T) {
	env := setupProcTest(t)
	token := testutil.DefaultTestToken()

	supplierA := testutil.SeedSupplier(t, env.DB, "sup-inv-x1", "结算供应商X")
	supplierB := testutil.SeedSupplier(t, env.DB, "sup-inv-x2", "结算供应商Y")
	poOfB := seedConfirmedPO(t, env, "po-inv-x1", supplierB.ID, 1000)

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/invoices",
		map[string]interface{}{
			"supplier_id":     supplierA.ID,
			"settlement_type": entity.SettlementPerOrder,
			"po_id":           poOfB.ID,
			"amount":          1000,
		}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

// TestRejectInvoice 驳回发票需要原因，驳回后不能核准
func TestRejectInvoice(t *testing.T) {
	env := setupProcTest(t)
	token := testutil.DefaultTestToken()

	supplier := testutil.SeedSupplier(t, env.DB, "sup-inv-r1", "结算供应商R")
	po := seedConfirmedPO(t, env, "po-inv-r1", supplier.ID, 1000)

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/procurement/invoices",
		map[string]interface{}{
			"supplier_id":     supplier.ID,
			"settlement_type": entity.SettlementPerOrder,
			"po_id":           po.ID,
			"amount":          1000,
		}, token)
	invoiceID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(env.Router, http.MethodPost,
		"/api/v1/procurement/invoices/"+invoiceID+"/reject", map[string]interface{}{}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("reject without reason: expected 400, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, http.MethodPost,
		"/api/v1/procurement/invoices/"+invoiceID+"/reject",
		map[string]interface{}{"reason": "发票抬头错误"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != entity.InvoiceStatusRejected || data["reject_reason"] != "发票抬头错误" {
		t.Fatalf("expected rejected with reason, got %v / %v", data["status"], data["reject_reason"])
	}

	w = testutil.DoRequest(env.Router, http.MethodPost,
		"/api/v1/procurement/invoices/"+invoiceID+"/approve", nil, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("approve after reject: expected 409, got %d: %s", w.Code, w.Body.String())
	}
}
