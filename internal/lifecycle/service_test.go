package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/gateway"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/shops"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/transactions"
)

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	var le *Error
	require.True(t, errors.As(err, &le), "expected *lifecycle.Error, got %v", err)
	require.Equal(t, kind, le.Kind, "unexpected kind: %v", le)
	return le
}

func existing() *transactions.Transaction {
	return &transactions.Transaction{
		ID:             "T1",
		ShopDomain:     testShop,
		PaymentToken:   "pay-tok-0",
		PaymentGateway: gateway.MethodShopify,
		Status:         transactions.StatusCreated,
		Checkout:       jsondoc.Doc{"token": "abc", "email": "old@x.com"},
		Email:          "old@x.com",
	}
}

func TestStages_MissingBodyTouchesNothing(t *testing.T) {
	h := newHarness(existing())
	stages := map[Stage]func(context.Context, Request) (*Response, error){
		StageCreate:    h.svc.Create,
		StageAuthorize: h.svc.Authorize,
		StageUpdate:    h.svc.Update,
		StageComplete:  h.svc.Complete,
		StageGetOrder:  h.svc.GetOrder,
		StageRefund:    h.svc.Refund,
		StageCancel:    h.svc.Cancel,
	}
	for name, run := range stages {
		t.Run(string(name), func(t *testing.T) {
			resp, err := run(context.Background(), Request{Shop: testShop, TransactionID: "T1"})
			assert.Nil(t, resp)
			le := requireKind(t, err, KindMissingInput)
			assert.Equal(t, http.StatusBadRequest, le.Code)
			assert.ErrorIs(t, err, ErrMissingBody)
		})
	}
	assert.Zero(t, h.store.gets)
	assert.Zero(t, h.store.puts)
	assert.Zero(t, h.shops.calls)
	assert.Empty(t, h.gw.calls)
	assert.Empty(t, h.metrics.stages)
}

func TestStages_NoTransactionIsDependencyNotFound(t *testing.T) {
	h := newHarness()
	stages := map[Stage]func(context.Context, Request) (*Response, error){
		StageAuthorize: h.svc.Authorize,
		StageUpdate:    h.svc.Update,
		StageComplete:  h.svc.Complete,
		StageGetOrder:  h.svc.GetOrder,
		StageRefund:    h.svc.Refund,
		StageCancel:    h.svc.Cancel,
	}
	for name, run := range stages {
		t.Run(string(name), func(t *testing.T) {
			req := Request{Shop: testShop, TransactionID: "T1", Body: &RequestBody{
				Checkout:      jsondoc.Doc{"token": "abc"},
				Payment:       jsondoc.Doc{},
				PaymentMethod: "shopify",
			}}
			_, err := run(context.Background(), req)
			le := requireKind(t, err, KindDependencyNotFound)
			assert.Equal(t, http.StatusInternalServerError, le.Code)
			assert.Contains(t, le.Message, "Unable to retrieve transaction")
		})
	}
	assert.Empty(t, h.gw.calls)
	assert.Zero(t, h.store.puts)
}

func TestCreate_NewTransaction(t *testing.T) {
	h := newHarness()
	h.gw.results["CreateOrder"] = &gateway.Result{StatusCode: 200, Body: jsondoc.Doc{"token": "abc", "id": "abc", "email": "a@b.com"}}

	resp, err := h.svc.Create(context.Background(), Request{Shop: testShop, TransactionID: "path-id", Body: &RequestBody{
		Checkout:      jsondoc.Doc{"token": "abc"},
		PaymentMethod: "shopify",
		TransactionID: "T1",
	}})
	require.NoError(t, err)
	assert.Equal(t, transactions.StatusCreated, resp.Status)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "T1", resp.TransactionID)
	assert.Equal(t, "pay-tok-1", resp.PaymentToken)
	assert.Equal(t, "abc", resp.CheckoutToken)
	assert.Equal(t, testShop, resp.Payment.Str("shopify_domain"))

	stored := h.store.items["T1"]
	require.NotNil(t, stored)
	assert.Len(t, h.store.items, 1)
	assert.Equal(t, transactions.StatusCreated, stored.Status)
	assert.Equal(t, testShop+"_abc", stored.ShopDomainCheckoutToken)
	assert.Equal(t, testShop+"_null", stored.ShopDomainOrderID)
	assert.Equal(t, "a@b.com", stored.Email, "native checkout is replaced by the gateway result")
	assert.Nil(t, stored.Order)
}

func TestCreate_TwiceUpdatesInsteadOfDuplicating(t *testing.T) {
	h := newHarness()
	body := func(email string) *RequestBody {
		return &RequestBody{Checkout: jsondoc.Doc{"token": "abc", "email": email}, PaymentMethod: "stripe", TransactionID: "T1"}
	}

	_, err := h.svc.Create(context.Background(), Request{Shop: testShop, Body: body("first@x.com")})
	require.NoError(t, err)
	h.svc.newToken = func() string { return "pay-tok-2" }
	_, err = h.svc.Create(context.Background(), Request{Shop: testShop, Body: body("second@x.com")})
	require.NoError(t, err)

	assert.Equal(t, 2, h.store.puts)
	assert.Len(t, h.store.items, 1)
	stored := h.store.items["T1"]
	assert.Equal(t, "second@x.com", stored.Checkout.Str("email"))
	assert.Equal(t, "pay-tok-1", stored.PaymentToken, "existing record keeps its payment token")
	assert.Equal(t, "first@x.com", stored.Email)
}

func TestCreate_MissingShopConfig(t *testing.T) {
	h := newHarness()
	h.shops.config = nil
	_, err := h.svc.Create(context.Background(), Request{Shop: testShop, TransactionID: "T1", Body: &RequestBody{PaymentMethod: "shopify"}})
	le := requireKind(t, err, KindDependencyNotFound)
	assert.Equal(t, "Unable to retrieve shop config", le.Message)
	assert.Empty(t, h.gw.calls)
}

func TestCreate_GatewayFailureDoesNotPersist(t *testing.T) {
	h := newHarness()
	h.gw.errs["CreateOrder"] = &gateway.Error{StatusCode: 422, Message: "line_items is invalid"}

	_, err := h.svc.Create(context.Background(), Request{Shop: testShop, TransactionID: "T1", Body: &RequestBody{PaymentMethod: "shopify"}})
	le := requireKind(t, err, KindGateway)
	assert.Equal(t, 422, le.Code)
	assert.Equal(t, "line_items is invalid", le.Message)
	assert.Zero(t, h.store.puts)
	require.Len(t, h.metrics.errs, 1)
	assert.Error(t, h.metrics.errs[0])
}

func TestCreate_NonOKStatusIsGatewayError(t *testing.T) {
	h := newHarness()
	h.gw.results["CreateOrder"] = &gateway.Result{StatusCode: 303, Body: jsondoc.Doc{}}
	_, err := h.svc.Create(context.Background(), Request{Shop: testShop, TransactionID: "T1", Body: &RequestBody{PaymentMethod: "shopify"}})
	requireKind(t, err, KindGateway)
	assert.Zero(t, h.store.puts)
}

func TestAuthorize_NoTransaction(t *testing.T) {
	h := newHarness()
	_, err := h.svc.Authorize(context.Background(), Request{Shop: testShop, Body: &RequestBody{
		Checkout: jsondoc.Doc{"token": "abc"}, Payment: jsondoc.Doc{}, TransactionID: "T9",
	}})
	le := requireKind(t, err, KindDependencyNotFound)
	assert.Equal(t, 500, le.Code)
	assert.Equal(t, "Unable to retrieve transaction with id T9", le.Message)
	assert.Empty(t, h.gw.calls)
	assert.Zero(t, h.store.puts)
}

func TestAuthorize_MergesPayment(t *testing.T) {
	h := newHarness(existing())
	h.shops.config.PlatformFees = []shops.Fee{{Value: 10, CurrencyCode: "%"}, {Value: 0.3, CurrencyCode: "USD"}}
	h.gw.results["AuthorizeOrder"] = &gateway.Result{StatusCode: 202, Body: jsondoc.Doc{"id": int64(77), "transaction": map[string]interface{}{"kind": "authorization"}}}

	resp, err := h.svc.Authorize(context.Background(), Request{
		Shop:      testShop,
		SourceIP:  "1.2.3.4",
		UserAgent: "Mozilla",
		Body: &RequestBody{
			TransactionID: "T1",
			PaymentMethod: "shopify",
			Checkout:      jsondoc.Doc{"token": "abc", "payment_due": "25.00", "updated_at": "2021-03-01T10:00:00Z"},
			Payment:       jsondoc.Doc{"payment_token": "pay-tok-0", "checkout_token": "abc"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, transactions.StatusAuthorized, resp.Status)
	assert.Equal(t, "1.2.3.4", h.gw.lastCall.Payment.Str("ip_address"))
	assert.Equal(t, "Mozilla", h.gw.lastCall.Payment.Str("user_agent"))

	stored := h.store.items["T1"]
	assert.Equal(t, transactions.StatusAuthorized, stored.Status)
	assert.Equal(t, "77", stored.Payment.Str("id"))
	assert.Equal(t, "abc", stored.Payment.Str("checkout_token"))
	assert.Equal(t, "pay-tok-0", stored.Payment.Str("payment_token"))
	assert.Equal(t, testShop, stored.Payment.Str("shop"))
	assert.Equal(t, 2.8, stored.PlatformFee)
	assert.Equal(t, "2021-03-01T10:00:00Z", stored.CheckoutUpdatedAt)
}

func TestUpdate_NonNativeRefreshesCheckout(t *testing.T) {
	h := newHarness(existing())
	h.shops.keys = &shops.AppKeys{BrandEmailLegacy: "brand@shop.com"}
	h.storefront.refreshed = jsondoc.Doc{"checkout": map[string]interface{}{"token": "abc", "email": "platform@x.com", "total_price": "30.00"}}

	resp, err := h.svc.Update(context.Background(), Request{Shop: testShop, Body: &RequestBody{
		TransactionID: "T1",
		PaymentMethod: "paypal",
		Checkout:      jsondoc.Doc{"checkout": map[string]interface{}{"token": "abc", "email": "buyer@x.com", "name": "Jane"}},
		Payment:       jsondoc.Doc{},
	}})
	require.NoError(t, err)
	assert.Equal(t, transactions.StatusUpdated, resp.Status)
	assert.Equal(t, "brand@shop.com", h.gw.lastCall.Config.BrandEmail)
	assert.Equal(t, "pay-tok-1", resp.PaymentToken, "missing payment token is initialised")

	stored := h.store.items["T1"]
	assert.Equal(t, "buyer@x.com", stored.Checkout.Str("email"), "resolved email is restored on the refreshed checkout")
	assert.Equal(t, "30.00", stored.Checkout.Str("total_price"))
	assert.Equal(t, "buyer@x.com", stored.Email)
	assert.Equal(t, "cust-1", stored.CustomerID)
	require.Len(t, h.customers.upserts, 1)
	assert.Equal(t, "Jane", h.customers.upserts[0].Name)
}

func TestUpdate_NativeKeepsRequestCheckout(t *testing.T) {
	h := newHarness(existing())
	_, err := h.svc.Update(context.Background(), Request{Shop: testShop, Body: &RequestBody{
		TransactionID: "T1",
		PaymentMethod: "shopify",
		Checkout:      jsondoc.Doc{"token": "abc", "note": "gift"},
		Email:         "body@x.com",
	}})
	require.NoError(t, err)
	stored := h.store.items["T1"]
	assert.Equal(t, "gift", stored.Checkout.Str("note"))
	assert.Equal(t, "body@x.com", stored.Email)
}

func TestUpdate_MissingAppKeys(t *testing.T) {
	h := newHarness(existing())
	h.shops.keys = nil
	_, err := h.svc.Update(context.Background(), Request{Shop: testShop, Body: &RequestBody{TransactionID: "T1"}})
	le := requireKind(t, err, KindDependencyNotFound)
	assert.Equal(t, "Unable to retrieve shopify_app_keys", le.Message)
	assert.Zero(t, h.store.gets)
}

func TestComplete_Native(t *testing.T) {
	h := newHarness(existing())
	h.gw.results["PostOrder"] = &gateway.Result{StatusCode: 200, Body: jsondoc.Doc{
		"id":               int64(4501),
		"name":             "#1001",
		"email":            "order@x.com",
		"shipping_address": map[string]interface{}{"city": "Austin"},
		"transaction":      map[string]interface{}{"transaction": map[string]interface{}{"id": int64(9), "kind": "capture"}},
	}}

	resp, err := h.svc.Complete(context.Background(), Request{Shop: testShop, SourceIP: "1.2.3.4", Body: &RequestBody{
		TransactionID: "T1",
		PaymentMethod: "shopify",
		Checkout: jsondoc.Doc{
			"token":           "abc",
			"tax_lines":       []interface{}{map[string]interface{}{"title": "VAT"}},
			"note_attributes": []interface{}{map[string]interface{}{"name": "landing_site", "value": "/promo"}},
		},
		Payment: jsondoc.Doc{"payment_token": "pay-tok-0"},
	}})
	require.NoError(t, err)
	assert.Equal(t, transactions.StatusCompleted, resp.Status)
	assert.Equal(t, "4501", resp.OrderID)
	assert.Equal(t, "/promo", h.gw.lastCall.Payment.Str("landing_site"))
	assert.Equal(t, "1.2.3.4", h.gw.lastCall.Payment.Str("browser_ip"))

	stored := h.store.items["T1"]
	assert.Equal(t, transactions.StatusCompleted, stored.Status)
	assert.Equal(t, "4501", stored.OrderID)
	assert.Equal(t, testShop+"_4501", stored.ShopDomainOrderID)
	assert.Equal(t, "order@x.com", stored.Email)
	assert.Equal(t, "#1001", stored.OrderName)
	assert.Equal(t, "9", stored.Settlement.Str("id"))
	assert.Equal(t, "Austin", stored.Checkout.Doc("shipping_address").Str("city"))
	assert.Len(t, stored.Order.List("tax_lines"), 1)
	assert.Equal(t, []string{"T1:order"}, h.notifier.sent)
}

func TestComplete_PendingPassesStatusThrough(t *testing.T) {
	h := newHarness(existing())
	h.gw.errs["PostOrder"] = &gateway.PendingError{StatusCode: 202, Message: "still processing"}

	_, err := h.svc.Complete(context.Background(), Request{Shop: testShop, Body: &RequestBody{
		TransactionID: "T1", PaymentMethod: "shopify", Checkout: jsondoc.Doc{"token": "abc"},
	}})
	le := requireKind(t, err, KindPending)
	assert.Equal(t, 202, le.Code)
	assert.Zero(t, h.store.puts)
	assert.Empty(t, h.notifier.sent)
}

func TestComplete_NonNativeCreatesPlatformOrder(t *testing.T) {
	h := newHarness(existing())
	h.svc.CartRecovery = false
	h.storefront.created = jsondoc.Doc{"order": map[string]interface{}{"id": int64(88), "tax_lines": []interface{}{map[string]interface{}{"title": "GST"}}}}

	resp, err := h.svc.Complete(context.Background(), Request{Shop: testShop, Body: &RequestBody{
		TransactionID: "T1",
		PaymentMethod: "paypal",
		Checkout: jsondoc.Doc{
			"token":         "abc",
			"name":          "#C-1",
			"total_price":   "30.00",
			"currency":      "USD",
			"shipping_line": map[string]interface{}{"title": "Ground"},
			"tax_lines":     []interface{}{map[string]interface{}{"title": "VAT"}},
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, "88", resp.OrderID)

	txs := h.storefront.orderIn.List("transactions")
	require.Len(t, txs, 1)
	assert.Equal(t, "paypal", jsondoc.AsDoc(txs[0]).Str("gateway"))
	assert.Equal(t, "capture", jsondoc.AsDoc(txs[0]).Str("kind"))
	assert.Len(t, h.storefront.orderIn.List("shipping_lines"), 1)
	assert.Equal(t, "old@x.com", h.storefront.orderIn.Str("email"))

	stored := h.store.items["T1"]
	assert.Equal(t, "GST", jsondoc.AsDoc(stored.Order.List("tax_lines")[0]).Str("title"), "order tax lines win")
	assert.Equal(t, "#C-1", stored.OrderName)
	assert.Equal(t, "paypal", stored.PaymentGateway)
	assert.Empty(t, h.notifier.sent)
}

func TestComplete_NotificationFailureIsNotFatal(t *testing.T) {
	h := newHarness(existing())
	h.notifier.err = errBoom
	h.gw.results["PostOrder"] = &gateway.Result{StatusCode: 200, Body: jsondoc.Doc{"id": int64(1)}}

	resp, err := h.svc.Complete(context.Background(), Request{Shop: testShop, Body: &RequestBody{
		TransactionID: "T1", PaymentMethod: "shopify", Checkout: jsondoc.Doc{"token": "abc", "email": "a@b.com"},
	}})
	require.NoError(t, err)
	assert.Equal(t, transactions.StatusCompleted, resp.Status)
	assert.Equal(t, 1, h.store.puts)
}

func TestStage_PanicIsRedacted(t *testing.T) {
	h := newHarness(existing())
	h.gw.panicOn = "AuthorizeOrder"

	_, err := h.svc.Authorize(context.Background(), Request{Shop: testShop, Body: &RequestBody{TransactionID: "T1", PaymentMethod: "shopify"}})
	le := requireKind(t, err, KindUnhandled)
	assert.Equal(t, 500, le.Code)
	assert.Equal(t, "Payment authorization failure", le.Message)
	assert.NotContains(t, le.Message, "nil checkout")
	assert.Zero(t, h.store.puts)
}

func TestGetOrder_UsesStoredCheckout(t *testing.T) {
	tx := existing()
	tx.OrderID = "4501"
	h := newHarness(tx)
	h.gw.results["GetOrder"] = &gateway.Result{StatusCode: 200, Body: jsondoc.Doc{"id": int64(4501), "financial_status": "paid"}}

	resp, err := h.svc.GetOrder(context.Background(), Request{Shop: testShop, TransactionID: "T1", Body: &RequestBody{}})
	require.NoError(t, err)
	assert.Equal(t, "paid", resp.Order.Str("financial_status"))
	assert.Equal(t, "abc", h.gw.lastCall.Checkout.Str("token"))
	assert.Equal(t, "4501", h.gw.lastCall.OrderID)
	assert.Zero(t, h.store.puts)
}

func TestRefund(t *testing.T) {
	t.Run("requires an order", func(t *testing.T) {
		h := newHarness(existing())
		_, err := h.svc.Refund(context.Background(), Request{Shop: testShop, TransactionID: "T1", Body: &RequestBody{}})
		requireKind(t, err, KindDependencyNotFound)
		assert.Empty(t, h.gw.calls)
	})

	t.Run("stores the refund", func(t *testing.T) {
		tx := existing()
		tx.OrderID = "4501"
		h := newHarness(tx)
		h.gw.results["RefundOrder"] = &gateway.Result{StatusCode: 201, Body: jsondoc.Doc{"id": int64(5)}}

		resp, err := h.svc.Refund(context.Background(), Request{Shop: testShop, TransactionID: "T1", Body: &RequestBody{Refund: jsondoc.Doc{"note": "damaged"}}})
		require.NoError(t, err)
		assert.Equal(t, "5", resp.Refund.Str("id"))
		assert.Equal(t, "damaged", h.gw.lastCall.Refund.Str("note"))
		assert.Equal(t, "5", h.store.items["T1"].Refund.Str("id"))
	})
}

func TestCancel_MergesCancelledOrder(t *testing.T) {
	tx := existing()
	tx.OrderID = "4501"
	tx.Order = jsondoc.Doc{"id": int64(4501), "name": "#1001"}
	h := newHarness(tx)
	h.gw.results["CancelOrder"] = &gateway.Result{StatusCode: 200, Body: jsondoc.Doc{"cancel_reason": "customer"}}

	_, err := h.svc.Cancel(context.Background(), Request{Shop: testShop, TransactionID: "T1", Body: &RequestBody{Cancel: jsondoc.Doc{"reason": "customer"}}})
	require.NoError(t, err)
	stored := h.store.items["T1"]
	assert.Equal(t, "customer", stored.Order.Str("cancel_reason"))
	assert.Equal(t, "#1001", stored.Order.Str("name"))
}

func TestAfterSale_FailureAfterPlatformCallIsApplied(t *testing.T) {
	withOrder := func() *transactions.Transaction {
		tx := existing()
		tx.OrderID = "4501"
		return tx
	}

	t.Run("refund saved after platform success", func(t *testing.T) {
		h := newHarness(withOrder())
		h.store.putErr = errBoom

		_, err := h.svc.Refund(context.Background(), Request{Shop: testShop, TransactionID: "T1", Body: &RequestBody{}})

		le := requireKind(t, err, KindApplied)
		assert.Equal(t, http.StatusInternalServerError, le.Code)
		assert.Equal(t, "refund applied on the platform but the transaction was not saved", le.Message)
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, []string{"RefundOrder"}, h.gw.calls)
	})

	t.Run("cancel panics inside the platform call", func(t *testing.T) {
		h := newHarness(withOrder())
		h.gw.panicOn = "CancelOrder"

		_, err := h.svc.Cancel(context.Background(), Request{Shop: testShop, TransactionID: "T1", Body: &RequestBody{}})

		requireKind(t, err, KindApplied)
	})

	t.Run("platform rejection stays a gateway error", func(t *testing.T) {
		h := newHarness(withOrder())
		h.gw.errs["RefundOrder"] = &gateway.Error{StatusCode: http.StatusUnprocessableEntity, Message: "Refund exceeds captured amount"}

		_, err := h.svc.Refund(context.Background(), Request{Shop: testShop, TransactionID: "T1", Body: &RequestBody{}})

		requireKind(t, err, KindGateway)
	})

	t.Run("store failure before the platform call is unhandled", func(t *testing.T) {
		h := newHarness(withOrder())
		h.store.getErr = errBoom

		_, err := h.svc.Refund(context.Background(), Request{Shop: testShop, TransactionID: "T1", Body: &RequestBody{}})

		requireKind(t, err, KindUnhandled)
		assert.Empty(t, h.gw.calls)
	})
}
