package shopify

import (
	"context"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/gateway"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"
)

// fakePlatform records calls and answers from canned results. checkouts is
// consumed one entry per GetCheckout; the last entry repeats.
type fakePlatform struct {
	calls []string

	checkouts    []*gateway.Result
	checkoutErr  error
	opened       jsondoc.Doc
	updated      jsondoc.Doc
	transactions []interface{}
	captured     jsondoc.Doc
	payment      jsondoc.Doc
	payments     []interface{}

	updatedOrder   jsondoc.Doc
	createdTx      jsondoc.Doc
	createdRefund  jsondoc.Doc
	createdPayment jsondoc.Doc
}

func (f *fakePlatform) record(name string) { f.calls = append(f.calls, name) }

func (f *fakePlatform) count(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func ok(body jsondoc.Doc) *gateway.Result {
	if body == nil {
		body = jsondoc.Doc{}
	}
	return &gateway.Result{StatusCode: 200, Body: body}
}

func (f *fakePlatform) CreateCheckout(ctx context.Context, checkout jsondoc.Doc) (*gateway.Result, error) {
	f.record("CreateCheckout")
	body := checkout.Clone()
	body["token"] = "tok-new"
	return &gateway.Result{StatusCode: 201, Body: body}, nil
}

func (f *fakePlatform) UpdateCheckout(ctx context.Context, token string, checkout jsondoc.Doc) (*gateway.Result, error) {
	f.record("UpdateCheckout")
	body := checkout.Clone()
	body["token"] = token
	return ok(body), nil
}

func (f *fakePlatform) GetCheckout(ctx context.Context, token string) (*gateway.Result, error) {
	f.record("GetCheckout")
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	n := f.count("GetCheckout") - 1
	if n >= len(f.checkouts) {
		n = len(f.checkouts) - 1
	}
	return f.checkouts[n], nil
}

func (f *fakePlatform) CreatePayment(ctx context.Context, token string, payment jsondoc.Doc) (*gateway.Result, error) {
	f.record("CreatePayment")
	f.createdPayment = payment
	return &gateway.Result{StatusCode: 202, Body: jsondoc.Doc{"id": int64(77)}}, nil
}

func (f *fakePlatform) GetPayment(ctx context.Context, token, paymentID string) (*gateway.Result, error) {
	f.record("GetPayment")
	return ok(f.payment), nil
}

func (f *fakePlatform) ListPayments(ctx context.Context, token string) (*gateway.Result, error) {
	f.record("ListPayments")
	return ok(jsondoc.Doc{"payments": f.payments}), nil
}

func (f *fakePlatform) CreateOrder(ctx context.Context, order jsondoc.Doc) (*gateway.Result, error) {
	f.record("CreateOrder")
	body := order.Clone()
	body["id"] = int64(1001)
	return &gateway.Result{StatusCode: 201, Body: body}, nil
}

func (f *fakePlatform) OpenOrder(ctx context.Context, orderID string) (*gateway.Result, error) {
	f.record("OpenOrder")
	return ok(f.opened), nil
}

func (f *fakePlatform) UpdateOrder(ctx context.Context, orderID string, order jsondoc.Doc) (*gateway.Result, error) {
	f.record("UpdateOrder")
	f.updatedOrder = order
	body := f.updated.Clone()
	if body == nil {
		body = jsondoc.Doc{"id": orderID}
	}
	return ok(body), nil
}

func (f *fakePlatform) CancelOrder(ctx context.Context, orderID string, payload jsondoc.Doc) (*gateway.Result, error) {
	f.record("CancelOrder")
	return ok(jsondoc.Doc{"id": orderID, "cancel_reason": payload.Str("reason")}), nil
}

func (f *fakePlatform) ListTransactions(ctx context.Context, orderID string) (*gateway.Result, error) {
	f.record("ListTransactions")
	return ok(jsondoc.Doc{"transactions": f.transactions}), nil
}

func (f *fakePlatform) CreateTransaction(ctx context.Context, orderID string, tx jsondoc.Doc) (*gateway.Result, error) {
	f.record("CreateTransaction")
	f.createdTx = tx
	return ok(f.captured), nil
}

func (f *fakePlatform) CalculateRefund(ctx context.Context, orderID string, refund jsondoc.Doc) (*gateway.Result, error) {
	f.record("CalculateRefund")
	return ok(jsondoc.Doc{"transactions": []interface{}{
		map[string]interface{}{"parent_id": int64(9), "amount": "10.00", "gateway": "bogus", "kind": "suggested_refund"},
	}}), nil
}

func (f *fakePlatform) CreateRefund(ctx context.Context, orderID string, refund jsondoc.Doc) (*gateway.Result, error) {
	f.record("CreateRefund")
	f.createdRefund = refund
	return &gateway.Result{StatusCode: 201, Body: jsondoc.Doc{"id": int64(5), "order_id": orderID}}, nil
}
