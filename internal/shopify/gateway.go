package shopify

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/gateway"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/logging"
)

// Platform is the part of the Admin API the gateway, the reconciler and the
// storefront adapter use. *Client implements it.
type Platform interface {
	CreateCheckout(ctx context.Context, checkout jsondoc.Doc) (*gateway.Result, error)
	UpdateCheckout(ctx context.Context, token string, checkout jsondoc.Doc) (*gateway.Result, error)
	GetCheckout(ctx context.Context, token string) (*gateway.Result, error)
	CreatePayment(ctx context.Context, token string, payment jsondoc.Doc) (*gateway.Result, error)
	GetPayment(ctx context.Context, token, paymentID string) (*gateway.Result, error)
	ListPayments(ctx context.Context, token string) (*gateway.Result, error)
	CreateOrder(ctx context.Context, order jsondoc.Doc) (*gateway.Result, error)
	OpenOrder(ctx context.Context, orderID string) (*gateway.Result, error)
	UpdateOrder(ctx context.Context, orderID string, order jsondoc.Doc) (*gateway.Result, error)
	CancelOrder(ctx context.Context, orderID string, payload jsondoc.Doc) (*gateway.Result, error)
	ListTransactions(ctx context.Context, orderID string) (*gateway.Result, error)
	CreateTransaction(ctx context.Context, orderID string, tx jsondoc.Doc) (*gateway.Result, error)
	CalculateRefund(ctx context.Context, orderID string, refund jsondoc.Doc) (*gateway.Result, error)
	CreateRefund(ctx context.Context, orderID string, refund jsondoc.Doc) (*gateway.Result, error)
}

// PlatformFactory builds a Platform for a shop and its Admin access token.
type PlatformFactory func(shop, accessToken string) Platform

// ClientFactory returns a PlatformFactory producing REST clients.
func ClientFactory(opts Options) PlatformFactory {
	return func(shop, accessToken string) Platform {
		return NewClient(shop, accessToken, opts)
	}
}

// Gateway is the Shopify payment gateway.
type Gateway struct {
	platforms  PlatformFactory
	reconciler *Reconciler
}

var _ gateway.Gateway = (*Gateway)(nil)

// NewGateway wires the gateway to a platform factory and the completion reconciler.
func NewGateway(platforms PlatformFactory, reconciler *Reconciler) *Gateway {
	if reconciler == nil {
		reconciler = NewReconciler(DefaultCompletionAttempts, DefaultCompletionInterval)
	}
	return &Gateway{platforms: platforms, reconciler: reconciler}
}

func (g *Gateway) Name() string { return gateway.MethodShopify }

func (g *Gateway) platform(call gateway.Call) (Platform, error) {
	if call.Config == nil || call.Config.ShopifyToken == "" {
		return nil, &gateway.Error{Message: "missing Shopify access token for " + call.Shop}
	}
	return g.platforms(call.Shop, call.Config.ShopifyToken), nil
}

// checkoutToken prefers the token the payment was issued for.
func checkoutToken(call gateway.Call) string {
	if t := call.Payment.Str("checkout_token"); t != "" {
		return t
	}
	return call.Checkout.Str("token")
}

// CreateOrder opens a platform checkout from the storefront's line items and
// addresses. The result's id is the checkout token.
func (g *Gateway) CreateOrder(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	p, err := g.platform(call)
	if err != nil {
		return nil, err
	}
	logging.From(ctx).Debug("creating shopify checkout", zap.String("shop", call.Shop))

	res, err := p.CreateCheckout(ctx, jsondoc.Doc{
		"email":            call.Checkout["email"],
		"line_items":       call.Checkout["line_items"],
		"shipping_address": call.Checkout["shipping_address"],
		"billing_address":  call.Checkout["billing_address"],
	})
	if err != nil {
		return nil, err
	}
	res.Body["id"] = res.Body["token"]
	return res, nil
}

// AuthorizeOrder restores the checkout email, creates a payment for the
// amount due and returns the payment as stored by the platform.
func (g *Gateway) AuthorizeOrder(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	p, err := g.platform(call)
	if err != nil {
		return nil, err
	}
	token := checkoutToken(call)
	if token == "" {
		return nil, &gateway.Error{StatusCode: http.StatusBadRequest, Message: "missing checkout token for authorization"}
	}

	if _, err := p.UpdateCheckout(ctx, token, jsondoc.Doc{"email": call.Checkout["email"]}); err != nil {
		return nil, err
	}

	created, err := p.CreatePayment(ctx, token, jsondoc.Doc{
		"request_details": jsondoc.Doc{
			"ip_address":      call.Payment["ip_address"],
			"accept_language": call.Payment["accept_language"],
			"user_agent":      call.Payment["user_agent"],
		},
		"amount":       call.Checkout["payment_due"],
		"session_id":   call.Payment["session_id"],
		"unique_token": token,
	})
	if err != nil {
		return nil, err
	}

	paymentID := created.Body.Str("id")
	if paymentID == "" {
		return created, nil
	}
	return p.GetPayment(ctx, token, paymentID)
}

// OrderUpdate pushes the storefront checkout to the platform checkout.
func (g *Gateway) OrderUpdate(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	p, err := g.platform(call)
	if err != nil {
		return nil, err
	}
	token := checkoutToken(call)
	res, err := p.UpdateCheckout(ctx, token, call.Checkout)
	if err != nil {
		return nil, err
	}
	res.Body["id"] = token
	return res, nil
}

// PostOrder waits for the checkout's order and reconciles its financial status.
func (g *Gateway) PostOrder(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	p, err := g.platform(call)
	if err != nil {
		return nil, err
	}
	return g.reconciler.Complete(ctx, p, call.Checkout)
}

// GetOrder opens the order of the checkout and refreshes it from the checkout.
func (g *Gateway) GetOrder(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	token := call.Checkout.Str("token")
	if token == "" {
		return nil, &gateway.Error{StatusCode: http.StatusBadRequest, Message: "Missing Shopify Checkout Token"}
	}
	p, err := g.platform(call)
	if err != nil {
		return nil, err
	}

	orderID := call.OrderID
	if orderID == "" {
		res, err := p.GetCheckout(ctx, token)
		if err != nil {
			return nil, err
		}
		orderID = res.Body.Doc("order").Str("id")
		if orderID == "" {
			return nil, &gateway.PendingError{StatusCode: res.StatusCode, Message: "checkout " + token + " has no order yet"}
		}
	}

	if _, err := p.OpenOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return p.UpdateOrder(ctx, orderID, OrderPatch(call.Checkout))
}

// RefundOrder calculates the refund and then creates it. When the request
// carries no refund transactions the calculated ones are used.
func (g *Gateway) RefundOrder(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	if call.OrderID == "" {
		return nil, &gateway.Error{StatusCode: http.StatusBadRequest, Message: "missing order id for refund"}
	}
	p, err := g.platform(call)
	if err != nil {
		return nil, err
	}

	refund := call.Refund.Clone()
	if refund == nil {
		refund = jsondoc.Doc{}
	}
	calculated, err := p.CalculateRefund(ctx, call.OrderID, refund)
	if err != nil {
		return nil, err
	}
	if refund.Empty("transactions") {
		refund["transactions"] = refundTransactions(calculated.Body.List("transactions"))
	}
	return p.CreateRefund(ctx, call.OrderID, refund)
}

// refundTransactions turns suggested refunds into refund transactions.
func refundTransactions(suggested []interface{}) []interface{} {
	out := make([]interface{}, 0, len(suggested))
	for _, v := range suggested {
		s := jsondoc.AsDoc(v)
		if s == nil {
			continue
		}
		out = append(out, jsondoc.Doc{
			"parent_id": s["parent_id"],
			"amount":    s["amount"],
			"gateway":   s["gateway"],
			"kind":      "refund",
		})
	}
	return out
}

// CancelOrder cancels the order.
func (g *Gateway) CancelOrder(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	if call.OrderID == "" {
		return nil, &gateway.Error{StatusCode: http.StatusBadRequest, Message: "missing order id for cancel"}
	}
	p, err := g.platform(call)
	if err != nil {
		return nil, err
	}
	return p.CancelOrder(ctx, call.OrderID, call.Cancel)
}

// OrderPatch selects the checkout fields an existing order accepts.
func OrderPatch(checkout jsondoc.Doc) jsondoc.Doc {
	patch := jsondoc.Doc{}
	for _, k := range []string{"email", "phone", "note", "note_attributes", "tags", "shipping_address", "buyer_accepts_marketing"} {
		if checkout.Has(k) {
			patch[k] = checkout[k]
		}
	}
	return patch
}
