// Package shopify talks to the Shopify Admin REST API and implements the
// Shopify payment gateway on top of it.
package shopify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/gateway"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"
)

// Options configures a Client.
type Options struct {
	APIVersion string
	Timeout    time.Duration
	// BaseURL replaces https://<shop> (tests, proxies).
	BaseURL string
	Debug   bool
}

// Client is a Shopify Admin REST client bound to one shop and access token.
type Client struct {
	http *resty.Client
}

// NewClient returns a client for shop authenticated with accessToken.
func NewClient(shop, accessToken string, opts Options) *Client {
	if opts.APIVersion == "" {
		opts.APIVersion = "2020-10"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 20 * time.Second
	}
	base := opts.BaseURL
	if base == "" {
		base = "https://" + shop
	}

	hc := resty.New().
		SetDebug(opts.Debug).
		SetTimeout(opts.Timeout).
		SetBaseURL(fmt.Sprintf("%s/admin/api/%s", base, opts.APIVersion)).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("X-Shopify-Access-Token", accessToken)

	return &Client{http: hc}
}

// do sends the request and normalises the response. When envelope is set and
// present in the body (Shopify wraps objects as {"checkout": {...}}), the
// inner object becomes the result body.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}, envelope string) (*gateway.Result, error) {
	req := c.http.R().SetContext(ctx)
	if payload != nil {
		req.SetBody(payload)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, &gateway.Error{Message: fmt.Sprintf("%s %s: platform unreachable", method, path), Err: err}
	}

	res, err := gateway.Normalize(resp.StatusCode(), resp.Body())
	if err != nil {
		return nil, err
	}
	if envelope != "" {
		if inner := res.Body.Doc(envelope); inner != nil {
			res.Body = inner
		}
	}
	return res, nil
}

func esc(s string) string { return url.PathEscape(s) }

// CreateCheckout creates a checkout.
func (c *Client) CreateCheckout(ctx context.Context, checkout jsondoc.Doc) (*gateway.Result, error) {
	return c.do(ctx, http.MethodPost, "/checkouts.json", jsondoc.Doc{"checkout": checkout}, "checkout")
}

// UpdateCheckout updates the checkout identified by token.
func (c *Client) UpdateCheckout(ctx context.Context, token string, checkout jsondoc.Doc) (*gateway.Result, error) {
	return c.do(ctx, http.MethodPut, "/checkouts/"+esc(token)+".json", jsondoc.Doc{"checkout": checkout}, "checkout")
}

// GetCheckout fetches a checkout. Shopify answers 202 while the checkout is
// still being processed.
func (c *Client) GetCheckout(ctx context.Context, token string) (*gateway.Result, error) {
	return c.do(ctx, http.MethodGet, "/checkouts/"+esc(token)+".json", nil, "checkout")
}

// CreatePayment creates a payment for the checkout.
func (c *Client) CreatePayment(ctx context.Context, token string, payment jsondoc.Doc) (*gateway.Result, error) {
	return c.do(ctx, http.MethodPost, "/checkouts/"+esc(token)+"/payments.json", jsondoc.Doc{"payment": payment}, "payment")
}

// GetPayment fetches one payment of the checkout.
func (c *Client) GetPayment(ctx context.Context, token, paymentID string) (*gateway.Result, error) {
	return c.do(ctx, http.MethodGet, "/checkouts/"+esc(token)+"/payments/"+esc(paymentID)+".json", nil, "payment")
}

// ListPayments lists the payments of the checkout under the "payments" key.
func (c *Client) ListPayments(ctx context.Context, token string) (*gateway.Result, error) {
	return c.do(ctx, http.MethodGet, "/checkouts/"+esc(token)+"/payments.json", nil, "")
}

// CreateOrder creates an order directly.
func (c *Client) CreateOrder(ctx context.Context, order jsondoc.Doc) (*gateway.Result, error) {
	return c.do(ctx, http.MethodPost, "/orders.json", jsondoc.Doc{"order": order}, "order")
}

// OpenOrder re-opens an order.
func (c *Client) OpenOrder(ctx context.Context, orderID string) (*gateway.Result, error) {
	return c.do(ctx, http.MethodPost, "/orders/"+esc(orderID)+"/open.json", jsondoc.Doc{}, "order")
}

// UpdateOrder updates an order.
func (c *Client) UpdateOrder(ctx context.Context, orderID string, order jsondoc.Doc) (*gateway.Result, error) {
	body := order.Clone()
	if body == nil {
		body = jsondoc.Doc{}
	}
	body["id"] = orderID
	return c.do(ctx, http.MethodPut, "/orders/"+esc(orderID)+".json", jsondoc.Doc{"order": body}, "order")
}

// CancelOrder cancels an order; payload carries reason/email/restock options.
func (c *Client) CancelOrder(ctx context.Context, orderID string, payload jsondoc.Doc) (*gateway.Result, error) {
	if payload == nil {
		payload = jsondoc.Doc{}
	}
	return c.do(ctx, http.MethodPost, "/orders/"+esc(orderID)+"/cancel.json", payload, "order")
}

// ListTransactions lists the transactions of an order under the "transactions" key.
func (c *Client) ListTransactions(ctx context.Context, orderID string) (*gateway.Result, error) {
	return c.do(ctx, http.MethodGet, "/orders/"+esc(orderID)+"/transactions.json", nil, "")
}

// CreateTransaction creates a transaction (e.g. a capture) on an order.
func (c *Client) CreateTransaction(ctx context.Context, orderID string, tx jsondoc.Doc) (*gateway.Result, error) {
	return c.do(ctx, http.MethodPost, "/orders/"+esc(orderID)+"/transactions.json", jsondoc.Doc{"transaction": tx}, "transaction")
}

// CalculateRefund asks Shopify to compute a refund without creating it.
func (c *Client) CalculateRefund(ctx context.Context, orderID string, refund jsondoc.Doc) (*gateway.Result, error) {
	return c.do(ctx, http.MethodPost, "/orders/"+esc(orderID)+"/refunds/calculate.json", jsondoc.Doc{"refund": refund}, "refund")
}

// CreateRefund creates a refund.
func (c *Client) CreateRefund(ctx context.Context, orderID string, refund jsondoc.Doc) (*gateway.Result, error) {
	return c.do(ctx, http.MethodPost, "/orders/"+esc(orderID)+"/refunds.json", jsondoc.Doc{"refund": refund}, "refund")
}
