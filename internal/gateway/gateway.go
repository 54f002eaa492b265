// Package gateway defines the contract every payment gateway integration
// implements and the dispatcher that picks one per payment method.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/shops"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/transactions"
)

// Payment method names.
const (
	MethodShopify         = "shopify"
	MethodShopifyPayments = "shopify_payments"
)

// Call carries everything a gateway operation may need. Fields irrelevant to an
// operation are left empty.
type Call struct {
	Shop        string
	Config      *shops.Config
	Checkout    jsondoc.Doc
	Payment     jsondoc.Doc
	Email       string
	OrderID     string
	Transaction *transactions.Transaction
	// Refund and Cancel carry the platform payloads for after-sale commands.
	Refund jsondoc.Doc
	Cancel jsondoc.Doc
}

// Result is the normalised outcome of a successful gateway operation.
type Result struct {
	StatusCode int
	Body       jsondoc.Doc
}

// OK reports whether the status code is in [200, 304).
func (r *Result) OK() bool {
	return r != nil && r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusNotModified
}

// Gateway is implemented by every payment/order platform integration. Every
// operation returns either a Result or an error, never both.
type Gateway interface {
	Name() string
	CreateOrder(ctx context.Context, call Call) (*Result, error)
	AuthorizeOrder(ctx context.Context, call Call) (*Result, error)
	OrderUpdate(ctx context.Context, call Call) (*Result, error)
	PostOrder(ctx context.Context, call Call) (*Result, error)
	GetOrder(ctx context.Context, call Call) (*Result, error)
	RefundOrder(ctx context.Context, call Call) (*Result, error)
	CancelOrder(ctx context.Context, call Call) (*Result, error)
}

// Error is a failure reported by the platform: an error marker in the body or
// a status code outside [200, 304).
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gateway error (status %d): %s", e.StatusCode, e.Message)
	}
	return "gateway error: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// PendingError means the platform accepted the request but the order has not
// materialised yet. It is not a hard failure.
type PendingError struct {
	StatusCode int
	Message    string
}

func (e *PendingError) Error() string {
	return fmt.Sprintf("pending (status %d): %s", e.StatusCode, e.Message)
}
