package shopify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/gateway"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/logging"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/retry"
)

const (
	DefaultCompletionAttempts = 3
	DefaultCompletionInterval = 3 * time.Second
)

// Reconciler turns a completed checkout into an order: it waits for the
// platform to materialise the order, opens and updates it, and settles its
// financial status.
type Reconciler struct {
	policy retry.Policy
}

// NewReconciler polls at most attempts more times, interval apart, after the
// first checkout fetch.
func NewReconciler(attempts int, interval time.Duration) *Reconciler {
	return &Reconciler{policy: retry.Policy{Retries: attempts, Interval: interval}}
}

// WithWait replaces the wait between polls.
func (r *Reconciler) WithWait(wait func(ctx context.Context, d time.Duration) error) *Reconciler {
	r.policy.Wait = wait
	return r
}

// Complete returns the enriched order, or a *gateway.PendingError when the
// order did not appear within the poll budget.
func (r *Reconciler) Complete(ctx context.Context, p Platform, checkout jsondoc.Doc) (*gateway.Result, error) {
	log := logging.From(ctx)
	token := checkout.Str("token")
	if token == "" {
		return nil, &gateway.Error{StatusCode: http.StatusBadRequest, Message: "missing checkout token for completion"}
	}

	last, outcome, err := retry.Poll(ctx, r.policy, func(ctx context.Context, attempt int) (*gateway.Result, bool, error) {
		res, err := p.GetCheckout(ctx, token)
		if err != nil {
			return nil, false, err
		}
		ready := res.Body.Doc("order").Str("id") != ""
		if !ready {
			log.Debug("order not ready", zap.Int("attempt", attempt), zap.Int("status", res.StatusCode))
		}
		return res, ready, nil
	})
	if err != nil {
		return nil, err
	}
	if outcome != retry.Resolved {
		code := http.StatusCreated
		if last != nil && last.StatusCode != 0 {
			code = last.StatusCode
		}
		log.Info("order still processing", zap.String("outcome", outcome.String()), zap.Int("status", code))
		return nil, &gateway.PendingError{
			StatusCode: code,
			Message:    fmt.Sprintf("Shopify Status Code from the 'Complete Checkout' is %d or is still processing (should be 200)", code),
		}
	}

	orderID := last.Body.Doc("order").Str("id")
	opened, err := p.OpenOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	updated, err := p.UpdateOrder(ctx, orderID, OrderPatch(checkout))
	if err != nil {
		return nil, err
	}

	order := opened.Body
	if order.Str("financial_status") == "paid" || order.Bool("confirmed") {
		if payments := order.List("payments"); len(payments) > 0 {
			if tx := jsondoc.AsDoc(payments[0]).Doc("transaction"); tx != nil {
				updated.Body["transaction"] = tx
			}
			return updated, nil
		}
		listed, err := p.ListPayments(ctx, token)
		if err != nil {
			return nil, err
		}
		if payments := listed.Body.List("payments"); len(payments) > 0 {
			updated.Body["transaction"] = jsondoc.AsDoc(payments[0]).Doc("transaction")
		}
		return updated, nil
	}

	tx, err := r.capture(ctx, p, orderID)
	if err != nil {
		return nil, err
	}
	updated.Body["transaction"] = tx
	updated.Body["financial_status"] = tx.Str("kind")
	return updated, nil
}

// capture settles the latest successful authorization of the order.
func (r *Reconciler) capture(ctx context.Context, p Platform, orderID string) (jsondoc.Doc, error) {
	listed, err := p.ListTransactions(ctx, orderID)
	if err != nil {
		return nil, err
	}
	var auth jsondoc.Doc
	for _, v := range listed.Body.List("transactions") {
		t := jsondoc.AsDoc(v)
		if t.Str("kind") == "authorization" && t.Str("status") == "success" {
			auth = t
		}
	}
	if auth == nil {
		return nil, &gateway.Error{StatusCode: http.StatusUnprocessableEntity, Message: "no authorization to capture for order " + orderID}
	}

	res, err := p.CreateTransaction(ctx, orderID, jsondoc.Doc{
		"kind":      "capture",
		"parent_id": auth["id"],
		"amount":    auth["amount"],
		"currency":  auth["currency"],
	})
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}
