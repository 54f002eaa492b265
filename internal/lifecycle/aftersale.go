package lifecycle

import (
	"context"
	"fmt"
	"net/http"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/gateway"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/shops"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/transactions"
)

// afterSale is the shared setup of stages that act on an existing order.
type afterSale struct {
	tx       *transactions.Transaction
	cfg      *shops.Config
	gw       gateway.Gateway
	method   string
	checkout jsondoc.Doc
	orderID  string
}

func (s *Service) loadAfterSale(ctx context.Context, in *stageInput) (*afterSale, error) {
	tx, err := s.loadTransaction(ctx, in.id)
	if err != nil {
		return nil, err
	}
	cfg, err := s.loadShopConfig(ctx, in.shop)
	if err != nil {
		return nil, err
	}
	method := firstNonEmpty(in.method, tx.PaymentGateway)
	gw, err := s.gatewayFor(method)
	if err != nil {
		return nil, err
	}
	checkout := in.checkout
	if len(checkout) == 0 {
		checkout = tx.Checkout
	}
	return &afterSale{
		tx:       tx,
		cfg:      cfg,
		gw:       gw,
		method:   method,
		checkout: checkout,
		orderID:  firstNonEmpty(in.body.OrderID, tx.OrderID),
	}, nil
}

func (a *afterSale) call(shop string) gateway.Call {
	return gateway.Call{
		Shop:        shop,
		Config:      a.cfg,
		Checkout:    a.checkout,
		OrderID:     a.orderID,
		Email:       a.tx.Email,
		Transaction: a.tx,
	}
}

func (a *afterSale) response(in *stageInput, message string) *Response {
	return &Response{
		Code:              http.StatusOK,
		Message:           message,
		TransactionID:     in.id,
		Shop:              in.shop,
		ShopifyDomain:     in.shop,
		Checkout:          &CheckoutEnvelope{Checkout: a.tx.Checkout},
		CheckoutToken:     a.tx.Checkout.Str("token"),
		PaymentToken:      a.tx.PaymentToken,
		PaymentMethod:     a.method,
		Payment:           a.tx.Payment,
		Order:             a.tx.Order,
		Refund:            a.tx.Refund,
		OrderID:           a.tx.OrderID,
		ShopDomainOrderID: a.tx.ShopDomainOrderID,
		Status:            a.tx.Status,
	}
}

// GetOrder returns the platform order of the transaction. Nothing is persisted.
func (s *Service) GetOrder(ctx context.Context, req Request) (*Response, error) {
	return s.run(ctx, StageGetOrder, req, func(ctx context.Context, in *stageInput) (*Response, error) {
		a, err := s.loadAfterSale(ctx, in)
		if err != nil {
			return nil, err
		}
		res, err := a.gw.GetOrder(ctx, a.call(in.shop))
		if err != nil {
			return nil, err
		}
		resp := a.response(in, "Order retrieved successfully by "+a.method)
		resp.Order = res.Body
		resp.OrderID = firstNonEmpty(res.Body.Str("id"), a.orderID)
		return resp, nil
	})
}

// Refund refunds the order and stores the refund on the transaction.
func (s *Service) Refund(ctx context.Context, req Request) (*Response, error) {
	return s.run(ctx, StageRefund, req, func(ctx context.Context, in *stageInput) (*Response, error) {
		a, err := s.loadAfterSale(ctx, in)
		if err != nil {
			return nil, err
		}
		if a.orderID == "" {
			return nil, notFound("Transaction " + in.id + " has no order to refund")
		}
		call := a.call(in.shop)
		call.Refund = in.body.Refund
		in.dispatched = true
		res, err := a.gw.RefundOrder(ctx, call)
		if err != nil {
			return nil, err
		}

		a.tx.Refund = res.Body
		if a.tx, err = s.Transactions.Put(ctx, a.tx); err != nil {
			return nil, fmt.Errorf("save transaction: %w", err)
		}
		return a.response(in, "Order refunded successfully by "+a.method), nil
	})
}

// Cancel cancels the order and stores the cancelled order on the transaction.
func (s *Service) Cancel(ctx context.Context, req Request) (*Response, error) {
	return s.run(ctx, StageCancel, req, func(ctx context.Context, in *stageInput) (*Response, error) {
		a, err := s.loadAfterSale(ctx, in)
		if err != nil {
			return nil, err
		}
		if a.orderID == "" {
			return nil, notFound("Transaction " + in.id + " has no order to cancel")
		}
		call := a.call(in.shop)
		call.Cancel = in.body.Cancel
		in.dispatched = true
		res, err := a.gw.CancelOrder(ctx, call)
		if err != nil {
			return nil, err
		}
		if err := requireOK("Cancel Process", res); err != nil {
			return nil, err
		}

		a.tx.Order = a.tx.Order.Merge(unwrapOrder(res.Body))
		if a.tx, err = s.Transactions.Put(ctx, a.tx); err != nil {
			return nil, fmt.Errorf("save transaction: %w", err)
		}
		return a.response(in, "Order cancelled successfully by "+a.method), nil
	})
}
