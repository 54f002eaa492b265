package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/customers"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/gateway"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/logging"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/shops"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/transactions"
)

// TransactionStore persists transactions. Get returns (nil, nil) when absent.
type TransactionStore interface {
	Get(ctx context.Context, id string) (*transactions.Transaction, error)
	Put(ctx context.Context, t *transactions.Transaction) (*transactions.Transaction, error)
}

// ShopProvider serves merchant configuration; both lookups return nil when absent.
type ShopProvider interface {
	GetShopConfig(ctx context.Context, shop string) (*shops.Config, error)
	GetShopifyAppKeys(ctx context.Context, shop string) (*shops.AppKeys, error)
}

type CustomerService interface {
	Upsert(ctx context.Context, d customers.Data) (*customers.Customer, error)
}

// Notifier sends the cart-recovery event of a completed order.
type Notifier interface {
	SendCartRecoveryMessage(ctx context.Context, shop, transactionID string, customer *customers.Customer, checkout jsondoc.Doc, eventType string) error
}

// Storefront maintains the platform checkout and order directly when the
// payment ran through a non-native gateway.
type Storefront interface {
	RefreshCheckout(ctx context.Context, shop, accessToken, checkoutToken string, checkout jsondoc.Doc) (jsondoc.Doc, error)
	CreateOrder(ctx context.Context, shop, accessToken string, checkout jsondoc.Doc) (jsondoc.Doc, error)
}

// Recorder observes stage outcomes. *aws.Metrics implements it.
type Recorder interface {
	ObserveStage(ctx context.Context, stage, gateway string, took time.Duration, err error) error
}

// Deps are the collaborators of a Service. Notifier and Metrics are optional.
type Deps struct {
	Transactions TransactionStore
	Shops        ShopProvider
	Customers    CustomerService
	Storefront   Storefront
	Gateways     *gateway.Dispatcher
	Notifier     Notifier
	Metrics      Recorder
	// CartRecovery turns on the completion notification.
	CartRecovery bool
}

// Service runs lifecycle stages.
type Service struct {
	Deps
	newToken func() string
	nowFunc  func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		Deps:     d,
		newToken: uuid.NewString,
		nowFunc:  time.Now,
	}
}

// stageInput is the request with defaults applied. checkout and payment are
// private copies the stage may mutate.
type stageInput struct {
	shop     string
	id       string
	method   string
	body     *RequestBody
	checkout jsondoc.Doc
	payment  jsondoc.Doc
	ip       string
	agent    string

	// dispatched is set once a non-repeatable platform command was sent.
	dispatched bool
}

func newStageInput(req Request) *stageInput {
	in := &stageInput{
		shop:   req.Shop,
		id:     firstNonEmpty(req.Body.TransactionID, req.TransactionID),
		method: req.Body.PaymentMethod,
		body:   req.Body,
		ip:     req.SourceIP,
		agent:  req.UserAgent,
	}
	in.checkout = unwrapCheckout(req.Body.Checkout).Clone()
	if in.checkout == nil {
		in.checkout = jsondoc.Doc{}
	}
	in.payment = req.Body.Payment.Clone()
	if in.payment == nil {
		in.payment = jsondoc.Doc{}
	}
	return in
}

type stageFunc func(ctx context.Context, in *stageInput) (*Response, error)

// run is the stage boundary: it rejects body-less requests before any I/O,
// attaches stage fields to the request logger, turns panics and untyped
// errors into *Error and records the outcome.
func (s *Service) run(ctx context.Context, stage Stage, req Request, fn stageFunc) (resp *Response, err error) {
	if req.Body == nil {
		logging.From(ctx).Warn("request without body", zap.String("stage", string(stage)))
		return nil, MissingInput()
	}

	start := s.nowFunc()
	in := newStageInput(req)
	ctx = logging.With(ctx,
		zap.String("stage", string(stage)),
		zap.String("shopify_domain", in.shop),
		zap.String("gu_transaction_id", in.id),
		zap.String("payment_method", in.method),
		zap.String("checkout_token", in.checkout.Str("token")),
	)
	log := logging.From(ctx)

	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("panic in %s stage: %v", stage, r)
		}
		if err != nil {
			resp = nil
			lerr := classify(stage, err)
			if lerr.Kind == KindUnhandled && in.dispatched {
				lerr = applied(stage, lerr.Err)
			}
			err = lerr
			log.Error("stage failed",
				zap.String("kind", lerr.Kind.String()),
				zap.Int("code", lerr.Code),
				zap.String("message", lerr.Message),
				zap.Error(lerr.Err),
			)
		} else {
			log.Info("stage succeeded", zap.String("transaction_status", string(resp.Status)))
		}
		if s.Metrics != nil {
			if merr := s.Metrics.ObserveStage(ctx, string(stage), in.method, s.nowFunc().Sub(start), err); merr != nil {
				log.Warn("record stage metric", zap.Error(merr))
			}
		}
	}()

	return fn(ctx, in)
}

func (s *Service) loadTransaction(ctx context.Context, id string) (*transactions.Transaction, error) {
	tx, err := s.Transactions.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load transaction %s: %w", id, err)
	}
	if tx == nil {
		return nil, notFound("Unable to retrieve transaction with id " + id)
	}
	return tx, nil
}

func (s *Service) loadShopConfig(ctx context.Context, shop string) (*shops.Config, error) {
	cfg, err := s.Shops.GetShopConfig(ctx, shop)
	if err != nil {
		return nil, fmt.Errorf("load shop config %s: %w", shop, err)
	}
	if cfg == nil {
		return nil, notFound("Unable to retrieve shop config")
	}
	return cfg, nil
}

func (s *Service) loadAppKeys(ctx context.Context, shop string) (*shops.AppKeys, error) {
	keys, err := s.Shops.GetShopifyAppKeys(ctx, shop)
	if err != nil {
		return nil, fmt.Errorf("load app keys %s: %w", shop, err)
	}
	if keys == nil {
		return nil, notFound("Unable to retrieve shopify_app_keys")
	}
	return keys, nil
}

// upsertCustomer records the buyer and returns nil when there is no email.
func (s *Service) upsertCustomer(ctx context.Context, email string, checkout jsondoc.Doc) (*customers.Customer, error) {
	if email == "" || s.Customers == nil {
		return nil, nil
	}
	c, err := s.Customers.Upsert(ctx, customers.Data{
		Email:             email,
		Name:              checkout.Str("name"),
		ShopifyCustomerID: checkout.Str("customer_id"),
		CustomerLocale:    checkout.Str("customer_locale"),
		Phone:             checkout.Str("phone"),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert customer: %w", err)
	}
	return c, nil
}

// withPlatformFields stamps the identifiers storefront clients read back from
// every gateway result.
func withPlatformFields(res jsondoc.Doc, shop, checkoutToken, paymentToken string) jsondoc.Doc {
	out := res.Clone()
	if out == nil {
		out = jsondoc.Doc{}
	}
	out["shop"] = shop
	out["shopify_domain"] = shop
	if checkoutToken != "" {
		out["checkout_token"] = checkoutToken
	}
	out["payment_token"] = paymentToken
	return out
}

func (s *Service) gatewayFor(method string) (gateway.Gateway, error) {
	gw, err := s.Gateways.For(method)
	if err != nil {
		return nil, notFound(err.Error())
	}
	return gw, nil
}

// requireOK rejects results outside [200, 304).
func requireOK(op string, res *gateway.Result) error {
	if res == nil {
		return &gateway.Error{Message: op + " returned no result"}
	}
	if !res.OK() {
		return &gateway.Error{
			StatusCode: res.StatusCode,
			Message:    fmt.Sprintf("Shopify Status Code from the '%s' is %d (should be 200)", op, res.StatusCode),
		}
	}
	return nil
}
