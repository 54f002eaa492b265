package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/customers"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/gateway"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/shops"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/transactions"
)

type fakeStore struct {
	items  map[string]*transactions.Transaction
	gets   int
	puts   int
	getErr error
	putErr error
}

func newFakeStore(seed ...*transactions.Transaction) *fakeStore {
	s := &fakeStore{items: map[string]*transactions.Transaction{}}
	for _, t := range seed {
		s.items[t.ID] = t
	}
	return s
}

func (s *fakeStore) Get(ctx context.Context, id string) (*transactions.Transaction, error) {
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	t, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *fakeStore) Put(ctx context.Context, t *transactions.Transaction) (*transactions.Transaction, error) {
	s.puts++
	if s.putErr != nil {
		return nil, s.putErr
	}
	cp := *t
	s.items[t.ID] = &cp
	out := cp
	return &out, nil
}

type fakeShops struct {
	config *shops.Config
	keys   *shops.AppKeys
	calls  int
}

func (f *fakeShops) GetShopConfig(ctx context.Context, shop string) (*shops.Config, error) {
	f.calls++
	if f.config == nil {
		return nil, nil
	}
	cp := *f.config
	return &cp, nil
}

func (f *fakeShops) GetShopifyAppKeys(ctx context.Context, shop string) (*shops.AppKeys, error) {
	f.calls++
	return f.keys, nil
}

type fakeCustomers struct {
	upserts []customers.Data
}

func (f *fakeCustomers) Upsert(ctx context.Context, d customers.Data) (*customers.Customer, error) {
	f.upserts = append(f.upserts, d)
	return &customers.Customer{ID: "cust-1", Email: d.Email}, nil
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) SendCartRecoveryMessage(ctx context.Context, shop, transactionID string, customer *customers.Customer, checkout jsondoc.Doc, eventType string) error {
	f.sent = append(f.sent, transactionID+":"+eventType)
	return f.err
}

type fakeStorefront struct {
	refreshed jsondoc.Doc
	created   jsondoc.Doc
	orderIn   jsondoc.Doc
}

func (f *fakeStorefront) RefreshCheckout(ctx context.Context, shop, accessToken, checkoutToken string, checkout jsondoc.Doc) (jsondoc.Doc, error) {
	return f.refreshed.Clone(), nil
}

func (f *fakeStorefront) CreateOrder(ctx context.Context, shop, accessToken string, checkout jsondoc.Doc) (jsondoc.Doc, error) {
	f.orderIn = checkout
	return f.created.Clone(), nil
}

type fakeRecorder struct {
	stages []string
	errs   []error
}

func (f *fakeRecorder) ObserveStage(ctx context.Context, stage, gw string, took time.Duration, err error) error {
	f.stages = append(f.stages, stage)
	f.errs = append(f.errs, err)
	return nil
}

// fakeGateway answers every operation with results[op] (200 {} by default).
type fakeGateway struct {
	calls    []string
	results  map[string]*gateway.Result
	errs     map[string]error
	panicOn  string
	lastCall gateway.Call
}

func (g *fakeGateway) do(op string, call gateway.Call) (*gateway.Result, error) {
	g.calls = append(g.calls, op)
	g.lastCall = call
	if g.panicOn == op {
		panic("unexpected nil checkout")
	}
	if err := g.errs[op]; err != nil {
		return nil, err
	}
	if r := g.results[op]; r != nil {
		return &gateway.Result{StatusCode: r.StatusCode, Body: r.Body.Clone()}, nil
	}
	return &gateway.Result{StatusCode: 200, Body: jsondoc.Doc{}}, nil
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) CreateOrder(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	return g.do("CreateOrder", call)
}

func (g *fakeGateway) AuthorizeOrder(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	return g.do("AuthorizeOrder", call)
}

func (g *fakeGateway) OrderUpdate(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	return g.do("OrderUpdate", call)
}

func (g *fakeGateway) PostOrder(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	return g.do("PostOrder", call)
}

func (g *fakeGateway) GetOrder(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	return g.do("GetOrder", call)
}

func (g *fakeGateway) RefundOrder(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	return g.do("RefundOrder", call)
}

func (g *fakeGateway) CancelOrder(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	return g.do("CancelOrder", call)
}

var errBoom = errors.New("boom")

type harness struct {
	store      *fakeStore
	shops      *fakeShops
	customers  *fakeCustomers
	notifier   *fakeNotifier
	storefront *fakeStorefront
	metrics    *fakeRecorder
	gw         *fakeGateway
	svc        *Service
}

const testShop = "demo.myshopify.com"

func newHarness(seed ...*transactions.Transaction) *harness {
	h := &harness{
		store:      newFakeStore(seed...),
		shops:      &fakeShops{config: &shops.Config{Shop: testShop, ShopifyToken: "shpat_x"}, keys: &shops.AppKeys{APIKey: "k"}},
		customers:  &fakeCustomers{},
		notifier:   &fakeNotifier{},
		storefront: &fakeStorefront{},
		metrics:    &fakeRecorder{},
		gw:         &fakeGateway{results: map[string]*gateway.Result{}, errs: map[string]error{}},
	}
	d := gateway.NewDispatcher(h.gw)
	d.Register(h.gw, gateway.MethodShopify, gateway.MethodShopifyPayments)
	h.svc = NewService(Deps{
		Transactions: h.store,
		Shops:        h.shops,
		Customers:    h.customers,
		Storefront:   h.storefront,
		Gateways:     d,
		Notifier:     h.notifier,
		Metrics:      h.metrics,
		CartRecovery: true,
	})
	h.svc.newToken = func() string { return "pay-tok-1" }
	return h
}
