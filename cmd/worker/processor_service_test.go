package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/gateway"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/idempotency"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/lifecycle"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/shops"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/transactions"
)

// brokenStore serves the transaction but never saves.
type brokenStore struct {
	tx *transactions.Transaction
}

func (s *brokenStore) Get(ctx context.Context, id string) (*transactions.Transaction, error) {
	cp := *s.tx
	return &cp, nil
}

func (s *brokenStore) Put(ctx context.Context, t *transactions.Transaction) (*transactions.Transaction, error) {
	return nil, errors.New("ProvisionedThroughputExceededException")
}

type staticShops struct{}

func (staticShops) GetShopConfig(ctx context.Context, shop string) (*shops.Config, error) {
	return &shops.Config{Shop: shop, ShopifyToken: "shpat_x"}, nil
}

func (staticShops) GetShopifyAppKeys(ctx context.Context, shop string) (*shops.AppKeys, error) {
	return &shops.AppKeys{APIKey: "k"}, nil
}

// countingGateway records platform refunds and cancels.
type countingGateway struct {
	refunds int
	cancels int
}

func (g *countingGateway) ok() (*gateway.Result, error) {
	return &gateway.Result{StatusCode: 201, Body: jsondoc.Doc{"id": int64(77)}}, nil
}

func (g *countingGateway) Name() string { return gateway.MethodShopify }

func (g *countingGateway) CreateOrder(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	return g.ok()
}

func (g *countingGateway) AuthorizeOrder(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	return g.ok()
}

func (g *countingGateway) OrderUpdate(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	return g.ok()
}

func (g *countingGateway) PostOrder(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	return g.ok()
}

func (g *countingGateway) GetOrder(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	return g.ok()
}

func (g *countingGateway) RefundOrder(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	g.refunds++
	return g.ok()
}

func (g *countingGateway) CancelOrder(ctx context.Context, call gateway.Call) (*gateway.Result, error) {
	g.cancels++
	return &gateway.Result{StatusCode: 200, Body: jsondoc.Doc{"order": map[string]interface{}{"id": int64(4501)}}}, nil
}

func TestWorkerProcess_SaveFailureAfterPlatformAppliesOnce(t *testing.T) {
	for _, stage := range []lifecycle.Stage{lifecycle.StageRefund, lifecycle.StageCancel} {
		t.Run(string(stage), func(t *testing.T) {
			gw := &countingGateway{}
			svc := lifecycle.NewService(lifecycle.Deps{
				Transactions: &brokenStore{tx: &transactions.Transaction{ID: "T1", OrderID: "4501", PaymentGateway: gateway.MethodShopify}},
				Shops:        staticShops{},
				Gateways:     gateway.NewDispatcher(gw),
			})
			idem := newFakeIdempotency("k1")
			p := NewProcessor(svc, idem, zap.NewNop())

			cmd := refundCommand("k1")
			cmd.Stage = stage
			ev := events.SQSEvent{Records: []events.SQSMessage{message(t, "m1", cmd)}}
			for i := 0; i < 3; i++ {
				resp, err := p.Handle(context.Background(), ev)
				require.NoError(t, err)
				assert.Empty(t, resp.BatchItemFailures, "delivery %d", i+1)
			}

			assert.Equal(t, 1, gw.refunds+gw.cancels)
			rec := idem.records["k1"]
			assert.Equal(t, idempotency.StatusDone, rec.Status)
			assert.Contains(t, rec.ResponseBody, "applied on the platform")
		})
	}
}
