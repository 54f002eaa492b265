package main

import (
	"context"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/idempotency"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/lifecycle"
)

// Commands runs the after-sale stages. *lifecycle.Service implements it.
type Commands interface {
	Refund(ctx context.Context, req lifecycle.Request) (*lifecycle.Response, error)
	Cancel(ctx context.Context, req lifecycle.Request) (*lifecycle.Response, error)
}

// IdempotencyStore tracks command outcomes. *idempotency.Store implements it.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*idempotency.Record, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}
