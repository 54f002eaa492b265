package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/idempotency"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/lifecycle"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/logging"
)

// Processor handles SQS batches of after-sale commands.
type Processor struct {
	commands Commands
	idem     IdempotencyStore
	log      *zap.Logger
}

// NewProcessor creates a worker processor.
func NewProcessor(commands Commands, idem IdempotencyStore, log *zap.Logger) *Processor {
	return &Processor{commands: commands, idem: idem, log: log}
}

// Handle processes every record and reports the ones to redeliver as batch
// item failures. Exhausted redeliveries land in the DLQ.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.log.Error("worker error", zap.String("message_id", rec.MessageId), zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var cmd lifecycle.Command
	if err := json.Unmarshal([]byte(rec.Body), &cmd); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	log := p.log.With(
		zap.String("command", string(cmd.Stage)),
		zap.String("shopify_domain", cmd.Shop),
		zap.String("gu_transaction_id", cmd.TransactionID),
		zap.String("idempotency_key", cmd.IdempotencyKey),
		zap.String("correlation_id", cmd.CorrelationID),
	)
	ctx = logging.Into(ctx, log)

	record, err := p.idem.Get(ctx, cmd.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("failed to fetch idempotency record: %w", err)
	}
	if record == nil {
		// the API claims the key before enqueueing; DLQ if it is gone
		return fmt.Errorf("idempotency record not found: %s", cmd.IdempotencyKey)
	}
	switch record.Status {
	case idempotency.StatusDone:
		log.Info("duplicate delivery, command already done")
		return nil
	case idempotency.StatusFailed:
		log.Info("duplicate delivery, command already failed")
		return nil
	}

	run, err := p.route(cmd.Stage)
	if err != nil {
		p.markFailed(ctx, cmd.IdempotencyKey, err.Error())
		log.Error("dropping command", zap.Error(err))
		return nil
	}

	out, err := run(ctx, cmd.Request())
	if err != nil {
		var le *lifecycle.Error
		if errors.As(err, &le) && le.Kind == lifecycle.KindApplied {
			// never redelivered: the platform already holds the command
			log.Error("command applied but not recorded, reconcile the transaction", zap.Error(err))
			p.markDone(ctx, cmd.IdempotencyKey, map[string]interface{}{"code": le.Code, "message": le.Message}, le.Code)
			return nil
		}
		if retryable(err) {
			// left IN_PROGRESS so the redelivery runs it again
			return fmt.Errorf("%s command failed: %w", cmd.Stage, err)
		}
		p.markFailed(ctx, cmd.IdempotencyKey, err.Error())
		log.Warn("command rejected", zap.Error(err))
		return nil
	}

	p.markDone(ctx, cmd.IdempotencyKey, out, out.Code)
	log.Info("command completed", zap.Int("code", out.Code))
	return nil
}

type commandFunc func(ctx context.Context, req lifecycle.Request) (*lifecycle.Response, error)

func (p *Processor) route(stage lifecycle.Stage) (commandFunc, error) {
	switch stage {
	case lifecycle.StageRefund:
		return p.commands.Refund, nil
	case lifecycle.StageCancel:
		return p.commands.Cancel, nil
	}
	return nil, fmt.Errorf("unknown command %q", stage)
}

// markDone stores the response replayed for the key. Errors are only logged: a
// redelivery after the platform applied the command would apply it twice.
func (p *Processor) markDone(ctx context.Context, key string, response interface{}, code int) {
	body, err := json.Marshal(response)
	if err != nil {
		logging.From(ctx).Error("failed to marshal command response", zap.Error(err))
		return
	}
	if err := p.idem.MarkDone(ctx, key, string(body), code); err != nil {
		logging.From(ctx).Error("failed to mark command done", zap.Error(err))
	}
}

func (p *Processor) markFailed(ctx context.Context, key, note string) {
	if err := p.idem.MarkFailed(ctx, key, note); err != nil {
		logging.From(ctx).Warn("failed to mark command failed", zap.Error(err))
	}
}

// retryable reports whether a redelivery may succeed. Only unclassified
// failures qualify; they are raised before the platform call since later ones
// come back as KindApplied. Gateway errors are final because the platform may
// have processed a request whose answer was lost.
func retryable(err error) bool {
	var le *lifecycle.Error
	if !errors.As(err, &le) {
		return true
	}
	return le.Kind == lifecycle.KindUnhandled
}
