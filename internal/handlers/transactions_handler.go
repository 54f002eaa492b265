// Package handlers registers the HTTP routes of the orchestrator API.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/idempotency"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/lifecycle"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/logging"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/validation"
)

// IdempotencyKeyHeader must accompany refund and cancel requests.
const IdempotencyKeyHeader = "Idempotency-Key"

// Stages runs the synchronous lifecycle stages. *lifecycle.Service implements it.
type Stages interface {
	Create(ctx context.Context, req lifecycle.Request) (*lifecycle.Response, error)
	Authorize(ctx context.Context, req lifecycle.Request) (*lifecycle.Response, error)
	Update(ctx context.Context, req lifecycle.Request) (*lifecycle.Response, error)
	Complete(ctx context.Context, req lifecycle.Request) (*lifecycle.Response, error)
	GetOrder(ctx context.Context, req lifecycle.Request) (*lifecycle.Response, error)
}

// IdempotencyStore guards after-sale commands. *idempotency.Store implements it.
type IdempotencyStore interface {
	CreateIfNotExists(ctx context.Context, c idempotency.Claim) (bool, error)
	Get(ctx context.Context, key string) (*idempotency.Record, error)
	Reclaim(ctx context.Context, key string) (bool, error)
	MarkFailed(ctx context.Context, key, note string) error
}

// Enqueuer publishes commands for the worker. *aws.Publisher implements it.
type Enqueuer interface {
	SendJSON(ctx context.Context, payload interface{}, attributes map[string]string) (string, error)
}

// HandlerConfig groups dependencies for the transaction routes.
type HandlerConfig struct {
	Stages      Stages
	Idempotency IdempotencyStore
	Commands    Enqueuer
}

type stageFunc func(s Stages, ctx context.Context, req lifecycle.Request) (*lifecycle.Response, error)

// RegisterTransactionRoutes registers the checkout lifecycle routes.
func RegisterTransactionRoutes(r gin.IRouter, cfg HandlerConfig) {
	h := &transactionHandler{cfg: cfg, v: validation.New()}

	g := r.Group("/shops/:shop/transactions/:transactionId")
	g.POST("/create", h.stage(lifecycle.StageCreate, Stages.Create))
	g.POST("/authorize", h.stage(lifecycle.StageAuthorize, Stages.Authorize))
	g.POST("/update", h.stage(lifecycle.StageUpdate, Stages.Update))
	g.POST("/complete", h.stage(lifecycle.StageComplete, Stages.Complete))
	g.GET("/order", h.getOrder)
	g.POST("/refund", h.command(lifecycle.StageRefund))
	g.POST("/cancel", h.command(lifecycle.StageCancel))
}

type transactionHandler struct {
	cfg HandlerConfig
	v   *validatorv10.Validate
}

func (h *transactionHandler) stage(stage lifecycle.Stage, run stageFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := h.bind(c, stage)
		if !ok {
			return
		}
		resp, err := run(h.cfg.Stages, c.Request.Context(), request(c, body))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(resp.Code, resp)
	}
}

// getOrder takes the payment method from the query string since GET carries no body.
func (h *transactionHandler) getOrder(c *gin.Context) {
	body := &lifecycle.RequestBody{
		PaymentMethod: c.Query("paymentMethod"),
		OrderID:       c.Query("order_id"),
	}
	resp, err := h.cfg.Stages.GetOrder(c.Request.Context(), request(c, body))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(resp.Code, resp)
}

// command accepts a refund or cancel, claims its idempotency key and enqueues
// it for the worker.
func (h *transactionHandler) command(stage lifecycle.Stage) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logging.From(ctx).With(zap.String("command", string(stage)))

		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "missing_idempotency_key"})
			return
		}

		body, ok := h.bind(c, stage)
		if !ok {
			return
		}
		if body == nil {
			writeError(c, lifecycle.MissingInput())
			return
		}

		claim := idempotency.Claim{
			Key:           key,
			Command:       string(stage),
			Shop:          c.Param("shop"),
			TransactionID: c.Param("transactionId"),
		}
		created, err := h.cfg.Idempotency.CreateIfNotExists(ctx, claim)
		if err != nil {
			log.Error("idempotency claim failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "idempotency_check_failed"})
			return
		}
		if !created && !h.resume(c, claim) {
			return
		}

		cmd := lifecycle.Command{
			Stage:          stage,
			Shop:           claim.Shop,
			TransactionID:  claim.TransactionID,
			IdempotencyKey: key,
			CorrelationID:  c.Writer.Header().Get(logging.RequestIDHeader),
			SourceIP:       c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
			Body:           *body,
		}
		attrs := map[string]string{
			"command":           string(stage),
			"shopify_domain":    cmd.Shop,
			"gu_transaction_id": cmd.TransactionID,
			"idempotency_key":   key,
			"correlation_id":    cmd.CorrelationID,
		}
		if _, err := h.cfg.Commands.SendJSON(ctx, cmd, attrs); err != nil {
			log.Error("enqueue failed", zap.Error(err))
			if mErr := h.cfg.Idempotency.MarkFailed(ctx, key, fmt.Sprintf("sqs_send_failed: %v", err)); mErr != nil {
				log.Warn("mark failed", zap.Error(mErr))
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "enqueue_failed"})
			return
		}

		log.Info("command accepted", zap.String("idempotency_key", key))
		c.JSON(http.StatusAccepted, accepted(claim, string(stage)+" accepted"))
	}
}

// resume handles a key that was already claimed. It writes the response and
// returns false, unless the previous attempt failed and the key could be
// reclaimed for another enqueue.
func (h *transactionHandler) resume(c *gin.Context, claim idempotency.Claim) bool {
	ctx := c.Request.Context()

	rec, err := h.cfg.Idempotency.Get(ctx, claim.Key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "idempotency_check_failed"})
		return false
	}
	if rec == nil {
		// expired between the claim and the read
		c.JSON(http.StatusConflict, gin.H{"code": http.StatusConflict, "message": "idempotency key expired, retry"})
		return false
	}
	if !rec.Matches(claim) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"code": http.StatusUnprocessableEntity, "message": "idempotency key already used for a different request"})
		return false
	}

	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" {
			status := rec.ResponseStatus
			if status == 0 {
				status = http.StatusOK
			}
			c.Data(status, "application/json", []byte(rec.ResponseBody))
			return false
		}
		c.JSON(http.StatusOK, accepted(claim, "request already processed"))
		return false
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, accepted(claim, "request already in progress"))
		return false
	case idempotency.StatusFailed:
		ok, err := h.cfg.Idempotency.Reclaim(ctx, claim.Key)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "previous_attempt_failed"})
			return false
		}
		if !ok {
			c.JSON(http.StatusAccepted, accepted(claim, "request already in progress"))
			return false
		}
		return true
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "unknown_idempotency_status"})
		return false
	}
}

func accepted(claim idempotency.Claim, message string) gin.H {
	return gin.H{
		"code":              http.StatusAccepted,
		"message":           message,
		"shop":              claim.Shop,
		"gu_transaction_id": claim.TransactionID,
		"idempotency_key":   claim.Key,
	}
}

// bind decodes and validates the body. A nil body with ok=true means the
// request had none; the stage answers that itself.
func (h *transactionHandler) bind(c *gin.Context, stage lifecycle.Stage) (*lifecycle.RequestBody, bool) {
	req := validation.TransactionRequest{Stage: string(stage)}
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		if errors.Is(err, validation.ErrEmptyBody) {
			return nil, true
		}
		return nil, false
	}
	return &lifecycle.RequestBody{
		Checkout:      req.Checkout,
		Payment:       req.Payment,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
		Email:         req.Email,
		OrderID:       req.OrderID,
		Refund:        req.Refund,
		Cancel:        req.Cancel,
	}, true
}

func request(c *gin.Context, body *lifecycle.RequestBody) lifecycle.Request {
	return lifecycle.Request{
		Shop:          c.Param("shop"),
		TransactionID: c.Param("transactionId"),
		Body:          body,
		SourceIP:      c.ClientIP(),
		UserAgent:     c.Request.UserAgent(),
	}
}

// writeError writes the failure envelope of a stage error.
func writeError(c *gin.Context, err error) {
	var le *lifecycle.Error
	if !errors.As(err, &le) {
		le = &lifecycle.Error{Code: http.StatusInternalServerError, Message: "Unexpected failure", Err: err}
	}
	c.JSON(le.Code, gin.H{"code": le.Code, "message": le.Message})
}
