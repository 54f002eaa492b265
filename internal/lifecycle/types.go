// Package lifecycle orchestrates the checkout stages (create, authorize,
// update, complete) and the after-sale commands against a payment gateway,
// persisting the transaction record after every successful stage.
package lifecycle

import (
	"github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/transactions"
)

// Stage names, used in logs, metrics and routes.
type Stage string

const (
	StageCreate    Stage = "create"
	StageAuthorize Stage = "authorize"
	StageUpdate    Stage = "update"
	StageComplete  Stage = "complete"
	StageGetOrder  Stage = "order"
	StageRefund    Stage = "refund"
	StageCancel    Stage = "cancel"
)

// Request is one stage invocation. Body is nil when the caller sent none.
type Request struct {
	Shop          string
	TransactionID string
	Body          *RequestBody
	SourceIP      string
	UserAgent     string
}

// RequestBody is the JSON payload posted by the storefront.
type RequestBody struct {
	Checkout      jsondoc.Doc `json:"checkout"`
	Payment       jsondoc.Doc `json:"payment"`
	PaymentMethod string      `json:"paymentMethod"`
	TransactionID string      `json:"gu_transaction_id"`
	Email         string      `json:"email,omitempty"`
	OrderID       string      `json:"order_id,omitempty"`
	Refund        jsondoc.Doc `json:"refund,omitempty"`
	Cancel        jsondoc.Doc `json:"cancel,omitempty"`
}

// Command is an after-sale stage queued for the worker.
type Command struct {
	Stage          Stage       `json:"command"`
	Shop           string      `json:"shopify_domain"`
	TransactionID  string      `json:"gu_transaction_id"`
	IdempotencyKey string      `json:"idempotency_key"`
	CorrelationID  string      `json:"correlation_id,omitempty"`
	SourceIP       string      `json:"source_ip,omitempty"`
	UserAgent      string      `json:"user_agent,omitempty"`
	Body           RequestBody `json:"body"`
}

// Request rebuilds the stage request the command was accepted for.
func (c Command) Request() Request {
	body := c.Body
	return Request{
		Shop:          c.Shop,
		TransactionID: c.TransactionID,
		Body:          &body,
		SourceIP:      c.SourceIP,
		UserAgent:     c.UserAgent,
	}
}

// CheckoutEnvelope nests the checkout the way storefront clients expect it.
type CheckoutEnvelope struct {
	Checkout jsondoc.Doc `json:"checkout"`
}

// Response is the success envelope of every stage.
type Response struct {
	Code                    int                 `json:"code"`
	Message                 string              `json:"message"`
	TransactionID           string              `json:"gu_transaction_id"`
	Shop                    string              `json:"shop"`
	ShopifyDomain           string              `json:"shopify_domain"`
	Checkout                *CheckoutEnvelope   `json:"checkout,omitempty"`
	CheckoutToken           string              `json:"checkout_token,omitempty"`
	PaymentToken            string              `json:"payment_token,omitempty"`
	PaymentMethod           string              `json:"paymentMethod,omitempty"`
	Payment                 jsondoc.Doc         `json:"payment,omitempty"`
	Order                   jsondoc.Doc         `json:"order"`
	Refund                  jsondoc.Doc         `json:"refund,omitempty"`
	OrderID                 string              `json:"order_id,omitempty"`
	ShopDomainCheckoutToken string              `json:"shopifydomain_checkout_token,omitempty"`
	ShopDomainOrderID       string              `json:"shopifydomain_orderid,omitempty"`
	Status                  transactions.Status `json:"transaction_status,omitempty"`
}
