// Package notify publishes cart-recovery events for completed orders.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/customers"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/logging"
)

// Event types understood by the cart-recovery consumer.
const (
	EventOrder = "order"
)

// Sender is implemented by *aws.Publisher.
type Sender interface {
	SendJSON(ctx context.Context, payload interface{}, attributes map[string]string) (string, error)
}

// Message is the cart-recovery queue payload.
type Message struct {
	EventType     string              `json:"event_type"`
	ShopifyDomain string              `json:"shopify_domain"`
	TransactionID string              `json:"gu_transaction_id"`
	Customer      *customers.Customer `json:"customer,omitempty"`
	Checkout      jsondoc.Doc         `json:"checkout"`
	SentAt        time.Time           `json:"sent_at"`
}

// CartRecovery sends Messages to the cart-recovery queue.
type CartRecovery struct {
	sender  Sender
	nowFunc func() time.Time
}

func NewCartRecovery(sender Sender) *CartRecovery {
	return &CartRecovery{sender: sender, nowFunc: time.Now}
}

// SendCartRecoveryMessage enqueues one event.
func (c *CartRecovery) SendCartRecoveryMessage(ctx context.Context, shop, transactionID string, customer *customers.Customer, checkout jsondoc.Doc, eventType string) error {
	msg := Message{
		EventType:     eventType,
		ShopifyDomain: shop,
		TransactionID: transactionID,
		Customer:      customer,
		Checkout:      checkout,
		SentAt:        c.nowFunc().UTC(),
	}
	id, err := c.sender.SendJSON(ctx, msg, map[string]string{
		"event_type":     eventType,
		"shopify_domain": shop,
	})
	if err != nil {
		return fmt.Errorf("send cart recovery message: %w", err)
	}
	logging.From(ctx).Debug("cart recovery message sent", zap.String("message_id", id), zap.String("event_type", eventType))
	return nil
}
