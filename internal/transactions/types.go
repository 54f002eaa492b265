package transactions

import (
	"fmt"
	"time"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"
)

// Status is the lifecycle stage a transaction last completed.
type Status string

// Transaction statuses, in lifecycle order.
const (
	StatusCreated    Status = "Created"
	StatusAuthorized Status = "Authorized"
	StatusUpdated    Status = "Updated"
	StatusCompleted  Status = "Completed"
)

// Transaction is the item stored in the transactions DynamoDB table.
type Transaction struct {
	ID                      string      `dynamodbav:"gu_transaction_id" json:"gu_transaction_id"` // PK
	ShopDomainCheckoutToken string      `dynamodbav:"shopifydomain_checkout_token" json:"shopifydomain_checkout_token"`
	ShopDomainOrderID       string      `dynamodbav:"shopifydomain_orderid" json:"shopifydomain_orderid"`
	ShopDomain              string      `dynamodbav:"shopify_domain" json:"shopify_domain"`
	PaymentToken            string      `dynamodbav:"payment_token,omitempty" json:"payment_token,omitempty"`
	PaymentGateway          string      `dynamodbav:"payment_gateway,omitempty" json:"payment_gateway,omitempty"`
	Status                  Status      `dynamodbav:"transaction_status" json:"transaction_status"`
	Checkout                jsondoc.Doc `dynamodbav:"checkout,omitempty" json:"checkout,omitempty"`
	Payment                 jsondoc.Doc `dynamodbav:"payment,omitempty" json:"payment,omitempty"`
	Order                   jsondoc.Doc `dynamodbav:"order" json:"order"`   // nil until completion
	Refund                  jsondoc.Doc `dynamodbav:"refund" json:"refund"` // nil until refunded
	Settlement              jsondoc.Doc `dynamodbav:"transaction,omitempty" json:"transaction,omitempty"`
	Email                   string      `dynamodbav:"email,omitempty" json:"email,omitempty"`
	OrderName               string      `dynamodbav:"order_name,omitempty" json:"order_name,omitempty"`
	OrderID                 string      `dynamodbav:"order_id,omitempty" json:"order_id,omitempty"`
	CustomerID              string      `dynamodbav:"gu_customer_id,omitempty" json:"gu_customer_id,omitempty"`
	PlatformFee             float64     `dynamodbav:"platform_fee,omitempty" json:"platform_fee,omitempty"`
	CheckoutUpdatedAt       string      `dynamodbav:"checkout_updated_at,omitempty" json:"checkout_updated_at,omitempty"`
	CreatedAt               time.Time   `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt               time.Time   `dynamodbav:"updated_at" json:"updated_at"`
}

// CheckoutKey builds the shopifydomain_checkout_token secondary key.
func CheckoutKey(shop, checkoutToken string) string {
	return fmt.Sprintf("%s_%s", shop, checkoutToken)
}

// OrderKey builds the shopifydomain_orderid secondary key. An empty order id
// renders as "null" until the order exists.
func OrderKey(shop, orderID string) string {
	if orderID == "" {
		orderID = "null"
	}
	return fmt.Sprintf("%s_%s", shop, orderID)
}
