package customers

import "time"

// Data is what a checkout knows about its buyer.
type Data struct {
	Email             string
	Name              string
	ShopifyCustomerID string
	CustomerLocale    string
	Phone             string
}

// Customer is the record persisted in the customers table, keyed by email.
type Customer struct {
	Email             string    `dynamodbav:"email" json:"email"` // PK
	ID                string    `dynamodbav:"gu_customer_id" json:"gu_customer_id"`
	Name              string    `dynamodbav:"name,omitempty" json:"name,omitempty"`
	ShopifyCustomerID string    `dynamodbav:"shopify_customer_id,omitempty" json:"shopify_customer_id,omitempty"`
	CustomerLocale    string    `dynamodbav:"customer_locale,omitempty" json:"customer_locale,omitempty"`
	Phone             string    `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
	CreatedAt         time.Time `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt         time.Time `dynamodbav:"updated_at" json:"updated_at"`
}
