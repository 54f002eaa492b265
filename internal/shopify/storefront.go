package shopify

import (
	"context"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"
)

// Storefront is used by the lifecycle when the payment ran through a
// non-native gateway: the platform checkout and order are maintained directly.
type Storefront struct {
	platforms PlatformFactory
}

func NewStorefront(platforms PlatformFactory) *Storefront {
	return &Storefront{platforms: platforms}
}

// RefreshCheckout pushes checkout to the platform and returns the platform's copy.
func (s *Storefront) RefreshCheckout(ctx context.Context, shop, accessToken, checkoutToken string, checkout jsondoc.Doc) (jsondoc.Doc, error) {
	res, err := s.platforms(shop, accessToken).UpdateCheckout(ctx, checkoutToken, checkout)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// CreateOrder creates the platform order for a completed checkout.
func (s *Storefront) CreateOrder(ctx context.Context, shop, accessToken string, checkout jsondoc.Doc) (jsondoc.Doc, error) {
	res, err := s.platforms(shop, accessToken).CreateOrder(ctx, OrderFromCheckout(checkout))
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

var orderFields = []string{
	"email", "phone", "currency", "line_items", "shipping_address", "billing_address",
	"shipping_lines", "tax_lines", "transactions", "discount_codes", "note",
	"note_attributes", "browser_ip", "landing_site", "buyer_accepts_marketing",
	"total_price", "subtotal_price", "total_tax", "taxes_included", "customer_locale",
}

// OrderFromCheckout builds an order create payload from a checkout.
func OrderFromCheckout(checkout jsondoc.Doc) jsondoc.Doc {
	order := jsondoc.Doc{}
	for _, k := range orderFields {
		if checkout.Has(k) {
			order[k] = checkout[k]
		}
	}
	if ua := checkout.Str("user_agent"); ua != "" || checkout.Has("browser_ip") {
		order["client_details"] = jsondoc.Doc{
			"browser_ip": checkout["browser_ip"],
			"user_agent": ua,
		}
	}
	if token := checkout.Str("token"); token != "" {
		order["checkout_token"] = token
	}
	return order
}
