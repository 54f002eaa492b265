package lifecycle

import (
	"github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/shops"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/transactions"
)

// firstNonEmpty returns the first non-empty candidate, in order.
func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// updateEmail: checkout.email > body.email > transaction.email.
func updateEmail(checkout jsondoc.Doc, body *RequestBody, tx *transactions.Transaction) string {
	var fromBody, fromTx string
	if body != nil {
		fromBody = body.Email
	}
	if tx != nil {
		fromTx = tx.Email
	}
	return firstNonEmpty(checkout.Str("email"), fromBody, fromTx)
}

// completionEmail: order.email > transaction.email > checkout.email.
func completionEmail(order jsondoc.Doc, tx *transactions.Transaction, checkout jsondoc.Doc) string {
	return firstNonEmpty(order.Str("email"), tx.Email, checkout.Str("email"))
}

// orderName: order.name > transaction.order_name > checkout.name.
func orderName(order jsondoc.Doc, tx *transactions.Transaction, checkout jsondoc.Doc) string {
	return firstNonEmpty(order.Str("name"), tx.OrderName, checkout.Str("name"))
}

// brandEmail: config.brand_email > keys.brand_email > keys.brandemail.
func brandEmail(cfg *shops.Config, keys *shops.AppKeys) string {
	var fromCfg, fromKeys, legacy string
	if cfg != nil {
		fromCfg = cfg.BrandEmail
	}
	if keys != nil {
		fromKeys, legacy = keys.BrandEmail, keys.BrandEmailLegacy
	}
	return firstNonEmpty(fromCfg, fromKeys, legacy)
}

// landingSite reads landing_site from note_attributes, which arrives either
// as an object or as a list of {name, value} pairs.
func landingSite(checkout jsondoc.Doc) string {
	if attrs := checkout.Doc("note_attributes"); attrs != nil {
		return attrs.Str("landing_site")
	}
	for _, v := range checkout.List("note_attributes") {
		if a := jsondoc.AsDoc(v); a.Str("name") == "landing_site" {
			return a.Str("value")
		}
	}
	return ""
}

// settlement unwraps the order's transaction detail, which some gateways nest
// one level deeper under the same key.
func settlement(order jsondoc.Doc) jsondoc.Doc {
	tx := order.Doc("transaction")
	if inner := tx.Doc("transaction"); inner != nil {
		return inner
	}
	return tx
}

// unwrapCheckout accepts both {checkout: {...}} and the bare checkout.
func unwrapCheckout(checkout jsondoc.Doc) jsondoc.Doc {
	if inner := checkout.Doc("checkout"); inner != nil {
		return inner
	}
	return checkout
}
