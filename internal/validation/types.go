package validation

import "github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"

// TransactionRequest is the payload of every /shops/:shop/transactions/:transactionId route.
type TransactionRequest struct {
	Checkout      jsondoc.Doc `json:"checkout"`
	Payment       jsondoc.Doc `json:"payment"`
	PaymentMethod string      `json:"paymentMethod" validate:"omitempty,max=64"`
	TransactionID string      `json:"gu_transaction_id" validate:"omitempty,max=128"`
	Email         string      `json:"email,omitempty" validate:"omitempty,email"`
	OrderID       string      `json:"order_id,omitempty" validate:"omitempty,max=64"`
	Refund        jsondoc.Doc `json:"refund,omitempty"`
	Cancel        jsondoc.Doc `json:"cancel,omitempty"`

	// Stage is set by the route before validation and selects the stage rules.
	Stage string `json:"-"`
}
