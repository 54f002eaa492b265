package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"
)

// New returns a validator with the stage rules for TransactionRequest registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterStructValidation(transactionStructValidation, TransactionRequest{})

	return v
}

// stageRules lists, per stage, the documents the request must carry.
var stageRules = map[string][]string{
	"create":    {"checkout"},
	"authorize": {"checkout", "payment"},
	"update":    {"checkout", "payment"},
	"complete":  {"checkout", "payment"},
}

func transactionStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(TransactionRequest)

	for _, field := range stageRules[req.Stage] {
		var doc jsondoc.Doc
		name := "Checkout"
		switch field {
		case "checkout":
			doc = req.Checkout
		case "payment":
			doc, name = req.Payment, "Payment"
		}
		if len(doc) == 0 {
			sl.ReportError(doc, field, name, "required_for_"+req.Stage, "")
		}
	}
}
