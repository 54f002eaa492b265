package lifecycle

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/gateway"
)

// Kind classifies stage failures.
type Kind int

const (
	KindUnhandled Kind = iota
	KindMissingInput
	KindDependencyNotFound
	KindGateway
	KindPending
	// KindApplied means the platform accepted the command and a later step
	// failed. Running the command again would apply it twice.
	KindApplied
)

func (k Kind) String() string {
	switch k {
	case KindMissingInput:
		return "missing_input"
	case KindDependencyNotFound:
		return "dependency_not_found"
	case KindGateway:
		return "gateway"
	case KindPending:
		return "pending"
	case KindApplied:
		return "applied"
	}
	return "unhandled"
}

// Error is the failure of a stage. Code and Message form the failure envelope
// returned to the caller; Err keeps the cause for logs.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrMissingBody is the cause of every MissingInput failure.
var ErrMissingBody = errors.New("request body is required")

// MissingInput is the failure of a request that carries no body.
func MissingInput() *Error {
	return &Error{
		Kind:    KindMissingInput,
		Code:    http.StatusBadRequest,
		Message: "Unable to process this event without a body",
		Err:     ErrMissingBody,
	}
}

func notFound(message string) *Error {
	return &Error{Kind: KindDependencyNotFound, Code: http.StatusInternalServerError, Message: message}
}

// applied reports a failure that happened after the platform accepted the
// command of stage.
func applied(stage Stage, err error) *Error {
	return &Error{
		Kind:    KindApplied,
		Code:    http.StatusInternalServerError,
		Message: fmt.Sprintf("%s applied on the platform but the transaction was not saved", stage),
		Err:     err,
	}
}

// failureMessages are returned instead of the cause of unhandled errors.
var failureMessages = map[Stage]string{
	StageCreate:    "Order Creation failure",
	StageAuthorize: "Payment authorization failure",
	StageUpdate:    "Adjust authorization failure",
	StageComplete:  "Failed shopify create order",
	StageGetOrder:  "Order retrieval failure",
	StageRefund:    "Refund failure",
	StageCancel:    "Cancel failure",
}

// classify maps any stage error onto an *Error.
func classify(stage Stage, err error) *Error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	var pe *gateway.PendingError
	if errors.As(err, &pe) {
		code := pe.StatusCode
		if code == 0 {
			code = http.StatusCreated
		}
		return &Error{Kind: KindPending, Code: code, Message: pe.Message, Err: err}
	}
	var ge *gateway.Error
	if errors.As(err, &ge) {
		code := ge.StatusCode
		if code < http.StatusBadRequest {
			code = http.StatusInternalServerError
		}
		return &Error{Kind: KindGateway, Code: code, Message: ge.Message, Err: err}
	}
	msg, ok := failureMessages[stage]
	if !ok {
		msg = "Unexpected failure"
	}
	return &Error{Kind: KindUnhandled, Code: http.StatusInternalServerError, Message: msg, Err: err}
}
