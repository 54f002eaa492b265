package idempotency

import "time"

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Claim identifies the command an idempotency key was first used for.
type Claim struct {
	Key           string
	Command       string
	Shop          string
	TransactionID string
}

// Record is the shape persisted in the idempotency DynamoDB table.
type Record struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	Command        string    `dynamodbav:"command"`
	Shop           string    `dynamodbav:"shopify_domain"`
	TransactionID  string    `dynamodbav:"gu_transaction_id"`
	ResponseBody   string    `dynamodbav:"response_body,omitempty"`
	ResponseStatus int       `dynamodbav:"response_status,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty"`
}

// Matches reports whether the record was created for the same command.
func (r *Record) Matches(c Claim) bool {
	return r.Command == c.Command && r.Shop == c.Shop && r.TransactionID == c.TransactionID
}
