package idempotency

import "time"

// Status values for inbox entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Record is the shape persisted in the inbox DynamoDB table.
type Record struct {
	MessageID  string    `dynamodbav:"message_id"` // PK
	Kind       string    `dynamodbav:"kind"`
	OrderID    string    `dynamodbav:"order_id,omitempty"`
	Status     string    `dynamodbav:"status"`
	Attempts   int       `dynamodbav:"attempts"`
	LeaseUntil int64     `dynamodbav:"lease_until"` // epoch seconds; an IN_PROGRESS entry past it can be taken over
	Note       string    `dynamodbav:"note,omitempty"`
	CreatedAt  time.Time `dynamodbav:"created_at"`
	UpdatedAt  time.Time `dynamodbav:"updated_at"`
	ExpiresAt  int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}
