package saga

import (
	"context"
	"errors"
	"time"
)

// ErrStateConflict is returned by Save when another writer saved first.
var ErrStateConflict = errors.New("saga state revision conflict")

// Phase is the workflow step an instance is waiting in.
type Phase string

const (
	PhaseAwaitingReservation Phase = "AWAITING_RESERVATION"
	PhaseAwaitingPayment     Phase = "AWAITING_PAYMENT"
	PhaseCompensating        Phase = "COMPENSATING"
	PhaseCompleting          Phase = "COMPLETING"
	PhaseEnded               Phase = "ENDED"
)

// State is everything persisted for one instance. It is data only; the
// collaborators a handler needs arrive in Deps on every call.
type State struct {
	OrderID    string `dynamodbav:"order_id" json:"order_id"` // PK
	UserID     string `dynamodbav:"user_id" json:"user_id"`
	ProductID  string `dynamodbav:"product_id" json:"product_id"`
	Quantity   int    `dynamodbav:"quantity" json:"quantity"`
	Phase      Phase  `dynamodbav:"phase" json:"phase"`
	ScheduleID string `dynamodbav:"schedule_id,omitempty" json:"schedule_id,omitempty"`
	PaymentID  string `dynamodbav:"payment_id,omitempty" json:"payment_id,omitempty"`
	Reason     string `dynamodbav:"reason,omitempty" json:"reason,omitempty"`

	// Revision counts saves; Save is conditioned on it.
	Revision  int64     `dynamodbav:"revision" json:"revision"`
	UpdatedAt time.Time `dynamodbav:"updated_at" json:"updated_at"`
}

// Started reports whether OrderCreated has been handled.
func (s State) Started() bool { return s.Phase != "" }

// Ended reports whether the instance reached its terminal event.
func (s State) Ended() bool { return s.Phase == PhaseEnded }

// StateStore persists instance state keyed by order id.
type StateStore interface {
	// Load returns the zero State with OrderID set when nothing is stored.
	Load(ctx context.Context, orderID string) (State, error)
	// Save stores state as revision state.Revision+1 if the stored revision is
	// still state.Revision, and returns the saved copy.
	Save(ctx context.Context, state State) (State, error)
}
