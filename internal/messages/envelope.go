package messages

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownKind is returned when an envelope carries a kind this service does not know.
var ErrUnknownKind = errors.New("unknown message kind")

// Envelope is the wire form of every message.
type Envelope struct {
	ID            string          `json:"id"`
	Kind          Kind            `json:"kind"`
	OrderID       string          `json:"order_id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps msg with a fresh id and the current time.
func NewEnvelope(msg Message) (Envelope, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", msg.Kind(), err)
	}
	return Envelope{
		ID:         uuid.NewString(),
		Kind:       msg.Kind(),
		OrderID:    msg.OrderKey(),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}, nil
}

// Parse reads an envelope from a queue message body.
func Parse(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse envelope: %w", err)
	}
	if env.ID == "" || env.Kind == "" {
		return Envelope{}, errors.New("parse envelope: id and kind are required")
	}
	return env, nil
}

// Marshal returns the JSON body of the envelope.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Decode returns the typed payload. The payload's order key must match the
// envelope's OrderID.
func (e Envelope) Decode() (Message, error) {
	var (
		msg Message
		err error
	)
	switch e.Kind {
	case KindCreateOrder:
		msg, err = decodeAs[CreateOrder](e.Payload)
	case KindApproveOrder:
		msg, err = decodeAs[ApproveOrder](e.Payload)
	case KindRejectOrder:
		msg, err = decodeAs[RejectOrder](e.Payload)
	case KindReserveProduct:
		msg, err = decodeAs[ReserveProduct](e.Payload)
	case KindProcessPayment:
		msg, err = decodeAs[ProcessPayment](e.Payload)
	case KindCancelProductReservation:
		msg, err = decodeAs[CancelProductReservation](e.Payload)
	case KindOrderCreated:
		msg, err = decodeAs[OrderCreated](e.Payload)
	case KindOrderApproved:
		msg, err = decodeAs[OrderApproved](e.Payload)
	case KindOrderRejected:
		msg, err = decodeAs[OrderRejected](e.Payload)
	case KindProductReserved:
		msg, err = decodeAs[ProductReserved](e.Payload)
	case KindProductReservationCancelled:
		msg, err = decodeAs[ProductReservationCancelled](e.Payload)
	case KindPaymentProcessed:
		msg, err = decodeAs[PaymentProcessed](e.Payload)
	case KindPaymentDeadlineFired:
		msg, err = decodeAs[PaymentDeadlineFired](e.Payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", e.Kind, err)
	}
	if e.OrderID != "" && msg.OrderKey() != e.OrderID {
		return nil, fmt.Errorf("decode %s: payload order %q does not match envelope order %q",
			e.Kind, msg.OrderKey(), e.OrderID)
	}
	return msg, nil
}

func decodeAs[T Message](raw json.RawMessage) (Message, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
