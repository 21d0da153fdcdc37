// Package messages defines the commands, events and deadline payloads exchanged
// between the order aggregate, the order saga and the services around them,
// plus the JSON envelope they travel in.
package messages

// Kind tags every message on the wire.
type Kind string

// Commands.
const (
	KindCreateOrder              Kind = "CreateOrder"
	KindApproveOrder             Kind = "ApproveOrder"
	KindRejectOrder              Kind = "RejectOrder"
	KindReserveProduct           Kind = "ReserveProduct"
	KindProcessPayment           Kind = "ProcessPayment"
	KindCancelProductReservation Kind = "CancelProductReservation"
)

// Events.
const (
	KindOrderCreated                Kind = "OrderCreated"
	KindOrderApproved               Kind = "OrderApproved"
	KindOrderRejected               Kind = "OrderRejected"
	KindProductReserved             Kind = "ProductReserved"
	KindProductReservationCancelled Kind = "ProductReservationCancelled"
	KindPaymentProcessed            Kind = "PaymentProcessed"
)

// KindPaymentDeadlineFired is delivered by the deadline scheduler.
const KindPaymentDeadlineFired Kind = "PaymentDeadlineFired"

// IsCommand reports whether k names a command.
func (k Kind) IsCommand() bool {
	switch k {
	case KindCreateOrder, KindApproveOrder, KindRejectOrder,
		KindReserveProduct, KindProcessPayment, KindCancelProductReservation:
		return true
	}
	return false
}

// OwnCommand reports whether k is handled by the order aggregate itself.
func (k Kind) OwnCommand() bool {
	return k == KindCreateOrder || k == KindApproveOrder || k == KindRejectOrder
}

// Message is implemented by every payload.
type Message interface {
	Kind() Kind
	// OrderKey is the correlation key: the order the message belongs to.
	OrderKey() string
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusCreated  OrderStatus = "CREATED"
	StatusApproved OrderStatus = "APPROVED"
	StatusRejected OrderStatus = "REJECTED"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}
