// Package saga is the order process manager. One instance per order drives
// reservation, payment and approval, and compensates when any step fails.
package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-saga/internal/deadline"
	"github.com/imrishuroy/go-orderflow-saga/internal/gateway"
	"github.com/imrishuroy/go-orderflow-saga/internal/logging"
	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
	"github.com/imrishuroy/go-orderflow-saga/internal/metrics"
)

// Rejection reasons the saga produces itself.
const (
	ReasonNoPaymentDetails = "Could not fetch user payment details."
	ReasonPaymentFailed    = "Could not process user payment with provided payment details"
	ReasonPaymentTimeout   = "Payment timeout."
)

// DefaultPaymentDeadline is how long payment may take before compensation.
const DefaultPaymentDeadline = 10 * time.Second

// Deps are the collaborators supplied to every handler call.
type Deps struct {
	Commands  gateway.CommandGateway
	Queries   gateway.QueryGateway
	Deadlines deadline.Scheduler
	Metrics   metrics.Recorder
	Log       *zap.Logger
}

// Options configure the workflow.
type Options struct {
	PaymentDeadline time.Duration
	// PaymentProcessingEnabled=false arms the payment deadline but never
	// sends ProcessPayment, so every order ends through the timeout path.
	PaymentProcessingEnabled bool
	// NewPaymentID returns the payment id for an order. It must be stable per
	// order: the id is the payments service's idempotency key, and a redelivered
	// ProductReserved asks for it again.
	NewPaymentID func(orderID string) string
}

var paymentNamespace = uuid.MustParse("9c4e2b7a-1f3d-4a6c-8e5b-7d0f2a9c3e16")

// PaymentID derives the payment id of an order.
func PaymentID(orderID string) string {
	return uuid.NewSHA1(paymentNamespace, []byte(orderID)).String()
}

// Saga holds the handlers. It keeps no per-order state of its own.
type Saga struct {
	opts Options
}

func New(opts Options) *Saga {
	if opts.PaymentDeadline <= 0 {
		opts.PaymentDeadline = DefaultPaymentDeadline
	}
	if opts.NewPaymentID == nil {
		opts.NewPaymentID = PaymentID
	}
	return &Saga{opts: opts}
}

// Handle applies one message to state and returns the next state. Messages
// that do not fit the current phase are ignored and state is returned as is.
// On error the returned state must be discarded.
func (s *Saga) Handle(ctx context.Context, deps Deps, state State, msg messages.Message) (State, error) {
	if msg.OrderKey() != state.OrderID {
		return state, fmt.Errorf("saga %s: message for order %q", state.OrderID, msg.OrderKey())
	}
	h := handler{saga: s, deps: deps, state: state, log: logging.L(ctx, deps.Log).With(
		zap.String("order_id", state.OrderID),
		zap.String("kind", string(msg.Kind())),
	)}

	if state.Ended() {
		h.log.Debug("saga ended, ignoring message")
		return state, nil
	}
	if _, starts := msg.(messages.OrderCreated); !starts && !state.Started() {
		h.log.Warn("no saga started for order, ignoring message")
		return state, nil
	}

	var err error
	switch m := msg.(type) {
	case messages.OrderCreated:
		err = h.orderCreated(ctx, m)
	case messages.ProductReserved:
		err = h.productReserved(ctx, m)
	case messages.PaymentProcessed:
		err = h.paymentProcessed(ctx, m)
	case messages.PaymentDeadlineFired:
		err = h.deadlineFired(ctx, m)
	case messages.ProductReservationCancelled:
		err = h.reservationCancelled(ctx, m)
	case messages.OrderApproved:
		h.end(ctx, messages.StatusApproved)
	case messages.OrderRejected:
		h.end(ctx, messages.StatusRejected)
	default:
		return state, fmt.Errorf("saga %s: unexpected message %s", state.OrderID, msg.Kind())
	}
	if err != nil {
		return state, err
	}
	return h.state, nil
}

// handler is the per-call view of one instance.
type handler struct {
	saga  *Saga
	deps  Deps
	state State
	log   *zap.Logger
}

func (h *handler) orderCreated(ctx context.Context, e messages.OrderCreated) error {
	if h.state.Started() {
		h.log.Debug("saga already started")
		return nil
	}
	h.state.UserID = e.UserID
	h.state.ProductID = e.ProductID
	h.state.Quantity = e.Quantity
	h.state.Phase = PhaseAwaitingReservation

	err := h.deps.Commands.Send(ctx, messages.ReserveProduct{
		OrderID:   e.OrderID,
		ProductID: e.ProductID,
		Quantity:  e.Quantity,
		UserID:    e.UserID,
	})
	if err == nil {
		h.log.Info("product reservation requested")
		return nil
	}

	// Nothing was reserved, so there is nothing to release: reject directly.
	h.log.Warn("reserve product failed, rejecting order", zap.Error(err))
	h.deps.Metrics.CompensationStarted(ctx, metrics.CauseSendFailed)
	return h.reject(ctx, err.Error())
}

func (h *handler) productReserved(ctx context.Context, e messages.ProductReserved) error {
	if h.state.Phase != PhaseAwaitingReservation {
		h.log.Debug("reservation outside awaiting phase, ignoring", zap.String("phase", string(h.state.Phase)))
		return nil
	}
	h.state.ProductID = e.ProductID
	h.state.Quantity = e.Quantity
	h.state.UserID = e.UserID

	user, err := h.deps.Queries.FetchUserPaymentDetails(ctx, messages.FetchUserPaymentDetails{UserID: e.UserID})
	if err != nil {
		return h.compensate(ctx, e, err.Error(), metrics.CauseQueryFailed)
	}
	if user == nil {
		return h.compensate(ctx, e, ReasonNoPaymentDetails, metrics.CauseQueryFailed)
	}

	scheduleID, err := h.deps.Deadlines.Schedule(ctx, h.saga.opts.PaymentDeadline, deadline.PaymentProcessing, e)
	if err != nil {
		return h.compensate(ctx, e, err.Error(), metrics.CauseScheduleFailed)
	}
	h.state.ScheduleID = scheduleID
	h.state.Phase = PhaseAwaitingPayment
	h.log.Info("payment deadline armed", zap.String("schedule_id", scheduleID), zap.Duration("after", h.saga.opts.PaymentDeadline))

	if !h.saga.opts.PaymentProcessingEnabled {
		h.log.Info("payment processing disabled, waiting for deadline")
		return nil
	}

	paymentID := h.saga.opts.NewPaymentID(e.OrderID)
	h.state.PaymentID = paymentID
	result, err := h.deps.Commands.SendAndWait(ctx, messages.ProcessPayment{
		OrderID:        e.OrderID,
		PaymentID:      paymentID,
		PaymentDetails: user.PaymentDetails,
	})
	if err != nil {
		return h.compensate(ctx, e, err.Error(), metrics.CausePaymentFailed)
	}
	if result == "" {
		return h.compensate(ctx, e, ReasonPaymentFailed, metrics.CausePaymentFailed)
	}
	h.log.Info("payment accepted", zap.String("payment_id", result))
	return nil
}

func (h *handler) paymentProcessed(ctx context.Context, e messages.PaymentProcessed) error {
	if h.state.Phase != PhaseAwaitingPayment {
		h.log.Info("late payment ignored", zap.String("phase", string(h.state.Phase)))
		return nil
	}
	// the deadline stays armed until approval is on its way
	if err := h.deps.Commands.Send(ctx, messages.ApproveOrder{OrderID: e.OrderID}); err != nil {
		return fmt.Errorf("approve order %s: %w", e.OrderID, err)
	}
	h.cancelDeadline(ctx)
	h.state.Phase = PhaseCompleting
	h.log.Info("order approval requested")
	return nil
}

func (h *handler) deadlineFired(ctx context.Context, e messages.PaymentDeadlineFired) error {
	if h.state.Phase != PhaseAwaitingPayment || e.ScheduleID != h.state.ScheduleID {
		h.log.Debug("stale deadline ignored", zap.String("schedule_id", e.ScheduleID))
		return nil
	}
	// fired, nothing left to cancel
	h.state.ScheduleID = ""
	return h.compensate(ctx, e.Reserved, ReasonPaymentTimeout, metrics.CausePaymentTimeout)
}

func (h *handler) reservationCancelled(ctx context.Context, e messages.ProductReservationCancelled) error {
	if h.state.Phase == PhaseCompleting {
		h.log.Debug("order already completing, ignoring cancellation")
		return nil
	}
	if h.state.Phase == PhaseCompensating {
		return h.reject(ctx, e.Reason)
	}
	// released by the products service on its own
	if err := h.reject(ctx, e.Reason); err != nil {
		return err
	}
	h.deps.Metrics.CompensationStarted(ctx, metrics.CauseReservationCancelled)
	h.cancelDeadline(ctx)
	return nil
}

// compensate releases the reservation. The confirmation drives the rejection.
func (h *handler) compensate(ctx context.Context, reserved messages.ProductReserved, reason, cause string) error {
	h.log.Warn("compensating", zap.String("reason", reason), zap.String("cause", cause))

	err := h.deps.Commands.Send(ctx, messages.CancelProductReservation{
		OrderID:   reserved.OrderID,
		ProductID: reserved.ProductID,
		Quantity:  reserved.Quantity,
		UserID:    reserved.UserID,
		Reason:    reason,
	})
	if err != nil {
		return fmt.Errorf("cancel reservation for %s: %w", reserved.OrderID, err)
	}
	h.cancelDeadline(ctx)
	h.state.Phase = PhaseCompensating
	h.state.Reason = reason
	h.deps.Metrics.CompensationStarted(ctx, cause)
	return nil
}

func (h *handler) reject(ctx context.Context, reason string) error {
	if err := h.deps.Commands.Send(ctx, messages.RejectOrder{OrderID: h.state.OrderID, Reason: reason}); err != nil {
		return fmt.Errorf("reject order %s: %w", h.state.OrderID, err)
	}
	h.state.Phase = PhaseCompleting
	h.state.Reason = reason
	h.log.Info("order rejection requested", zap.String("reason", reason))
	return nil
}

func (h *handler) end(ctx context.Context, status messages.OrderStatus) {
	h.cancelDeadline(ctx)
	h.state.Phase = PhaseEnded
	h.deps.Metrics.OrderCompleted(ctx, status)
	h.log.Info("saga ended", zap.String("status", string(status)))
}

// cancelDeadline disarms the outstanding deadline, if any. A failed cancel
// is logged only: the phase change makes a later firing stale anyway.
func (h *handler) cancelDeadline(ctx context.Context) {
	if h.state.ScheduleID == "" {
		return
	}
	if err := h.deps.Deadlines.Cancel(ctx, deadline.PaymentProcessing, h.state.ScheduleID); err != nil {
		h.log.Warn("cancel deadline failed", zap.String("schedule_id", h.state.ScheduleID), zap.Error(err))
	}
	h.state.ScheduleID = ""
}
