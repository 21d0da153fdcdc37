// Package router delivers decoded envelopes to the component that owns their
// kind: the order service for the aggregate's commands, the projection and
// the saga for order events, the saga alone for everything else it reacts to.
package router

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-saga/internal/logging"
	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
	"github.com/imrishuroy/go-orderflow-saga/internal/orders"
)

// ErrNotRoutable is returned for kinds this service does not consume.
var ErrNotRoutable = errors.New("message kind not routable")

// Handler consumes one decoded message.
type Handler interface {
	Handle(ctx context.Context, msg messages.Message) error
}

// Projector consumes order events for the read model.
type Projector interface {
	Apply(ctx context.Context, msg messages.Message) error
}

// CancelledFunc reports whether a deadline firing was cancelled after it was sent.
type CancelledFunc func(ctx context.Context, scheduleID string) (bool, error)

// Router dispatches envelopes.
type Router struct {
	orders    Handler
	projector Projector
	saga      Handler
	cancelled CancelledFunc
	log       *zap.Logger
	tracer    trace.Tracer
}

// Option configures a Router.
type Option func(*Router)

// WithDeadlineFilter drops deadline firings that cancelled reports true for.
func WithDeadlineFilter(cancelled CancelledFunc) Option {
	return func(r *Router) { r.cancelled = cancelled }
}

func New(ordersSvc Handler, projector Projector, saga Handler, log *zap.Logger, opts ...Option) *Router {
	r := &Router{
		orders:    ordersSvc,
		projector: projector,
		saga:      saga,
		log:       log,
		tracer:    otel.Tracer("github.com/imrishuroy/go-orderflow-saga/internal/router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route handles one envelope. Commands the aggregate refuses are logged and
// acknowledged: redelivering them cannot change the outcome.
func (r *Router) Route(ctx context.Context, env messages.Envelope) (err error) {
	ctx, span := r.tracer.Start(ctx, "router.route", trace.WithAttributes(
		attribute.String("message.id", env.ID),
		attribute.String("message.kind", string(env.Kind)),
		attribute.String("order.id", env.OrderID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := logging.L(ctx, r.log).With(
		zap.String("message_id", env.ID),
		zap.String("kind", string(env.Kind)),
		zap.String("order_id", env.OrderID),
	)

	msg, err := env.Decode()
	if err != nil {
		return err
	}

	switch env.Kind {
	case messages.KindCreateOrder, messages.KindApproveOrder, messages.KindRejectOrder:
		err := r.orders.Handle(ctx, msg)
		if refused(err) {
			log.Warn("order command refused", zap.Error(err))
			return nil
		}
		return err

	case messages.KindOrderCreated, messages.KindOrderApproved, messages.KindOrderRejected:
		if err := r.projector.Apply(ctx, msg); err != nil {
			return err
		}
		return r.saga.Handle(ctx, msg)

	case messages.KindPaymentDeadlineFired:
		if r.cancelled != nil {
			fired := msg.(messages.PaymentDeadlineFired)
			gone, err := r.cancelled(ctx, fired.ScheduleID)
			if err != nil {
				return fmt.Errorf("check deadline %s: %w", fired.ScheduleID, err)
			}
			if gone {
				log.Debug("cancelled deadline dropped", zap.String("schedule_id", fired.ScheduleID))
				return nil
			}
		}
		return r.saga.Handle(ctx, msg)

	case messages.KindProductReserved, messages.KindProductReservationCancelled, messages.KindPaymentProcessed:
		return r.saga.Handle(ctx, msg)
	}
	return fmt.Errorf("%w: %s", ErrNotRoutable, env.Kind)
}

func refused(err error) bool {
	return errors.Is(err, orders.ErrDuplicateIdentifier) ||
		errors.Is(err, orders.ErrInvalidStateTransition) ||
		errors.Is(err, orders.ErrOrderNotFound) ||
		errors.Is(err, orders.ErrInvalidCommand)
}
