package orders

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-saga/internal/eventstore"
	"github.com/imrishuroy/go-orderflow-saga/internal/logging"
	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

// maxAppendAttempts bounds reload-and-retry after a lost append race.
const maxAppendAttempts = 3

// EventPublisher hands committed events to the rest of the system.
type EventPublisher interface {
	Publish(ctx context.Context, events ...messages.Message) error
}

// Service executes order commands against the event store.
type Service struct {
	store     eventstore.Store
	publisher EventPublisher
	log       *zap.Logger
}

func NewService(store eventstore.Store, publisher EventPublisher, log *zap.Logger) *Service {
	return &Service{store: store, publisher: publisher, log: log}
}

// Load rebuilds an order from its history. ErrOrderNotFound if it has none.
func (s *Service) Load(ctx context.Context, orderID string) (*Order, error) {
	o, _, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return o, nil
}

// Handle dispatches one of the aggregate's own commands.
func (s *Service) Handle(ctx context.Context, cmd messages.Message) error {
	switch c := cmd.(type) {
	case messages.CreateOrder:
		return s.CreateOrder(ctx, c)
	case messages.ApproveOrder:
		return s.ApproveOrder(ctx, c)
	case messages.RejectOrder:
		return s.RejectOrder(ctx, c)
	}
	return fmt.Errorf("%w: %s is not an order command", ErrInvalidCommand, cmd.Kind())
}

// CreateOrder starts a new order. A second create for the same id fails with
// ErrDuplicateIdentifier, including when the first one wins an append race.
// The refusal re-publishes the stored OrderCreated, so a create whose publish
// failed is completed by its retry.
func (s *Service) CreateOrder(ctx context.Context, cmd messages.CreateOrder) error {
	o, history, err := s.load(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if err := o.Create(cmd); err != nil {
		if errors.Is(err, ErrDuplicateIdentifier) {
			return s.republish(ctx, cmd.OrderID, history, messages.KindOrderCreated, err)
		}
		return err
	}
	err = s.commit(ctx, o)
	if errors.Is(err, eventstore.ErrVersionConflict) {
		return fmt.Errorf("%w: %s", ErrDuplicateIdentifier, cmd.OrderID)
	}
	return err
}

func (s *Service) ApproveOrder(ctx context.Context, cmd messages.ApproveOrder) error {
	return s.execute(ctx, cmd.OrderID, messages.KindOrderApproved, func(o *Order) error { return o.Approve() })
}

func (s *Service) RejectOrder(ctx context.Context, cmd messages.RejectOrder) error {
	return s.execute(ctx, cmd.OrderID, messages.KindOrderRejected, func(o *Order) error { return o.Reject(cmd.Reason) })
}

// execute runs load, decide and append, retrying when another writer appended
// first. When decide refuses because the order already ended with the event
// this command produces, that event is published again before refusing.
func (s *Service) execute(ctx context.Context, orderID string, produces messages.Kind, decide func(*Order) error) error {
	for attempt := 1; ; attempt++ {
		o, history, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		if err := decide(o); err != nil {
			if errors.Is(err, ErrInvalidStateTransition) {
				return s.republish(ctx, orderID, history, produces, err)
			}
			return err
		}
		err = s.commit(ctx, o)
		if errors.Is(err, eventstore.ErrVersionConflict) && attempt < maxAppendAttempts {
			logging.L(ctx, s.log).Info("append raced, reloading order", zap.String("order_id", orderID), zap.Int("attempt", attempt))
			continue
		}
		return err
	}
}

// republish publishes the stored event of kind again, then returns refusal.
// A failed publish is returned instead, so the command is retried.
func (s *Service) republish(ctx context.Context, orderID string, history []messages.Message, kind messages.Kind, refusal error) error {
	var event messages.Message
	for _, e := range history {
		if e.Kind() == kind {
			event = e
		}
	}
	if event == nil {
		return refusal
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("republish %s for %s: %w", kind, orderID, err)
	}
	logging.L(ctx, s.log).Info("stored event republished", zap.String("order_id", orderID), zap.String("event", string(kind)))
	return refusal
}

func (s *Service) load(ctx context.Context, orderID string) (*Order, []messages.Message, error) {
	records, err := s.store.Load(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	history, err := decodeEvents(records)
	if err != nil {
		return nil, nil, err
	}
	return Replay(orderID, history), history, nil
}

func (s *Service) commit(ctx context.Context, o *Order) error {
	events := o.Uncommitted()
	records, err := encodeEvents(events)
	if err != nil {
		return err
	}
	if err := s.store.Append(ctx, o.ID, o.Version(), records); err != nil {
		return err
	}
	o.MarkCommitted()

	log := logging.L(ctx, s.log)
	for _, e := range events {
		log.Info("order event recorded",
			zap.String("order_id", o.ID),
			zap.String("event", string(e.Kind())),
			zap.String("status", string(o.Status)),
		)
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		return fmt.Errorf("publish events for %s: %w", o.ID, err)
	}
	return nil
}
