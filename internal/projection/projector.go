package projection

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-saga/internal/logging"
	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

// Projector applies order events to the read model. Redelivered events are
// absorbed: a duplicate insert or an already-applied status change is not an error.
type Projector struct {
	store Store
	log   *zap.Logger
}

func NewProjector(store Store, log *zap.Logger) *Projector {
	return &Projector{store: store, log: log}
}

// Apply projects one event. Kinds other than the three order events are ignored.
func (p *Projector) Apply(ctx context.Context, msg messages.Message) error {
	log := logging.L(ctx, p.log).With(zap.String("order_id", msg.OrderKey()), zap.String("kind", string(msg.Kind())))

	switch e := msg.(type) {
	case messages.OrderCreated:
		err := p.store.Insert(ctx, OrderView{
			OrderID:   e.OrderID,
			UserID:    e.UserID,
			ProductID: e.ProductID,
			Quantity:  e.Quantity,
			AddressID: e.AddressID,
			Status:    messages.StatusCreated,
		})
		if errors.Is(err, ErrAlreadyExists) {
			log.Debug("order view already present")
			return nil
		}
		if err != nil {
			return fmt.Errorf("project %s: %w", e.Kind(), err)
		}
		return nil
	case messages.OrderApproved:
		return p.transition(ctx, log, e.OrderID, messages.StatusApproved, "")
	case messages.OrderRejected:
		return p.transition(ctx, log, e.OrderID, messages.StatusRejected, e.Reason)
	}
	return nil
}

func (p *Projector) transition(ctx context.Context, log *zap.Logger, orderID string, next messages.OrderStatus, reason string) error {
	err := p.store.UpdateStatus(ctx, orderID, messages.StatusCreated, next, reason)
	switch {
	case err == nil:
		log.Info("order view updated", zap.String("status", string(next)))
		return nil
	case errors.Is(err, ErrNotFound):
		log.Warn("no order view to update")
		return nil
	case errors.Is(err, ErrStatusMismatch):
		log.Debug("order view already terminal")
		return nil
	}
	return fmt.Errorf("project %s for %s: %w", next, orderID, err)
}
