package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-saga/internal/logging"
	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

const tracerName = "github.com/imrishuroy/go-orderflow-saga/internal/saga"

// Manager owns all instances. Messages for one order are handled one at a
// time; different orders proceed in parallel.
type Manager struct {
	saga   *Saga
	store  StateStore
	deps   func() Deps
	locks  keyedMutex
	log    *zap.Logger
	tracer trace.Tracer
}

// NewManager wires a manager. deps is called once per message so handlers
// never hold on to collaborators between calls.
func NewManager(s *Saga, store StateStore, deps func() Deps, log *zap.Logger) *Manager {
	return &Manager{
		saga:   s,
		store:  store,
		deps:   deps,
		locks:  keyedMutex{locks: map[string]*keyLock{}},
		log:    log,
		tracer: otel.Tracer(tracerName),
	}
}

// Handle routes msg to the instance for its order. State is saved only if
// the handler succeeded and changed it.
func (m *Manager) Handle(ctx context.Context, msg messages.Message) (err error) {
	orderID := msg.OrderKey()
	if orderID == "" {
		return fmt.Errorf("saga: %s has no order id", msg.Kind())
	}

	ctx, span := m.tracer.Start(ctx, "saga.handle", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("message.kind", string(msg.Kind())),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	unlock := m.locks.Lock(orderID)
	defer unlock()

	state, err := m.store.Load(ctx, orderID)
	if err != nil {
		return err
	}
	next, err := m.saga.Handle(ctx, m.deps(), state, msg)
	if err != nil {
		return err
	}
	if next == state {
		return nil
	}
	saved, err := m.store.Save(ctx, next)
	if err != nil {
		if errors.Is(err, ErrStateConflict) {
			logging.L(ctx, m.log).Warn("saga state changed concurrently", zap.String("order_id", orderID), zap.Error(err))
		}
		return err
	}
	span.SetAttributes(attribute.String("saga.phase", string(saved.Phase)))
	return nil
}

// State returns the stored state of one instance.
func (m *Manager) State(ctx context.Context, orderID string) (State, error) {
	return m.store.Load(ctx, orderID)
}

// keyedMutex hands out one mutex per key and forgets it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
