// Package flow runs the whole order workflow in one process. The Bus stands
// in for the queues: it carries commands and events in FIFO order and hands
// each envelope to the router only after the previous one finished, so no
// handler ever re-enters the instance it was called from.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-saga/internal/gateway"
	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
	"github.com/imrishuroy/go-orderflow-saga/internal/router"
)

// Service simulates another service: it consumes a command and returns a
// result id plus the events it publishes in response.
type Service func(ctx context.Context, cmd messages.Message) (string, []messages.Message, error)

// Bus is an in-memory message bus.
type Bus struct {
	mu        sync.Mutex
	queue     []messages.Envelope
	delivered []messages.Envelope
	services  map[messages.Kind]Service
	route     router.RouteFunc
	wake      chan struct{}
	log       *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	return &Bus{
		services: map[messages.Kind]Service{},
		wake:     make(chan struct{}, 1),
		log:      log,
	}
}

// Attach sets where non-service envelopes are delivered.
func (b *Bus) Attach(route router.RouteFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.route = route
}

// Register makes svc the consumer of kind. A nil svc removes it.
func (b *Bus) Register(kind messages.Kind, svc Service) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if svc == nil {
		delete(b.services, kind)
		return
	}
	b.services[kind] = svc
}

// Enqueue wraps msg in an envelope and queues it.
func (b *Bus) Enqueue(msg messages.Message) error {
	env, err := messages.NewEnvelope(msg)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.queue = append(b.queue, env)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

// Publish queues committed events.
func (b *Bus) Publish(ctx context.Context, events ...messages.Message) error {
	for _, e := range events {
		if err := b.Enqueue(e); err != nil {
			return err
		}
	}
	return nil
}

// Send queues a command. Commands nobody consumes are refused up front, the
// way a missing queue would fail the send.
func (b *Bus) Send(ctx context.Context, cmd messages.Message) error {
	b.mu.Lock()
	_, ok := b.services[cmd.Kind()]
	b.mu.Unlock()
	if !ok && !cmd.Kind().OwnCommand() {
		return &gateway.RemoteCallError{Op: "send " + string(cmd.Kind()), Err: errors.New("no consumer registered")}
	}
	return b.Enqueue(cmd)
}

// SendAndWait runs the consuming service inline and queues its events.
func (b *Bus) SendAndWait(ctx context.Context, cmd messages.Message) (string, error) {
	b.mu.Lock()
	svc, ok := b.services[cmd.Kind()]
	b.mu.Unlock()
	if !ok {
		return "", &gateway.RemoteCallError{Op: "send " + string(cmd.Kind()), Err: errors.New("no consumer registered")}
	}
	result, events, err := svc(ctx, cmd)
	if err != nil {
		return "", &gateway.RemoteCallError{Op: "send " + string(cmd.Kind()), Err: err}
	}
	return result, b.Publish(ctx, events...)
}

// Drain delivers queued envelopes, including ones queued while draining,
// until the queue is empty. Failed deliveries are logged and dropped.
func (b *Bus) Drain(ctx context.Context) error {
	var errs []error
	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		env, ok := b.pop()
		if !ok {
			return errors.Join(errs...)
		}
		if err := b.deliver(ctx, env); err != nil {
			b.log.Warn("delivery failed",
				zap.String("message_id", env.ID),
				zap.String("kind", string(env.Kind)),
				zap.String("order_id", env.OrderID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s %s: %w", env.Kind, env.ID, err))
		}
	}
}

// Run drains whenever something is queued, until ctx is done.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
			_ = b.Drain(ctx)
		}
	}
}

// Delivered returns every envelope delivered so far, in delivery order.
func (b *Bus) Delivered() []messages.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]messages.Envelope, len(b.delivered))
	copy(out, b.delivered)
	return out
}

// Len is the number of queued envelopes.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

func (b *Bus) pop() (messages.Envelope, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return messages.Envelope{}, false
	}
	env := b.queue[0]
	b.queue = b.queue[1:]
	b.delivered = append(b.delivered, env)
	return env, true
}

func (b *Bus) deliver(ctx context.Context, env messages.Envelope) error {
	b.mu.Lock()
	svc, isService := b.services[env.Kind]
	route := b.route
	b.mu.Unlock()

	if isService {
		msg, err := env.Decode()
		if err != nil {
			return err
		}
		_, events, err := svc(ctx, msg)
		if err != nil {
			return err
		}
		return b.Publish(ctx, events...)
	}
	if route == nil {
		return errors.New("bus has no router attached")
	}
	return route(ctx, env)
}
