package deadline

import (
	"context"
	"sync"
	"time"

	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

// LocalScheduler keeps deadlines as in-process timers.
type LocalScheduler struct {
	mu      sync.Mutex
	timers  map[string]*localTimer
	deliver func(messages.PaymentDeadlineFired)
}

type localTimer struct {
	timer *time.Timer
	msg   messages.PaymentDeadlineFired
}

// NewLocalScheduler returns a scheduler that calls deliver from the timer goroutine.
func NewLocalScheduler(deliver func(messages.PaymentDeadlineFired)) *LocalScheduler {
	return &LocalScheduler{timers: map[string]*localTimer{}, deliver: deliver}
}

func (s *LocalScheduler) Schedule(ctx context.Context, delay time.Duration, name string, payload messages.ProductReserved) (string, error) {
	id := ScheduleID(name, payload.OrderID)
	msg := fired(id, name, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.timer.Stop()
	}
	s.timers[id] = &localTimer{
		msg:   msg,
		timer: time.AfterFunc(delay, func() { s.expire(id) }),
	}
	return id, nil
}

func (s *LocalScheduler) Cancel(ctx context.Context, name, scheduleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[scheduleID]; ok {
		t.timer.Stop()
		delete(s.timers, scheduleID)
	}
	return nil
}

// Fire expires a pending deadline now. It returns false if the id is not pending.
func (s *LocalScheduler) Fire(scheduleID string) bool {
	s.mu.Lock()
	t, ok := s.timers[scheduleID]
	if ok {
		t.timer.Stop()
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.expire(scheduleID)
	return true
}

// Pending lists the ids of armed deadlines.
func (s *LocalScheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	return ids
}

// Stop disarms every deadline.
func (s *LocalScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.timer.Stop()
		delete(s.timers, id)
	}
}

func (s *LocalScheduler) expire(scheduleID string) {
	s.mu.Lock()
	t, ok := s.timers[scheduleID]
	delete(s.timers, scheduleID)
	s.mu.Unlock()
	if ok {
		s.deliver(t.msg)
	}
}
