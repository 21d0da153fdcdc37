package deadline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

type sink struct {
	mu  sync.Mutex
	got []messages.PaymentDeadlineFired
}

func (s *sink) deliver(m messages.PaymentDeadlineFired) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, m)
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestLocalSchedulerFiresAfterDelay(t *testing.T) {
	out := &sink{}
	s := NewLocalScheduler(out.deliver)
	reserved := messages.ProductReserved{OrderID: "o-1"}

	id, err := s.Schedule(context.Background(), 10*time.Millisecond, PaymentProcessing, reserved)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, s.Pending())

	require.Eventually(t, func() bool { return out.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, id, out.got[0].ScheduleID)
	assert.Equal(t, reserved, out.got[0].Reserved)
	assert.Empty(t, s.Pending())
}

func TestLocalSchedulerCancel(t *testing.T) {
	out := &sink{}
	s := NewLocalScheduler(out.deliver)

	id, err := s.Schedule(context.Background(), 20*time.Millisecond, PaymentProcessing, messages.ProductReserved{OrderID: "o-1"})
	require.NoError(t, err)
	require.NoError(t, s.Cancel(context.Background(), PaymentProcessing, id))
	// unknown and repeated ids are fine
	require.NoError(t, s.Cancel(context.Background(), PaymentProcessing, id))
	require.NoError(t, s.Cancel(context.Background(), PaymentProcessing, "nope"))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, out.count())
	assert.False(t, s.Fire(id))
}

func TestLocalSchedulerFireNow(t *testing.T) {
	out := &sink{}
	s := NewLocalScheduler(out.deliver)

	id, err := s.Schedule(context.Background(), time.Hour, PaymentProcessing, messages.ProductReserved{OrderID: "o-1"})
	require.NoError(t, err)

	require.True(t, s.Fire(id))
	assert.Equal(t, 1, out.count())
	assert.False(t, s.Fire(id))

	_, err = s.Schedule(context.Background(), time.Hour, PaymentProcessing, messages.ProductReserved{OrderID: "o-2"})
	require.NoError(t, err)
	s.Stop()
	assert.Empty(t, s.Pending())
}

func TestLocalSchedulerRescheduleRearmsSameDeadline(t *testing.T) {
	out := &sink{}
	s := NewLocalScheduler(out.deliver)
	defer s.Stop()
	reserved := messages.ProductReserved{OrderID: "o-1"}

	first, err := s.Schedule(context.Background(), time.Hour, PaymentProcessing, reserved)
	require.NoError(t, err)
	second, err := s.Schedule(context.Background(), time.Hour, PaymentProcessing, reserved)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, ScheduleID(PaymentProcessing, "o-1"), first)
	assert.Equal(t, []string{first}, s.Pending())

	other, err := s.Schedule(context.Background(), time.Hour, PaymentProcessing, messages.ProductReserved{OrderID: "o-2"})
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}
