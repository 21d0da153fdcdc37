package saga

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-saga/internal/deadline"
	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

func newManager(f *fixture, store StateStore) *Manager {
	return NewManager(newSaga(true), store, f.deps, zap.NewNop())
}

func TestManagerPersistsState(t *testing.T) {
	f := newFixture()
	store := NewMemoryStateStore()
	m := newManager(f, store)
	ctx := context.Background()

	require.NoError(t, m.Handle(ctx, created))
	require.NoError(t, m.Handle(ctx, reserved))

	st, err := m.State(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, PhaseAwaitingPayment, st.Phase)
	assert.Equal(t, "sch-1", st.ScheduleID)
	assert.Equal(t, int64(2), st.Revision)
}

func TestManagerSkipsSaveForIgnoredMessages(t *testing.T) {
	f := newFixture()
	store := NewMemoryStateStore()
	m := newManager(f, store)
	ctx := context.Background()

	require.NoError(t, m.Handle(ctx, created))
	require.NoError(t, m.Handle(ctx, messages.PaymentProcessed{OrderID: "o-1"}))

	st, err := m.State(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Revision)
}

func TestManagerDoesNotSaveOnHandlerError(t *testing.T) {
	f := newFixture()
	f.queries.err = errors.New("boom")
	f.commands.failKinds = map[messages.Kind]error{messages.KindCancelProductReservation: errors.New("queue down")}
	m := newManager(f, NewMemoryStateStore())
	ctx := context.Background()

	require.NoError(t, m.Handle(ctx, created))
	require.Error(t, m.Handle(ctx, reserved))

	st, err := m.State(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, PhaseAwaitingReservation, st.Phase)

	// redelivery after the queue recovers completes the compensation
	f.commands.failKinds = nil
	require.NoError(t, m.Handle(ctx, reserved))
	st, err = m.State(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, PhaseCompensating, st.Phase)
}

func TestManagerRejectsMessagesWithoutOrder(t *testing.T) {
	m := newManager(newFixture(), NewMemoryStateStore())
	require.Error(t, m.Handle(context.Background(), messages.PaymentProcessed{}))
}

// slowQueries blocks inside the handler so overlapping calls can be observed.
type slowQueries struct {
	mu      sync.Mutex
	active  map[string]int
	overlap bool
}

func (s *slowQueries) FetchUserPaymentDetails(ctx context.Context, q messages.FetchUserPaymentDetails) (*messages.User, error) {
	s.mu.Lock()
	s.active[q.UserID]++
	if s.active[q.UserID] > 1 {
		s.overlap = true
	}
	s.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	s.mu.Lock()
	s.active[q.UserID]--
	s.mu.Unlock()
	return &messages.User{UserID: q.UserID}, nil
}

func TestManagerSerializesPerOrder(t *testing.T) {
	f := newFixture()
	slow := &slowQueries{active: map[string]int{}}
	m := NewManager(newSaga(true), NewMemoryStateStore(), func() Deps {
		d := f.deps()
		d.Queries = slow
		return d
	}, zap.NewNop())
	ctx := context.Background()

	orders := []string{"o-1", "o-2", "o-3"}
	for _, id := range orders {
		require.NoError(t, m.Handle(ctx, messages.OrderCreated{OrderID: id, UserID: id, ProductID: "p", Quantity: 1, AddressID: "a"}))
	}

	var wg sync.WaitGroup
	for _, id := range orders {
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				assert.NoError(t, m.Handle(ctx, messages.ProductReserved{OrderID: id, ProductID: "p", Quantity: 1, UserID: id}))
			}(id)
		}
	}
	wg.Wait()

	assert.False(t, slow.overlap)
	for _, id := range orders {
		st, err := m.State(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, PhaseAwaitingPayment, st.Phase)
	}
	// only the first reservation per order armed a deadline
	assert.Len(t, f.deadlines.delays, len(orders))
}

// failingSaveStore fails the next n saves after the handler already ran.
type failingSaveStore struct {
	*MemoryStateStore
	n int
}

func (s *failingSaveStore) Save(ctx context.Context, state State) (State, error) {
	if s.n > 0 {
		s.n--
		return State{}, errors.New("dynamo throttled")
	}
	return s.MemoryStateStore.Save(ctx, state)
}

func TestManagerRedeliveryAfterFailedSaveReusesPaymentAndDeadline(t *testing.T) {
	f := newFixture()
	timers := deadline.NewLocalScheduler(func(messages.PaymentDeadlineFired) {})
	defer timers.Stop()
	store := &failingSaveStore{MemoryStateStore: NewMemoryStateStore()}
	m := NewManager(New(Options{PaymentDeadline: time.Hour, PaymentProcessingEnabled: true}), store, func() Deps {
		d := f.deps()
		d.Deadlines = timers
		return d
	}, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, m.Handle(ctx, created))
	store.n = 1
	require.ErrorContains(t, m.Handle(ctx, reserved), "dynamo throttled")
	require.NoError(t, m.Handle(ctx, reserved))

	var payments []messages.ProcessPayment
	for _, msg := range f.commands.sent {
		if p, ok := msg.(messages.ProcessPayment); ok {
			payments = append(payments, p)
		}
	}
	require.Len(t, payments, 2)
	assert.Equal(t, payments[0].PaymentID, payments[1].PaymentID)
	assert.Equal(t, PaymentID("o-1"), payments[0].PaymentID)

	st, err := m.State(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, PhaseAwaitingPayment, st.Phase)
	assert.Equal(t, []string{st.ScheduleID}, timers.Pending())
}
