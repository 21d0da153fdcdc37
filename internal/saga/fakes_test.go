package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

type fakeCommands struct {
	mu         sync.Mutex
	sent       []messages.Message
	failKinds  map[messages.Kind]error
	waitResult string
	waitErr    error
}

func (f *fakeCommands) Send(ctx context.Context, cmd messages.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failKinds[cmd.Kind()]; err != nil {
		return err
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeCommands) SendAndWait(ctx context.Context, cmd messages.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, cmd)
	return f.waitResult, f.waitErr
}

func (f *fakeCommands) kinds() []messages.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]messages.Kind, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Kind())
	}
	return out
}

func (f *fakeCommands) last() messages.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

type fakeQueries struct {
	user *messages.User
	err  error
}

func (f *fakeQueries) FetchUserPaymentDetails(ctx context.Context, q messages.FetchUserPaymentDetails) (*messages.User, error) {
	return f.user, f.err
}

type fakeDeadlines struct {
	mu        sync.Mutex
	next      int
	armed     map[string]messages.ProductReserved
	delays    []time.Duration
	cancelled []string
	err       error
}

func (f *fakeDeadlines) Schedule(ctx context.Context, delay time.Duration, name string, payload messages.ProductReserved) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.next++
	id := fmt.Sprintf("sch-%d", f.next)
	if f.armed == nil {
		f.armed = map[string]messages.ProductReserved{}
	}
	f.armed[id] = payload
	f.delays = append(f.delays, delay)
	return id, nil
}

func (f *fakeDeadlines) Cancel(ctx context.Context, name, scheduleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, scheduleID)
	if _, ok := f.armed[scheduleID]; !ok {
		return errors.New("unknown schedule")
	}
	delete(f.armed, scheduleID)
	return nil
}

func (f *fakeDeadlines) outstanding() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.armed)
}

type fakeMetrics struct {
	mu           sync.Mutex
	completed    []messages.OrderStatus
	compensation []string
}

func (f *fakeMetrics) OrderCompleted(ctx context.Context, status messages.OrderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, status)
}

func (f *fakeMetrics) CompensationStarted(ctx context.Context, cause string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compensation = append(f.compensation, cause)
}

type fixture struct {
	commands  *fakeCommands
	queries   *fakeQueries
	deadlines *fakeDeadlines
	metrics   *fakeMetrics
}

func newFixture() *fixture {
	return &fixture{
		commands: &fakeCommands{waitResult: "pay-1"},
		queries: &fakeQueries{user: &messages.User{
			UserID:         "u-1",
			FirstName:      "Ada",
			PaymentDetails: messages.PaymentDetails{Name: "Ada", CardNumber: "4111", ValidUntilMonth: 12, ValidUntilYear: 2030, CVV: "123"},
		}},
		deadlines: &fakeDeadlines{},
		metrics:   &fakeMetrics{},
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Commands:  f.commands,
		Queries:   f.queries,
		Deadlines: f.deadlines,
		Metrics:   f.metrics,
		Log:       zap.NewNop(),
	}
}

var (
	created  = messages.OrderCreated{OrderID: "o-1", UserID: "u-1", ProductID: "p-1", Quantity: 2, AddressID: "a-1", Status: messages.StatusCreated}
	reserved = messages.ProductReserved{OrderID: "o-1", ProductID: "p-1", Quantity: 2, UserID: "u-1"}
)
