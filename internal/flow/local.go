package flow

import (
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-saga/internal/deadline"
	"github.com/imrishuroy/go-orderflow-saga/internal/eventstore"
	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
	"github.com/imrishuroy/go-orderflow-saga/internal/metrics"
	"github.com/imrishuroy/go-orderflow-saga/internal/orders"
	"github.com/imrishuroy/go-orderflow-saga/internal/projection"
	"github.com/imrishuroy/go-orderflow-saga/internal/router"
	"github.com/imrishuroy/go-orderflow-saga/internal/saga"
)

// Options configure a Local runtime.
type Options struct {
	PaymentDeadline          time.Duration
	PaymentProcessingEnabled bool
	// ConfirmPayments makes the simulated payments service publish PaymentProcessed.
	ConfirmPayments bool
	Metrics         metrics.Recorder
}

// Local is the full workflow wired over in-memory stores.
type Local struct {
	Bus       *Bus
	Events    *eventstore.MemoryStore
	Views     *projection.MemoryStore
	Orders    *orders.Service
	Sagas     *saga.Manager
	Deadlines *deadline.LocalScheduler
	Users     *UserDirectory
	Router    *router.Router
}

// NewLocal wires every component with the simulated inventory and payments
// services registered on the bus.
func NewLocal(opts Options, log *zap.Logger) *Local {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	l := &Local{
		Bus:    NewBus(log),
		Events: eventstore.NewMemoryStore(),
		Views:  projection.NewMemoryStore(),
		Users:  NewUserDirectory(),
	}
	l.Orders = orders.NewService(l.Events, l.Bus, log)
	l.Deadlines = deadline.NewLocalScheduler(func(m messages.PaymentDeadlineFired) {
		if err := l.Bus.Enqueue(m); err != nil {
			log.Error("enqueue deadline", zap.Error(err))
		}
	})

	sg := saga.New(saga.Options{
		PaymentDeadline:          opts.PaymentDeadline,
		PaymentProcessingEnabled: opts.PaymentProcessingEnabled,
	})
	l.Sagas = saga.NewManager(sg, saga.NewMemoryStateStore(), func() saga.Deps {
		return saga.Deps{
			Commands:  l.Bus,
			Queries:   l.Users,
			Deadlines: l.Deadlines,
			Metrics:   opts.Metrics,
			Log:       log,
		}
	}, log)

	l.Router = router.New(l.Orders, projection.NewProjector(l.Views, log), l.Sagas, log)
	l.Bus.Attach(l.Router.Route)
	for kind, svc := range Inventory() {
		l.Bus.Register(kind, svc)
	}
	l.Bus.Register(messages.KindProcessPayment, Payments(opts.ConfirmPayments))
	return l
}
