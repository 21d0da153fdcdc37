// Package deadline arms and cancels named timers whose expiry is delivered
// back to the saga as a PaymentDeadlineFired message.
package deadline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

// PaymentProcessing is the name of the only deadline the saga arms.
const PaymentProcessing = "payment-processing-deadline"

// Scheduler is the capability handed to the saga.
type Scheduler interface {
	// Schedule arms a timer that delivers payload after delay and returns its
	// id. Scheduling the same name for the same order again rearms that timer.
	Schedule(ctx context.Context, delay time.Duration, name string, payload messages.ProductReserved) (string, error)
	// Cancel disarms a timer. Unknown or already fired ids are not an error.
	Cancel(ctx context.Context, name, scheduleID string) error
}

var scheduleNamespace = uuid.MustParse("3b0f7c1e-5a2d-4e8b-b6f4-9d1a2c7e0f53")

// ScheduleID is the id of the deadline called name for orderID. An order has
// at most one of each, so a retried Schedule reuses the id and an older
// firing stays cancellable.
func ScheduleID(name, orderID string) string {
	return uuid.NewSHA1(scheduleNamespace, []byte(name+"/"+orderID)).String()
}

func fired(scheduleID, name string, payload messages.ProductReserved) messages.PaymentDeadlineFired {
	return messages.PaymentDeadlineFired{ScheduleID: scheduleID, Name: name, Reserved: payload}
}
