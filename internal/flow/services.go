package flow

import (
	"context"
	"fmt"
	"sync"

	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

// Inventory reserves and releases stock unconditionally.
func Inventory() map[messages.Kind]Service {
	return map[messages.Kind]Service{
		messages.KindReserveProduct: func(ctx context.Context, cmd messages.Message) (string, []messages.Message, error) {
			c := cmd.(messages.ReserveProduct)
			return "", []messages.Message{messages.ProductReserved{
				OrderID: c.OrderID, ProductID: c.ProductID, Quantity: c.Quantity, UserID: c.UserID,
			}}, nil
		},
		messages.KindCancelProductReservation: func(ctx context.Context, cmd messages.Message) (string, []messages.Message, error) {
			c := cmd.(messages.CancelProductReservation)
			return "", []messages.Message{messages.ProductReservationCancelled{
				OrderID: c.OrderID, ProductID: c.ProductID, Quantity: c.Quantity, UserID: c.UserID, Reason: c.Reason,
			}}, nil
		},
	}
}

// Payments accepts every payment. With confirm set it also publishes
// PaymentProcessed; without, the payment stays unconfirmed and the deadline decides.
func Payments(confirm bool) Service {
	return func(ctx context.Context, cmd messages.Message) (string, []messages.Message, error) {
		c := cmd.(messages.ProcessPayment)
		if !confirm {
			return c.PaymentID, nil, nil
		}
		return c.PaymentID, []messages.Message{messages.PaymentProcessed{OrderID: c.OrderID, PaymentID: c.PaymentID}}, nil
	}
}

// UserDirectory is an in-memory users service.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]messages.User
	err   error
}

func NewUserDirectory(users ...messages.User) *UserDirectory {
	d := &UserDirectory{users: map[string]messages.User{}}
	for _, u := range users {
		d.users[u.UserID] = u
	}
	return d
}

// Put adds or replaces a user.
func (d *UserDirectory) Put(u messages.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.UserID] = u
}

// FailWith makes every lookup fail with err until called with nil.
func (d *UserDirectory) FailWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *UserDirectory) FetchUserPaymentDetails(ctx context.Context, q messages.FetchUserPaymentDetails) (*messages.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", q.UserID, d.err)
	}
	u, ok := d.users[q.UserID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}
