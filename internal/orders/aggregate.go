// Package orders holds the event-sourced order aggregate and the command
// service that loads, decides and appends for it.
package orders

import (
	"fmt"
	"sort"
	"strings"

	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

// Order is the aggregate. Its fields are only ever written by Apply.
type Order struct {
	ID        string
	UserID    string
	ProductID string
	AddressID string
	Quantity  int
	Status    messages.OrderStatus
	Reason    string

	version int
	pending []messages.Message
}

// New returns an empty aggregate for id.
func New(id string) *Order {
	return &Order{ID: id}
}

// Replay folds history into a fresh aggregate.
func Replay(id string, history []messages.Message) *Order {
	o := New(id)
	for _, e := range history {
		o.Apply(e)
	}
	o.version = len(history)
	return o
}

// Exists reports whether the order has been created.
func (o *Order) Exists() bool { return o.Status != "" }

// Version is the number of committed events behind this instance.
func (o *Order) Version() int { return o.version }

// Uncommitted returns events raised since the last MarkCommitted.
func (o *Order) Uncommitted() []messages.Message { return o.pending }

// MarkCommitted records that the pending events were appended.
func (o *Order) MarkCommitted() {
	o.version += len(o.pending)
	o.pending = nil
}

// Create handles CreateOrder.
func (o *Order) Create(cmd messages.CreateOrder) error {
	if err := validateCreate(cmd); err != nil {
		return err
	}
	if o.Exists() {
		return fmt.Errorf("%w: %s", ErrDuplicateIdentifier, cmd.OrderID)
	}
	o.raise(messages.OrderCreated{
		OrderID:   cmd.OrderID,
		UserID:    cmd.UserID,
		ProductID: cmd.ProductID,
		Quantity:  cmd.Quantity,
		AddressID: cmd.AddressID,
		Status:    messages.StatusCreated,
	})
	return nil
}

// Approve handles ApproveOrder.
func (o *Order) Approve() error {
	if err := o.canFinish(messages.StatusApproved); err != nil {
		return err
	}
	o.raise(messages.OrderApproved{OrderID: o.ID, Status: messages.StatusApproved})
	return nil
}

// Reject handles RejectOrder.
func (o *Order) Reject(reason string) error {
	if err := o.canFinish(messages.StatusRejected); err != nil {
		return err
	}
	o.raise(messages.OrderRejected{OrderID: o.ID, Status: messages.StatusRejected, Reason: reason})
	return nil
}

// Apply mutates state from one event. It never validates: history is trusted.
func (o *Order) Apply(event messages.Message) {
	switch e := event.(type) {
	case messages.OrderCreated:
		o.ID = e.OrderID
		o.UserID = e.UserID
		o.ProductID = e.ProductID
		o.Quantity = e.Quantity
		o.AddressID = e.AddressID
		o.Status = messages.StatusCreated
	case messages.OrderApproved:
		o.Status = messages.StatusApproved
	case messages.OrderRejected:
		o.Status = messages.StatusRejected
		o.Reason = e.Reason
	}
}

func (o *Order) raise(e messages.Message) {
	o.Apply(e)
	o.pending = append(o.pending, e)
}

func (o *Order) canFinish(next messages.OrderStatus) error {
	if !o.Exists() {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, o.ID)
	}
	if o.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s, cannot become %s", ErrInvalidStateTransition, o.ID, o.Status, next)
	}
	return nil
}

func validateCreate(cmd messages.CreateOrder) error {
	var missing []string
	for name, v := range map[string]string{
		"order_id":   cmd.OrderID,
		"user_id":    cmd.UserID,
		"product_id": cmd.ProductID,
		"address_id": cmd.AddressID,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing %s", ErrInvalidCommand, strings.Join(missing, ", "))
	}
	if cmd.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidCommand, cmd.Quantity)
	}
	return nil
}
