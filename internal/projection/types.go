// Package projection maintains the denormalized order read model that the
// query endpoint serves. It is fed by the order events and never consulted by
// the aggregate or the saga.
package projection

import (
	"context"
	"errors"
	"time"

	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

var (
	// ErrNotFound is returned when no view exists for an order id.
	ErrNotFound = errors.New("order view not found")
	// ErrStatusMismatch is returned when a conditional status update finds another status.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrAlreadyExists is returned by Insert for a known order id.
	ErrAlreadyExists = errors.New("order view already exists")
)

// OrderView is the item stored in the orders table.
type OrderView struct {
	OrderID   string               `dynamodbav:"order_id" json:"order_id"` // PK
	UserID    string               `dynamodbav:"user_id" json:"user_id"`
	ProductID string               `dynamodbav:"product_id" json:"product_id"`
	Quantity  int                  `dynamodbav:"quantity" json:"quantity"`
	AddressID string               `dynamodbav:"address_id" json:"address_id"`
	Status    messages.OrderStatus `dynamodbav:"status" json:"status"` // CREATED | APPROVED | REJECTED
	Reason    string               `dynamodbav:"reason,omitempty" json:"reason,omitempty"`
	CreatedAt time.Time            `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt time.Time            `dynamodbav:"updated_at" json:"updated_at"`
}

// Store persists order views.
type Store interface {
	Insert(ctx context.Context, view OrderView) error
	// UpdateStatus moves a view from expected to next, recording reason.
	UpdateStatus(ctx context.Context, orderID string, expected, next messages.OrderStatus, reason string) error
	Get(ctx context.Context, orderID string) (*OrderView, error)
}
