package orders

import "errors"

var (
	// ErrDuplicateIdentifier is returned when creating an order id that already has history.
	ErrDuplicateIdentifier = errors.New("order already exists")
	// ErrInvalidStateTransition is returned when a command targets a terminal order.
	ErrInvalidStateTransition = errors.New("invalid order state transition")
	// ErrOrderNotFound is returned when a command targets an order with no history.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidCommand is returned for commands that fail basic validation.
	ErrInvalidCommand = errors.New("invalid order command")
)
