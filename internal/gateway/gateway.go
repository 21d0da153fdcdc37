// Package gateway carries the saga's outbound commands and queries to other
// services. Asynchronous commands travel over SQS; calls whose result the saga
// waits for go over HTTP.
package gateway

import (
	"context"
	"fmt"

	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

// CommandGateway sends commands.
type CommandGateway interface {
	// Send hands the command to its transport and returns once it is accepted.
	Send(ctx context.Context, cmd messages.Message) error
	// SendAndWait executes the command remotely and returns its result id.
	SendAndWait(ctx context.Context, cmd messages.Message) (string, error)
}

// QueryGateway answers queries.
type QueryGateway interface {
	// FetchUserPaymentDetails returns nil, nil when the user is unknown.
	FetchUserPaymentDetails(ctx context.Context, q messages.FetchUserPaymentDetails) (*messages.User, error)
}

// RemoteCallError is a failed command send or query.
type RemoteCallError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteCallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

func remoteErr(op string, status int, err error) error {
	return &RemoteCallError{Op: op, StatusCode: status, Err: err}
}
