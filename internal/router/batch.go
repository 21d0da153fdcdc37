package router

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

// DefaultBatchConcurrency bounds how many orders a batch works on at once.
const DefaultBatchConcurrency = 8

// ErrSkipped marks an envelope not attempted because an earlier one for the
// same order failed in the same batch.
var ErrSkipped = errors.New("skipped after earlier failure for the same order")

// RouteFunc handles one envelope; RouteBatch calls it instead of Route so
// callers can wrap routing (inbox bookkeeping, for example).
type RouteFunc func(ctx context.Context, env messages.Envelope) error

// RouteBatch runs route over envs. Envelopes of one order run sequentially in
// slice order; different orders run in parallel. The result holds one error
// per envelope, at the envelope's index.
func RouteBatch(ctx context.Context, envs []messages.Envelope, concurrency int, route RouteFunc) []error {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	results := make([]error, len(envs))

	var (
		order  []string
		groups = map[string][]int{}
	)
	for i, env := range envs {
		key := env.OrderID
		if key == "" {
			key = "\x00" + env.ID
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, key := range order {
		idxs := groups[key]
		g.Go(func() error {
			for n, i := range idxs {
				if err := ctx.Err(); err != nil {
					results[i] = err
					continue
				}
				if err := route(ctx, envs[i]); err != nil {
					results[i] = err
					for _, rest := range idxs[n+1:] {
						results[rest] = fmt.Errorf("%w: %s", ErrSkipped, envs[i].ID)
					}
					return nil
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
