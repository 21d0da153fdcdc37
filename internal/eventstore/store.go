// Package eventstore persists per-order event streams. Streams are append-only
// and versioned; an append only succeeds when the stream is still at the
// version the caller loaded.
package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrVersionConflict is returned by Append when the stream moved past expectedVersion.
var ErrVersionConflict = errors.New("event stream version conflict")

// Record is one stored event. Versions start at 1 and have no gaps.
type Record struct {
	AggregateID string          `dynamodbav:"aggregate_id"`
	Version     int             `dynamodbav:"version"`
	Type        string          `dynamodbav:"type"`
	Data        json.RawMessage `dynamodbav:"data"`
	RecordedAt  time.Time       `dynamodbav:"recorded_at"`
}

// Store is an append-only event log keyed by aggregate id.
type Store interface {
	// Load returns the stream ordered by version; an unknown id yields an empty slice.
	Load(ctx context.Context, aggregateID string) ([]Record, error)
	// Append writes records as versions expectedVersion+1, expectedVersion+2, ...
	Append(ctx context.Context, aggregateID string, expectedVersion int, records []Record) error
}

// stamp fills in the stream position of each record.
func stamp(aggregateID string, expectedVersion int, records []Record, now time.Time) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		r.AggregateID = aggregateID
		r.Version = expectedVersion + i + 1
		if r.RecordedAt.IsZero() {
			r.RecordedAt = now
		}
		out[i] = r
	}
	return out
}
