package eventstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps streams in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	streams map[string][]Record
	nowFunc func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streams: map[string][]Record{},
		nowFunc: time.Now,
	}
}

func (m *MemoryStore) Load(ctx context.Context, aggregateID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stream := m.streams[aggregateID]
	out := make([]Record, len(stream))
	copy(out, stream)
	return out, nil
}

func (m *MemoryStore) Append(ctx context.Context, aggregateID string, expectedVersion int, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current := len(m.streams[aggregateID])
	if current != expectedVersion {
		return fmt.Errorf("%w: %s at version %d, expected %d", ErrVersionConflict, aggregateID, current, expectedVersion)
	}
	m.streams[aggregateID] = append(m.streams[aggregateID], stamp(aggregateID, expectedVersion, records, m.nowFunc())...)
	return nil
}
