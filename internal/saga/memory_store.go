package saga

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStateStore keeps instance state in process memory.
type MemoryStateStore struct {
	mu      sync.Mutex
	states  map[string]State
	nowFunc func() time.Time
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: map[string]State{}, nowFunc: time.Now}
}

func (m *MemoryStateStore) Load(ctx context.Context, orderID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[orderID]; ok {
		return s, nil
	}
	return State{OrderID: orderID}, nil
}

func (m *MemoryStateStore) Save(ctx context.Context, state State) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current := m.states[state.OrderID].Revision; current != state.Revision {
		return State{}, fmt.Errorf("%w: %s at revision %d, saving %d", ErrStateConflict, state.OrderID, current, state.Revision)
	}
	state.Revision++
	state.UpdatedAt = m.nowFunc()
	m.states[state.OrderID] = state
	return state, nil
}
