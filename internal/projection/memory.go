package projection

import (
	"context"
	"sync"
	"time"

	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

// MemoryStore is the in-process Store used by the local runtime and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	views   map[string]OrderView
	nowFunc func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{views: map[string]OrderView{}, nowFunc: time.Now}
}

func (m *MemoryStore) Insert(ctx context.Context, view OrderView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.views[view.OrderID]; ok {
		return ErrAlreadyExists
	}
	now := m.nowFunc()
	if view.CreatedAt.IsZero() {
		view.CreatedAt = now
	}
	view.UpdatedAt = now
	m.views[view.OrderID] = view
	return nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, orderID string, expected, next messages.OrderStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.views[orderID]
	if !ok {
		return ErrNotFound
	}
	if v.Status != expected {
		return ErrStatusMismatch
	}
	v.Status = next
	v.Reason = reason
	v.UpdatedAt = m.nowFunc()
	m.views[orderID] = v
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, orderID string) (*OrderView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.views[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}
