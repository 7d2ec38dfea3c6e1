package store

import (
	"context"
	"slices"
	"sync"
)

// Memory keeps documents in process memory. It is used by tests and by
// throwaway runs with MICROBANK_STORE=memory.
type Memory struct {
	locks lockSet
	mu    sync.RWMutex
	docs  map[Name][]byte
}

func NewMemory() *Memory {
	return &Memory{docs: map[Name][]byte{}}
}

func (m *Memory) Do(ctx context.Context, names []Name, fn func(rw ReadWriter) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	release := m.locks.acquire(names)
	defer release()

	st := newStaged(names, m.read)
	if err := fn(st); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range st.pending() {
		m.docs[n] = st.writes[n]
	}
	return nil
}

func (m *Memory) read(_ context.Context, name Name) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.docs[name]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(raw), nil
}

func (m *Memory) Close() error { return nil }
