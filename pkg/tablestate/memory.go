package tablestate

import (
	"sync"

	"github.com/vango-dev/datatable/pkg/table"
)

// Memory is an in-process StateAdapter.
type Memory[F any] struct {
	mu        sync.Mutex
	snap      table.Snapshot[F]
	listeners map[int]table.Listener[F]
	nextID    int
}

// NewMemory creates an adapter holding initial.
func NewMemory[F any](initial table.Snapshot[F]) *Memory[F] {
	return &Memory[F]{
		snap:      initial.Clone(),
		listeners: make(map[int]table.Listener[F]),
	}
}

// Snapshot returns a copy of the current snapshot.
func (m *Memory[F]) Snapshot() table.Snapshot[F] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Clone()
}

// SetSnapshot replaces the snapshot and notifies subscribers in subscription order.
func (m *Memory[F]) SetSnapshot(next table.Snapshot[F], reason table.ChangeReason) {
	m.mu.Lock()
	m.snap = next.Clone()
	snap := m.snap.Clone()
	listeners := m.ordered()
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(snap.Clone(), reason)
	}
}

// Subscribe registers fn. The returned function removes it.
func (m *Memory[F]) Subscribe(fn table.Listener[F]) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// ordered returns listeners by subscription id. Caller holds mu.
func (m *Memory[F]) ordered() []table.Listener[F] {
	out := make([]table.Listener[F], 0, len(m.listeners))
	for id := 0; id < m.nextID; id++ {
		if fn, ok := m.listeners[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}
