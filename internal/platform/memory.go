package platform

import (
	"fmt"
	"sync"

	"github.com/berrythewa/ezpaste-daemon/internal/types"
)

// MemoryClipboard is an in-process clipboard. It backs headless hosts and
// stands in for the system clipboard in tests.
type MemoryClipboard struct {
	mu       sync.Mutex
	token    int64
	items    []types.Item
	writes   int
	writeErr error
}

// NewMemoryClipboard returns an empty clipboard at token 0.
func NewMemoryClipboard() *MemoryClipboard {
	return &MemoryClipboard{}
}

func (m *MemoryClipboard) Name() string { return "memory" }

func (m *MemoryClipboard) Snapshot() (types.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := types.Snapshot{Token: m.token, Types: make([]types.DataType, 0, len(m.items))}
	for _, it := range m.items {
		snap.Types = append(snap.Types, it.Type)
	}
	return snap, nil
}

func (m *MemoryClipboard) Read(t types.DataType) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.Type == t {
			return append([]byte(nil), it.Data...), nil
		}
	}
	return nil, fmt.Errorf("read %s: %w", t, ErrUnsupportedType)
}

func (m *MemoryClipboard) Write(items []types.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.items = m.items[:0]
	for _, it := range items {
		m.items = append(m.items, types.Item{Type: it.Type, Data: append([]byte(nil), it.Data...)})
	}
	m.token++
	m.writes++
	return nil
}

func (m *MemoryClipboard) Close() {}

// Writes returns how many successful writes the clipboard has seen.
func (m *MemoryClipboard) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// SetWriteError makes subsequent writes fail with err until cleared with nil.
func (m *MemoryClipboard) SetWriteError(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}
