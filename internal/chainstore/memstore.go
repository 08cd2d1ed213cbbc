package chainstore

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store used by unit tests and by the session
// dispatcher's default configuration; it holds only the height/hash the
// session cares about, not bodies or UTXOs, backed by a plain
// mutex-guarded slice since there is nothing here worth a real key-value
// engine.
type MemStore struct {
	mu     sync.Mutex
	blocks []BlockRef

	reorgHandler ReorganizeHandler
}

// NewMemStore seeds the store at genesis (height 0, zero hash).
func NewMemStore() *MemStore {
	return &MemStore{blocks: []BlockRef{{Height: 0}}}
}

// FetchLastHeight returns the height of the most recently applied block.
func (m *MemStore) FetchLastHeight(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blocks[len(m.blocks)-1].Height, nil
}

// SubscribeReorganize installs a one-shot handler for the next call to
// Reorganize.
func (m *MemStore) SubscribeReorganize(handler ReorganizeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reorgHandler = handler
}

// Start is a no-op: the in-memory store has no external resources to bring
// up.
func (m *MemStore) Start(context.Context) error { return nil }

// Stop is a no-op for the same reason.
func (m *MemStore) Stop() error { return nil }

// Reorganize is the test/administrative entry point simulating the chain
// store detecting a reorg: it applies newBlocks, replacing replacedBlocks,
// and fires (and clears) the pending subscription.
func (m *MemStore) Reorganize(forkPoint int64, newBlocks, replacedBlocks []BlockRef) {
	m.mu.Lock()
	replaced := make(map[int64]bool, len(replacedBlocks))
	for _, b := range replacedBlocks {
		replaced[b.Height] = true
	}
	kept := m.blocks[:0]
	for _, b := range m.blocks {
		if !replaced[b.Height] {
			kept = append(kept, b)
		}
	}
	m.blocks = append(kept, newBlocks...)
	handler := m.reorgHandler
	m.reorgHandler = nil
	m.mu.Unlock()

	if handler != nil {
		handler(nil, ReorgEvent{
			ForkPoint:      forkPoint,
			NewBlocks:      newBlocks,
			ReplacedBlocks: replacedBlocks,
		})
	}
}
