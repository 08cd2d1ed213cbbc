package headersync

import (
	"sync"

	"github.com/libsv/go-p2p/chaincfg/chainhash"
	"github.com/libsv/go-p2p/wire"
)

// Table is a fixed-capacity, append-only sequence of block headers anchored
// between a known previous hash and a target stop hash. It is shared across
// the lifetime of a sync attempt (and any peer replacements within it), so
// every exported method is safe for concurrent use.
type Table struct {
	mu sync.Mutex

	firstHeight int64
	firstHash   chainhash.Hash
	stopHash    chainhash.Hash

	capacity uint32
	slots    []wire.BlockHeader
}

// New allocates a table with no slots and the three anchors fixed. capacity
// is the expected stopHeight-firstHeight; merges that would grow slots past
// capacity are rejected rather than silently truncated.
func New(firstHeight int64, firstHash, stopHash chainhash.Hash, capacity uint32) *Table {
	return &Table{
		firstHeight: firstHeight,
		firstHash:   firstHash,
		stopHash:    stopHash,
		capacity:    capacity,
		slots:       make([]wire.BlockHeader, 0, capacity),
	}
}

// FirstHeight returns the height of the first slot.
func (t *Table) FirstHeight() int64 {
	return t.firstHeight
}

// StopHash returns the hash expected on the final slot at completion.
func (t *Table) StopHash() chainhash.Hash {
	return t.stopHash
}

// PreviousHeight returns firstHeight+len(slots)-1, or firstHeight-1 if empty.
func (t *Table) PreviousHeight() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.previousHeightLocked()
}

func (t *Table) previousHeightLocked() int64 {
	if len(t.slots) == 0 {
		return t.firstHeight - 1
	}
	return t.firstHeight + int64(len(t.slots)) - 1
}

// PreviousHash returns the hash of the last stored header, or firstHash if
// the table is empty.
func (t *Table) PreviousHash() chainhash.Hash {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.previousHashLocked()
}

func (t *Table) previousHashLocked() chainhash.Hash {
	if len(t.slots) == 0 {
		return t.firstHash
	}
	return t.slots[len(t.slots)-1].BlockHash()
}

// Complete reports whether the last stored header's hash equals stopHash.
func (t *Table) Complete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.slots) == 0 {
		return false
	}
	lastHash := t.slots[len(t.slots)-1].BlockHash()
	return lastHash.IsEqual(&t.stopHash)
}

// Heights returns the first and last occupied heights. last is firstHeight-1
// when the table is empty.
func (t *Table) Heights() (first, last int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.firstHeight, t.previousHeightLocked()
}

// Snapshot returns a copy of the currently stored headers, safe for the
// caller to retain past the next Merge.
func (t *Table) Snapshot() []wire.BlockHeader {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]wire.BlockHeader, len(t.slots))
	copy(out, t.slots)
	return out
}

// Merge attempts to append the longest prefix of batch whose first element
// links to PreviousHash(). It fails - returning false with the table
// unchanged - if the first header does not link, if any adjacent pair inside
// the accepted prefix fails linkage, or if the accepted prefix would overflow
// capacity. Headers beyond the stop hash are dropped from the tail of batch
// without failing the merge; headers beyond capacity fail the merge instead.
func (t *Table) Merge(batch []wire.BlockHeader) bool {
	if len(batch) == 0 {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	expected := t.previousHashLocked()
	if batch[0].PrevBlock != expected {
		return false
	}

	accepted := make([]wire.BlockHeader, 0, len(batch))
	accepted = append(accepted, batch[0])

	for i := 1; i < len(batch); i++ {
		prevHash := accepted[len(accepted)-1].BlockHash()
		if batch[i].PrevBlock != prevHash {
			break
		}
		accepted = append(accepted, batch[i])
	}

	if uint32(len(t.slots)+len(accepted)) > t.capacity {
		return false
	}

	for _, h := range accepted {
		t.slots = append(t.slots, h)
		hash := h.BlockHash()
		if hash.IsEqual(&t.stopHash) {
			break
		}
	}

	return true
}
