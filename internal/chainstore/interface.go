// Package chainstore defines the chain store collaborator the session
// dispatcher drives at start-up and on every reorganization: a narrow
// interface plus an in-memory reference implementation, so the rest of the
// core can compile and be tested against it independent of any particular
// storage backend.
package chainstore

import (
	"context"

	"github.com/libsv/go-p2p/chaincfg/chainhash"
)

// BlockRef names one block by height and hash, the unit a reorganization
// event is built from.
type BlockRef struct {
	Height int64
	Hash   chainhash.Hash
}

// ReorgEvent is delivered to a ReorganizeHandler: the fork point height, the
// blocks newly on the active chain (in chain order), and the blocks they
// replaced.
type ReorgEvent struct {
	ForkPoint      int64
	NewBlocks      []BlockRef
	ReplacedBlocks []BlockRef
}

// ReorganizeHandler receives a reorganization notification. A nil err with
// a zero ReorgEvent never happens; err wraps errs.ErrServiceStopped when the
// store is shutting down, in which case the handler must not resubscribe.
// The boolean return is unused by the store itself - callers that want
// continuous delivery wrap SubscribeReorganize with p2p.Rearm.
type ReorganizeHandler func(err error, event ReorgEvent) bool

// Store is the chain store's consumed interface: fetch the current tip
// height, subscribe to reorganizations, and a start/stop lifecycle owned by
// the outer node (the session dispatcher never tears it down itself).
type Store interface {
	FetchLastHeight(ctx context.Context) (int64, error)
	SubscribeReorganize(handler ReorganizeHandler)
	Start(ctx context.Context) error
	Stop() error
}
