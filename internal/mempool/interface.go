// Package mempool defines the mempool collaborator the session dispatcher's
// strand checks on every transaction inventory announcement.
package mempool

import (
	"context"

	"github.com/libsv/go-bt/v2"
	"github.com/libsv/go-p2p/chaincfg/chainhash"
)

// Pool is the mempool's consumed interface: existence checks gate whether a
// get_data request is sent for an announced hash, and Store submits a
// fetched transaction for acceptance.
//
// Exists and Store may be called concurrently from any goroutine; Pool
// implementations must be safe for that.
type Pool interface {
	// Exists reports whether hash is already known to the pool (pending or
	// confirmed).
	Exists(ctx context.Context, hash chainhash.Hash) bool

	// Store submits tx for acceptance. onConfirmed fires if tx turns out to
	// already be confirmed in a block the pool knows about; otherwise
	// onAccepted fires once the pool has run policy checks, reporting the
	// indices of inputs it could not yet resolve (spent by transactions it
	// hasn't seen).
	Store(ctx context.Context, tx *bt.Tx, onConfirmed func(err error), onAccepted func(err error, unconfirmedInputIndices []int))
}

// PolicyConfig carries the mempool's admission policy knobs.
type PolicyConfig struct {
	// RejectConflicts, when true, refuses any transaction that double-spends
	// an input already held by another pending transaction.
	RejectConflicts bool

	// MinimumFeeSatoshis is the minimum absolute fee a transaction must pay
	// to be admitted.
	MinimumFeeSatoshis uint64
}
