package mempool

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/libsv/go-bt/v2"
	"github.com/libsv/go-p2p/chaincfg/chainhash"
	"github.com/patrickmn/go-cache"

	"github.com/bitcoin-sv/node/internal/errs"
)

// entryTTL bounds how long a seen-hash entry lives in the existence cache;
// the node has no eviction pressure signal of its own, so this just keeps
// memory bounded under sustained inventory traffic.
const entryTTL = 10 * time.Minute

// InMemoryPool is the reference Pool: an existence cache backed by
// patrickmn/go-cache, plus a conflict set keyed by spent outpoint for
// RejectConflicts enforcement.
type InMemoryPool struct {
	policy PolicyConfig
	seen   *cache.Cache

	mu       sync.Mutex
	spentBy  map[string]chainhash.Hash // outpoint key -> spending tx hash
}

// NewInMemoryPool builds a pool enforcing policy.
func NewInMemoryPool(policy PolicyConfig) *InMemoryPool {
	return &InMemoryPool{
		policy:  policy,
		seen:    cache.New(entryTTL, entryTTL/2),
		spentBy: make(map[string]chainhash.Hash),
	}
}

// Exists reports whether hash has already been stored.
func (p *InMemoryPool) Exists(_ context.Context, hash chainhash.Hash) bool {
	_, found := p.seen.Get(hash.String())
	return found
}

// Store runs fee and conflict policy against tx and, if accepted, records it
// in the existence cache. There is no real block index behind this pool, so
// onConfirmed never fires; every admitted transaction lands in onAccepted.
func (p *InMemoryPool) Store(ctx context.Context, tx *bt.Tx, onConfirmed func(error), onAccepted func(error, []int)) {
	hash, err := chainhash.NewHash(tx.TxIDBytes())
	if err != nil {
		onAccepted(err, nil)
		return
	}

	if p.Exists(ctx, *hash) {
		onAccepted(nil, nil)
		return
	}

	var unresolved []int
	inputTotal := uint64(0)
	for i, in := range tx.Inputs {
		if in.PreviousTxSatoshis == 0 {
			unresolved = append(unresolved, i)
			continue
		}
		inputTotal += in.PreviousTxSatoshis
	}

	outputTotal := uint64(0)
	for _, out := range tx.Outputs {
		outputTotal += out.Satoshis
	}

	if len(unresolved) == 0 {
		if inputTotal < outputTotal || inputTotal-outputTotal < p.policy.MinimumFeeSatoshis {
			onAccepted(errs.ErrOperationFailed, nil)
			return
		}
	}

	if p.policy.RejectConflicts {
		p.mu.Lock()
		for _, in := range tx.Inputs {
			key := outpointKey(in)
			if spender, conflict := p.spentBy[key]; conflict && !spender.IsEqual(hash) {
				p.mu.Unlock()
				onAccepted(errs.ErrOperationFailed, nil)
				return
			}
		}
		for _, in := range tx.Inputs {
			p.spentBy[outpointKey(in)] = *hash
		}
		p.mu.Unlock()
	}

	p.seen.Set(hash.String(), struct{}{}, cache.DefaultExpiration)
	onAccepted(nil, unresolved)
}

func outpointKey(in *bt.Input) string {
	return in.PreviousTxIDStr() + ":" + strconv.FormatUint(uint64(in.PreviousTxOutIndex), 10)
}

var _ Pool = (*InMemoryPool)(nil)
