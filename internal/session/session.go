// Package session implements the session dispatcher: the component that
// wires a newly connected channel into inventory handling, keeps the
// handshake layer's advertised height current across reorganizations, and
// serializes mempool existence-checks onto a single dispatch strand.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/libsv/go-p2p/chaincfg/chainhash"
	"github.com/libsv/go-p2p/wire"

	"github.com/bitcoin-sv/node/internal/chainstore"
	"github.com/bitcoin-sv/node/internal/errs"
	"github.com/bitcoin-sv/node/internal/handshake"
	"github.com/bitcoin-sv/node/internal/mempool"
	"github.com/bitcoin-sv/node/internal/p2p"
)

// Channel is the subset of *p2p.Channel the dispatcher drives: a send
// capability, single-shot subscriptions for inventory and get_blocks, and
// the predicates HealthCheck needs. Kept as an interface, rather than the
// concrete type, so tests can exercise the dispatcher without a real wire
// connection.
type Channel interface {
	Send(msg wire.Message) error
	SubscribeInventory(handler func(err error, msg *wire.MsgInv) bool)
	SubscribeGetBlocks(handler func(err error, msg *wire.MsgGetBlocks) bool)
	Authority() string
	Stopped() bool
}

// Fabric is the network fabric the dispatcher drives: it starts/stops the
// peer protocol layer, hands out newly connected channels, and broadcasts
// block inventory on reorganization.
type Fabric interface {
	Start() error
	Stop() error
	SubscribeNewChannel(handler func(err error, ch Channel) bool)
	Broadcast(hashes []*chainhash.Hash) (int, error)
}

// Poller is asked to query and monitor every newly connected channel.
type Poller interface {
	Query(channelAuthority string)
	Monitor(channelAuthority string)
}

// Dispatcher is the session dispatcher.
type Dispatcher struct {
	logger   *slog.Logger
	fabric   Fabric
	store    chainstore.Store
	pool     mempool.Pool
	handshk  handshake.Layer
	poller   Poller
	strand   *strand
	stats    *Metrics

	channels chanSet
}

// NewDispatcher wires a dispatcher against its collaborators. strandDepth
// bounds the inventory dispatch queue.
func NewDispatcher(logger *slog.Logger, fabric Fabric, store chainstore.Store, pool mempool.Pool, handshk handshake.Layer, poller Poller, strandDepth int, stats *Metrics) *Dispatcher {
	return &Dispatcher{
		logger:  logger.With(slog.String("module", "session")),
		fabric:  fabric,
		store:   store,
		pool:    pool,
		handshk: handshk,
		poller:  poller,
		strand:  newStrand(strandDepth),
		stats:   stats,
	}
}

// Start brings up the peer protocol, primes the handshake layer with the
// chain store's current height, and arms the new-channel and reorganization
// subscriptions.
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.fabric.Start(); err != nil {
		return fmt.Errorf("start fabric: %w", err)
	}

	p2p.Rearm(d.fabric.SubscribeNewChannel, d.newChannel)

	height, err := d.store.FetchLastHeight(ctx)
	if err != nil {
		d.logger.Warn("session: failed to fetch initial height", slog.String("err", err.Error()))
	} else if err := d.handshk.SetStartHeight(ctx, int32(height)); err != nil {
		d.logger.Warn("session: failed to push initial height", slog.String("err", err.Error()))
	}

	p2p.Rearm(func(handler func(error, chainstore.ReorgEvent) bool) {
		d.store.SubscribeReorganize(handler)
	}, d.setStartHeight)
	return nil
}

// Stop stops the peer protocol and drains the dispatch strand. It does not
// tear down the chain store, which the outer node owns.
func (d *Dispatcher) Stop() error {
	d.strand.stop()
	return d.fabric.Stop()
}

// newChannel wires inventory/get_blocks subscriptions onto a freshly
// connected channel and asks the poller to watch it. A nil channel is a
// programming fault, not a runtime condition, so it panics rather than
// returning an error.
func (d *Dispatcher) newChannel(err error, ch Channel) bool {
	if err != nil {
		d.logger.Error("session: failed to establish channel", slog.String("err", err.Error()))
		return true
	}
	if ch == nil {
		panic(fmt.Errorf("session: new channel callback: %w", errs.ErrNilChannel))
	}

	d.channels.add(ch)

	p2p.Rearm(ch.SubscribeInventory, d.inventoryHandler(ch))
	p2p.Rearm(ch.SubscribeGetBlocks, d.getBlocksHandler(ch))

	d.poller.Query(ch.Authority())
	d.poller.Monitor(ch.Authority())

	if d.stats != nil {
		d.stats.IncChannels()
	}
	return true
}

func (d *Dispatcher) inventoryHandler(ch Channel) func(error, *wire.MsgInv) bool {
	return func(err error, msg *wire.MsgInv) bool {
		return d.inventory(err, msg, ch)
	}
}

// inventory dispatches each transaction inventory vector onto the strand
// and ignores block vectors, which the poller already handles.
func (d *Dispatcher) inventory(err error, msg *wire.MsgInv, ch Channel) bool {
	if err != nil {
		d.logger.Error("session: failure receiving inventory", slog.String("peer", ch.Authority()), slog.String("err", err.Error()))
		return false
	}

	for _, item := range msg.InvList {
		switch item.Type {
		case wire.InvTypeTx:
			hash := item.Hash
			d.strand.post(func() { d.newTxInventory(hash, ch) })
		case wire.InvTypeBlock:
			// handled by the poller.
		default:
			d.logger.Warn("session: ignoring unknown inventory type", slog.String("peer", ch.Authority()), slog.String("type", item.Type.String()))
		}
	}
	return true
}

// newTxInventory runs on the strand: it checks the mempool for the hash and
// issues get_data only if the tx is not already known.
func (d *Dispatcher) newTxInventory(hash chainhash.Hash, ch Channel) {
	exists := d.pool.Exists(context.Background(), hash)
	d.requestTxData(exists, hash, ch)
}

func (d *Dispatcher) requestTxData(exists bool, hash chainhash.Hash, ch Channel) {
	if exists {
		return
	}

	msg := wire.NewMsgGetData()
	if err := msg.AddInvVect(wire.NewInvVect(wire.InvTypeTx, &hash)); err != nil {
		d.logger.Error("session: failed to build get_data", slog.String("peer", ch.Authority()), slog.String("err", err.Error()))
		return
	}

	if err := ch.Send(msg); err != nil {
		d.logger.Error("session: failed to send get_data", slog.String("peer", ch.Authority()), slog.String("hash", hash.String()), slog.String("err", err.Error()))
	}
}

func (d *Dispatcher) getBlocksHandler(ch Channel) func(error, *wire.MsgGetBlocks) bool {
	return func(err error, msg *wire.MsgGetBlocks) bool {
		return d.getBlocks(err, msg, ch)
	}
}

// getBlocks acknowledges receipt and re-subscribes but never answers the
// request: this node syncs via headers, not the legacy get_blocks/inv
// exchange, so there is nothing useful to reply with.
func (d *Dispatcher) getBlocks(err error, _ *wire.MsgGetBlocks, ch Channel) bool {
	if err != nil {
		d.logger.Error("session: failure receiving get_blocks", slog.String("peer", ch.Authority()), slog.String("err", err.Error()))
		return false
	}
	return true
}

// setStartHeight is the chain store's reorganize subscription: it pushes the
// new tip height into the handshake layer and hands the new blocks' hashes,
// in chain order, to the fabric's Broadcast. With p2p.ChannelFabric that
// sends one single-entry block inventory per hash to a subset of the
// connected peers, not one combined inventory to every peer.
func (d *Dispatcher) setStartHeight(err error, event chainstore.ReorgEvent) bool {
	if err != nil {
		if err != errs.ErrServiceStopped {
			d.logger.Error("session: reorganize subscription failed", slog.String("err", err.Error()))
		}
		return false
	}

	height := event.ForkPoint + int64(len(event.NewBlocks))
	if err := d.handshk.SetStartHeight(context.Background(), int32(height)); err != nil {
		d.logger.Warn("session: failed to push reorg height", slog.String("err", err.Error()))
	}

	hashes := make([]*chainhash.Hash, 0, len(event.NewBlocks))
	for i := range event.NewBlocks {
		hashes = append(hashes, &event.NewBlocks[i].Hash)
	}
	if len(hashes) > 0 {
		if _, err := d.fabric.Broadcast(hashes); err != nil {
			d.logger.Warn("session: failed to broadcast new blocks", slog.String("err", err.Error()))
		}
	}

	return true
}
