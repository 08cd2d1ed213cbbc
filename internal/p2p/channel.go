package p2p

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/libsv/go-p2p/wire"
)

// ErrChannelAlreadyStopped is returned by Send once the channel has been
// stopped.
var ErrChannelAlreadyStopped = errors.New("channel already stopped")

var (
	_ PeerI          = (*Channel)(nil)
	_ MessageHandlerI = (*Channel)(nil)
)

// Channel is a connected peer session with identity, a send capability, a
// per-message single-shot subscription capability, and a stopped predicate.
// It wraps a *Peer (the TCP connection and handshake machinery) and adds the
// one-shot-per-command dispatch table the header-sync protocol and session
// dispatcher subscribe against.
type Channel struct {
	id   uuid.UUID
	peer PeerI

	mu       sync.Mutex
	headers  func(error, *wire.MsgHeaders) bool
	inv      func(error, *wire.MsgInv) bool
	getBlock func(error, *wire.MsgGetBlocks) bool

	stoppedFlag atomic.Bool
	stopReason  error
}

// NewChannel builds a Channel and the outbound *Peer underneath it in one
// step, since the peer must be constructed with the channel as its message
// handler: OnReceive below is where every inbound command lands.
func NewChannel(logger *slog.Logger, address string, network wire.BitcoinNet, opts ...PeerOptions) *Channel {
	c := &Channel{id: uuid.New()}
	c.peer = NewPeer(logger, c, address, network, opts...)
	return c
}

// ID is the channel's process-local instance identity, used only for
// logging and metric labels (not part of the wire protocol).
func (c *Channel) ID() uuid.UUID { return c.id }

// Send transmits msg on the underlying connection. Because the peer's write
// path is a buffered channel drained by its own writer goroutine, failure
// is only known asynchronously (it marks the peer unhealthy and the next
// Stopped() call observes it); Send itself only rejects sends to an already
// stopped channel.
func (c *Channel) Send(msg wire.Message) error {
	if c.Stopped() {
		return ErrChannelAlreadyStopped
	}
	c.peer.WriteMsg(msg)
	return nil
}

// SubscribeHeaders installs a one-shot handler for the next headers message.
func (c *Channel) SubscribeHeaders(handler func(err error, msg *wire.MsgHeaders) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers = handler
}

// SubscribeInventory installs a one-shot handler for the next inv message.
func (c *Channel) SubscribeInventory(handler func(err error, msg *wire.MsgInv) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inv = handler
}

// SubscribeGetBlocks installs a one-shot handler for the next getblocks
// message (ack-only; the core never replies to it).
func (c *Channel) SubscribeGetBlocks(handler func(err error, msg *wire.MsgGetBlocks) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getBlock = handler
}

// Stopped reports whether the channel has been stopped, either explicitly or
// because the underlying peer disconnected.
func (c *Channel) Stopped() bool {
	return c.stoppedFlag.Load() || !c.peer.Connected()
}

// Stop tears down the underlying peer and records reason so later Stopped()
// observers can tell why.
func (c *Channel) Stop(reason error) {
	if !c.stoppedFlag.CompareAndSwap(false, true) {
		return
	}
	c.stopReason = reason
	c.peer.Shutdown()
}

// StopReason returns the reason passed to Stop, or nil if still running.
func (c *Channel) StopReason() error { return c.stopReason }

// Authority is the channel's network identity (address:port).
func (c *Channel) Authority() string { return c.peer.String() }

// The remaining methods satisfy PeerI by delegating to the wrapped peer, so
// a *Channel can be registered directly with a PeerManager/ChannelFabric.

func (c *Channel) Connect() bool             { return c.peer.Connect() }
func (c *Channel) Connected() bool           { return c.peer.Connected() }
func (c *Channel) Restart() bool             { return c.peer.Restart() }
func (c *Channel) Shutdown()                 { c.Stop(nil) }
func (c *Channel) IsUnhealthyCh() <-chan struct{} { return c.peer.IsUnhealthyCh() }
func (c *Channel) WriteMsg(msg wire.Message) { c.peer.WriteMsg(msg) }
func (c *Channel) Network() wire.BitcoinNet  { return c.peer.Network() }
func (c *Channel) String() string            { return c.peer.String() }
func (c *Channel) SetStartHeight(height int32) { c.peer.SetStartHeight(height) }

// OnReceive implements MessageHandlerI: it dispatches to whichever one-shot
// handler is currently registered for msg's command, clearing the slot
// first so the single-shot delivery contract holds even if the handler
// re-subscribes synchronously (via Rearm) before OnReceive returns.
func (c *Channel) OnReceive(msg wire.Message, _ PeerI) {
	switch m := msg.(type) {
	case *wire.MsgHeaders:
		c.mu.Lock()
		h := c.headers
		c.headers = nil
		c.mu.Unlock()
		if h != nil {
			h(nil, m)
		}

	case *wire.MsgInv:
		c.mu.Lock()
		h := c.inv
		c.inv = nil
		c.mu.Unlock()
		if h != nil {
			h(nil, m)
		}

	case *wire.MsgGetBlocks:
		c.mu.Lock()
		h := c.getBlock
		c.getBlock = nil
		c.mu.Unlock()
		if h != nil {
			h(nil, m)
		}

	default:
		slog.Default().Debug("channel: unhandled message", slog.String("cmd", msg.Command()))
	}
}

// OnSend implements MessageHandlerI. The core does not react to its own
// outbound sends, so this is a no-op.
func (c *Channel) OnSend(wire.Message, PeerI) {}
