package p2p

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/libsv/go-p2p/chaincfg/chainhash"
	"github.com/libsv/go-p2p/wire"
)

// ErrFabricStopped is returned by Broadcast and AddPeer after Stop.
var ErrFabricStopped = errors.New("channel fabric stopped")

// ChannelFabric is the "network fabric" the session dispatcher drives: it
// owns the peer connections (via an embedded PeerManager), dials the
// configured addresses into Channels, and exposes the single-shot
// subscribe_channel delivery the spec's Peer Protocol Layer requires.
// Grounded on PeerManager's connection bookkeeping plus NetworkMessanger's
// broadcast-to-a-subset-of-peers fan-out.
type ChannelFabric struct {
	logger    *slog.Logger
	network   wire.BitcoinNet
	peerOpts  []PeerOptions
	manager   *PeerManager
	messenger *NetworkMessanger

	mu       sync.Mutex
	newChan  func(err error, ch *Channel) bool
	stopped  bool
}

// NewChannelFabric constructs a fabric for network, with peerOpts applied to
// every Channel it dials.
func NewChannelFabric(logger *slog.Logger, network wire.BitcoinNet, peerOpts ...PeerOptions) *ChannelFabric {
	pm := NewPeerManager(logger, network, WithRestartUnhealthyPeers())
	return &ChannelFabric{
		logger:    logger,
		network:   network,
		peerOpts:  peerOpts,
		manager:   pm,
		messenger: NewHerald(pm),
	}
}

// Start is a no-op placeholder for lifecycle symmetry with the spec's
// start(cb(err)) - dialing happens per-address via AddPeer, since the
// fabric has no fixed peer set of its own to bring up.
func (f *ChannelFabric) Start() error { return nil }

// Stop shuts down every connected channel and rejects further AddPeer/
// Broadcast calls.
func (f *ChannelFabric) Stop() error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()

	f.manager.Shutdown()
	return nil
}

// SubscribeNewChannel installs a single-shot handler for the next
// successfully connected channel. Handlers wanting every new channel should
// wrap this call with p2p.Rearm.
func (f *ChannelFabric) SubscribeNewChannel(handler func(err error, ch *Channel) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newChan = handler
}

// AddPeer dials address, and on success registers the resulting Channel
// with the underlying PeerManager and fires (and clears) the pending
// new-channel subscription.
func (f *ChannelFabric) AddPeer(address string) (*Channel, error) {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return nil, ErrFabricStopped
	}
	f.mu.Unlock()

	ch := NewChannel(f.logger, address, f.network, f.peerOpts...)
	if !ch.Connect() {
		return nil, errors.New("failed to connect to " + address)
	}

	if err := f.manager.AddPeer(ch); err != nil {
		ch.Shutdown()
		return nil, err
	}

	f.mu.Lock()
	handler := f.newChan
	f.newChan = nil
	f.mu.Unlock()

	if handler != nil {
		handler(nil, ch)
	}

	return ch, nil
}

// Broadcast announces block inventory (the only broadcast the session
// dispatcher issues - reorganization fan-out) to a subset of connected
// peers: each hash goes out as its own single-entry inv message, in the
// order given. It returns how many peers the last announcement reached.
func (f *ChannelFabric) Broadcast(hashes []*chainhash.Hash) (int, error) {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return 0, ErrFabricStopped
	}
	f.mu.Unlock()

	reached := 0
	for _, h := range hashes {
		peers := f.messenger.AnnounceBlock(h, nil)
		reached = len(peers)
	}
	return reached, nil
}

// Channels returns every channel the fabric currently manages.
func (f *ChannelFabric) Channels() []*Channel {
	peers := f.manager.GetPeers()
	out := make([]*Channel, 0, len(peers))
	for _, p := range peers {
		if ch, ok := p.(*Channel); ok {
			out = append(out, ch)
		}
	}
	return out
}
