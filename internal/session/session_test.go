package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/libsv/go-bt/v2"
	"github.com/libsv/go-p2p/chaincfg/chainhash"
	"github.com/libsv/go-p2p/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitcoin-sv/node/internal/chainstore"
	"github.com/bitcoin-sv/node/internal/errs"
)

type fakeChannel struct {
	mu        sync.Mutex
	authority string
	sent      []wire.Message
	stopped   bool

	invSubscribed       bool
	getBlocksSubscribed bool
}

func (c *fakeChannel) Send(msg wire.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}
func (c *fakeChannel) SubscribeInventory(func(error, *wire.MsgInv) bool)       { c.invSubscribed = true }
func (c *fakeChannel) SubscribeGetBlocks(func(error, *wire.MsgGetBlocks) bool) { c.getBlocksSubscribed = true }
func (c *fakeChannel) Authority() string                                      { return c.authority }
func (c *fakeChannel) Stopped() bool                                           { return c.stopped }

func (c *fakeChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type fakeFabric struct {
	broadcasts [][]*chainhash.Hash
}

func (f *fakeFabric) Start() error { return nil }
func (f *fakeFabric) Stop() error  { return nil }
func (f *fakeFabric) SubscribeNewChannel(func(error, Channel) bool) {}
func (f *fakeFabric) Broadcast(hashes []*chainhash.Hash) (int, error) {
	f.broadcasts = append(f.broadcasts, hashes)
	return len(hashes), nil
}

type fakeHandshake struct {
	mu      sync.Mutex
	heights []int32
}

func (h *fakeHandshake) SetStartHeight(_ context.Context, height int32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.heights = append(h.heights, height)
	return nil
}

func (h *fakeHandshake) last() int32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.heights) == 0 {
		return -1
	}
	return h.heights[len(h.heights)-1]
}

type fakePoller struct{}

func (fakePoller) Query(string)   {}
func (fakePoller) Monitor(string) {}

type recordingPoller struct {
	queried   []string
	monitored []string
}

func (p *recordingPoller) Query(authority string)   { p.queried = append(p.queried, authority) }
func (p *recordingPoller) Monitor(authority string) { p.monitored = append(p.monitored, authority) }

// fakePool simulates a mempool under concurrent inventory from two peers:
// Exists returns existsValue to the first caller and true to every later
// one, as if the first check had inserted the hash, and counts every call
// it receives.
type fakePool struct {
	mu          sync.Mutex
	existsCalls int
	existsValue bool
}

func (p *fakePool) Exists(context.Context, chainhash.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.existsCalls++
	v := p.existsValue
	p.existsValue = true // the first caller to check "inserts" it
	return v
}

func (p *fakePool) Store(context.Context, *bt.Tx, func(error), func(error, []int)) {}

func newTestDispatcher() (*Dispatcher, *fakeFabric, *fakeHandshake, *fakePool) {
	fabric := &fakeFabric{}
	hs := &fakeHandshake{}
	pool := &fakePool{}
	store := chainstore.NewMemStore()
	d := NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)), fabric, store, pool, hs, fakePoller{}, 8, nil)
	return d, fabric, hs, pool
}

func TestDispatcher_NewChannelPanicsOnNilHandle(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	assert.Panics(t, func() {
		d.newChannel(nil, nil)
	})
}

func TestDispatcher_NewChannelWiresSubscriptionsAndPollsPeer(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	poller := &recordingPoller{}
	d.poller = poller
	ch := &fakeChannel{authority: "peer:18333"}

	keepGoing := d.newChannel(nil, ch)
	assert.True(t, keepGoing)
	assert.True(t, ch.invSubscribed)
	assert.True(t, ch.getBlocksSubscribed)
	assert.Equal(t, []string{"peer:18333"}, poller.queried)
	assert.Equal(t, []string{"peer:18333"}, poller.monitored)
}

// a reorganization pushes the new height into the handshake layer and
// broadcasts the new blocks.
func TestDispatcher_ReorganizationPushesHeightAndBroadcasts(t *testing.T) {
	d, fabric, hs, _ := newTestDispatcher()

	event := chainstore.ReorgEvent{
		ForkPoint: 100,
		NewBlocks: []chainstore.BlockRef{{Height: 101}, {Height: 102}},
	}

	keepGoing := d.setStartHeight(nil, event)
	assert.True(t, keepGoing)
	assert.Equal(t, int32(102), hs.last())
	require.Len(t, fabric.broadcasts, 1)
	assert.Len(t, fabric.broadcasts[0], 2)
}

func TestDispatcher_ReorganizationStopsResubscribingOnServiceStopped(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	keepGoing := d.setStartHeight(errs.ErrServiceStopped, chainstore.ReorgEvent{})
	assert.False(t, keepGoing)
}

// two peers announce the same tx hash concurrently; the strand serializes
// the existence check so at most one get_data ends up sent, except in the
// accepted race where the mempool itself answers false twice.
func TestDispatcher_DuplicateTxInventorySerializedOnStrand(t *testing.T) {
	d, _, _, pool := newTestDispatcher()
	chA := &fakeChannel{authority: "peerA:18333"}
	chB := &fakeChannel{authority: "peerB:18333"}

	hash := chainhash.Hash{0x01}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); d.strand.post(func() { d.newTxInventory(hash, chA) }) }()
	go func() { defer wg.Done(); d.strand.post(func() { d.newTxInventory(hash, chB) }) }()
	wg.Wait()

	// give the strand goroutine time to drain both posted tasks.
	require.Eventually(t, func() bool {
		pool.mu.Lock()
		defer pool.mu.Unlock()
		return pool.existsCalls == 2
	}, time.Second, time.Millisecond)

	sent := chA.sentCount() + chB.sentCount()
	assert.Equal(t, 1, sent, "strand serialization means only the first Exists() check should see false")
}
