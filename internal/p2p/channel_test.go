package p2p

import (
	"testing"

	"github.com/libsv/go-p2p/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePeer is a hand-written stand-in for a moq-generated PeerI mock - the
// module has no code-generation step here, so tests drive Channel's
// dispatch logic directly against a trivial fake instead.
type fakePeer struct {
	connected   bool
	written     []wire.Message
	unhealthy   chan struct{}
	startHeight int32
}

func newFakePeer() *fakePeer {
	return &fakePeer{connected: true, unhealthy: make(chan struct{})}
}

func (f *fakePeer) Restart() bool                    { f.connected = true; return true }
func (f *fakePeer) Shutdown()                        { f.connected = false }
func (f *fakePeer) Connected() bool                   { return f.connected }
func (f *fakePeer) Connect() bool                     { f.connected = true; return true }
func (f *fakePeer) IsUnhealthyCh() <-chan struct{}    { return f.unhealthy }
func (f *fakePeer) WriteMsg(msg wire.Message)         { f.written = append(f.written, msg) }
func (f *fakePeer) Network() wire.BitcoinNet          { return wire.TestNet }
func (f *fakePeer) String() string                    { return "fake:18333" }
func (f *fakePeer) SetStartHeight(height int32)       { f.startHeight = height }

func newTestChannel() (*Channel, *fakePeer) {
	fp := newFakePeer()
	c := &Channel{peer: fp}
	return c, fp
}

func TestChannel_SendRejectsAfterStop(t *testing.T) {
	c, _ := newTestChannel()
	c.Stop(nil)

	err := c.Send(wire.NewMsgPing(1))
	require.ErrorIs(t, err, ErrChannelAlreadyStopped)
}

func TestChannel_HeadersDeliveryIsSingleShot(t *testing.T) {
	c, _ := newTestChannel()

	calls := 0
	c.SubscribeHeaders(func(err error, msg *wire.MsgHeaders) bool {
		calls++
		return false
	})

	c.OnReceive(wire.NewMsgHeaders(), c)
	c.OnReceive(wire.NewMsgHeaders(), c)

	assert.Equal(t, 1, calls)
}

func TestChannel_RearmKeepsDeliveryGoing(t *testing.T) {
	c, _ := newTestChannel()

	calls := 0
	Rearm(c.SubscribeHeaders, func(err error, msg *wire.MsgHeaders) bool {
		calls++
		return calls < 3
	})

	c.OnReceive(wire.NewMsgHeaders(), c)
	c.OnReceive(wire.NewMsgHeaders(), c)
	c.OnReceive(wire.NewMsgHeaders(), c)
	// fourth delivery has nothing registered since the handler returned
	// false on the third call.
	c.OnReceive(wire.NewMsgHeaders(), c)

	assert.Equal(t, 3, calls)
}

func TestChannel_StoppedReflectsPeerDisconnect(t *testing.T) {
	c, fp := newTestChannel()
	assert.False(t, c.Stopped())

	fp.connected = false
	assert.True(t, c.Stopped())
}
