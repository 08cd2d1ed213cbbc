package headersync

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/libsv/go-p2p/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitcoin-sv/node/internal/errs"
)

type fakeChannel struct {
	mu        sync.Mutex
	stopped   bool
	stopErr   error
	sent      []wire.Message
	headersFn func(err error, msg *wire.MsgHeaders) bool
}

func (f *fakeChannel) Send(msg wire.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChannel) SubscribeHeaders(handler func(err error, msg *wire.MsgHeaders) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headersFn = handler
}

func (f *fakeChannel) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func (f *fakeChannel) Stop(reason error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	f.stopErr = reason
}

func (f *fakeChannel) Authority() string { return "fake:8333" }

func (f *fakeChannel) deliver(headers []wire.BlockHeader) bool {
	f.mu.Lock()
	fn := f.headersFn
	f.mu.Unlock()

	msg := wire.NewMsgHeaders()
	for i := range headers {
		_ = msg.AddBlockHeader(&headers[i])
	}
	return fn(nil, msg)
}

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProtocol_CleanSync(t *testing.T) {
	first := hashOf(0x01)
	headers, stop := chainOf(first, 3)
	tbl := New(0, first, stop, 3)

	ch := &fakeChannel{}
	p := NewProtocol(noopLogger(), ch, tbl, 0, time.Hour, nil)

	var result Disposition
	var calls int32
	done := make(chan struct{})
	p.Start(func(d Disposition) {
		atomic.AddInt32(&calls, 1)
		result = d
		close(done)
	})

	resubscribe := ch.deliver(headers)
	<-done

	assert.False(t, resubscribe)
	assert.NoError(t, result)
	assert.True(t, tbl.Complete())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, ch.Stopped())
}

func TestProtocol_NonLinkingBatch(t *testing.T) {
	first := hashOf(0x01)
	_, stop := chainOf(first, 3)
	tbl := New(0, first, stop, 3)

	ch := &fakeChannel{}
	p := NewProtocol(noopLogger(), ch, tbl, 0, time.Hour, nil)

	var result Disposition
	done := make(chan struct{})
	p.Start(func(d Disposition) { result = d; close(done) })

	bad := headerLinking(hashOf(0xDE), 1)
	ch.deliver([]wire.BlockHeader{bad})
	<-done

	require.ErrorIs(t, result, errs.ErrInvalidPreviousBlock)
	assert.Empty(t, tbl.Snapshot())
}

func TestProtocol_ExhaustedPeerMoreToGo(t *testing.T) {
	first := hashOf(0x01)
	headers, _ := chainOf(first, 500)
	tbl := New(0, first, hashOf(0xFF), 5000)

	ch := &fakeChannel{}
	p := NewProtocol(noopLogger(), ch, tbl, 0, time.Hour, nil)

	var result Disposition
	done := make(chan struct{})
	p.Start(func(d Disposition) { result = d; close(done) })

	ch.deliver(headers)
	<-done

	require.ErrorIs(t, result, errs.ErrOperationFailed)
	assert.False(t, tbl.Complete())
	assert.Equal(t, int64(499), tbl.PreviousHeight())
}

func TestProtocol_SlowPeerTimesOut(t *testing.T) {
	first := hashOf(0x01)
	_, stop := chainOf(first, 3)
	tbl := New(0, first, stop, 3)

	ch := &fakeChannel{}
	p := NewProtocol(noopLogger(), ch, tbl, 10, 10*time.Millisecond, nil)

	var result Disposition
	done := make(chan struct{})
	p.Start(func(d Disposition) { result = d; close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rate-monitor failure")
	}

	require.ErrorIs(t, result, errs.ErrChannelTimeout)
}

func TestProtocol_HandlerInvokedExactlyOnce(t *testing.T) {
	first := hashOf(0x01)
	_, stop := chainOf(first, 3)
	tbl := New(0, first, stop, 3)

	ch := &fakeChannel{}
	p := NewProtocol(noopLogger(), ch, tbl, 0, time.Hour, nil)

	var calls int32
	done := make(chan struct{})
	p.Start(func(d Disposition) {
		atomic.AddInt32(&calls, 1)
		close(done)
	})

	// Simulate two racing completions: a bad batch followed by a late direct
	// completion of the barrier.
	bad := headerLinking(hashOf(0xDE), 1)
	ch.deliver([]wire.BlockHeader{bad})
	p.barrier.Complete(errors.New("late racer, must be dropped"))
	<-done

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
