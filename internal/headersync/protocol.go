package headersync

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/libsv/go-p2p/wire"

	"github.com/bitcoin-sv/node/internal/errs"
	"github.com/bitcoin-sv/node/internal/p2p"
	"github.com/bitcoin-sv/node/internal/session"
)

// MaxHeadersPerMessage is the wire protocol's batch size ceiling; a headers
// reply shorter than this without completing the table means the peer has
// nothing more to offer.
const MaxHeadersPerMessage = 2000

// DefaultTickInterval is the rate-measurement interval T from the spec.
const DefaultTickInterval = 5 * time.Second

// Channel is the subset of a connected peer session the protocol needs: a
// send capability, a single-shot headers subscription, and a stop gate. It
// is satisfied by *p2p.Channel.
type Channel interface {
	Send(msg wire.Message) error
	SubscribeHeaders(handler func(err error, msg *wire.MsgHeaders) bool)
	Stopped() bool
	Stop(reason error)
	Authority() string
}

// state is the protocol's internal state machine position.
type state uint8

const (
	stateIdle state = iota
	stateAwaitingHeaders
	stateComplete
	stateFailed
)

// Disposition is what the protocol's completion handler receives: nil for
// success, or one of the errs sentinels otherwise.
type Disposition = error

// Protocol drives a single channel through repeated get_headers/headers
// round trips against a shared Table until it completes, the peer proves
// exhausted, or the rate monitor or channel itself fails it. One instance is
// bound to exactly one channel for its whole lifetime; a replaced peer gets
// a fresh instance over the same Table.
type Protocol struct {
	channel      Channel
	table        *Table
	minimumRate  float64
	tickInterval time.Duration

	startSize    int64
	elapsedNanos int64 // atomic, saturating; total elapsed time in nanoseconds

	state   atomic.Int32
	barrier *session.Once[Disposition]

	logger *slog.Logger
	stats  *Metrics

	ticker *rateTicker
}

// NewProtocol constructs a protocol instance bound to channel and table.
// minimumRate is in headers/second; tickInterval overrides the default T
// when non-zero (tests use this to avoid real 5s waits).
func NewProtocol(logger *slog.Logger, channel Channel, table *Table, minimumRate float64, tickInterval time.Duration, stats *Metrics) *Protocol {
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}

	startSize := table.PreviousHeight() - table.FirstHeight()

	return &Protocol{
		channel:      channel,
		table:        table,
		minimumRate:  minimumRate,
		tickInterval: tickInterval,
		startSize:    startSize,
		logger:       logger.With(slog.String("peer", channel.Authority())),
		stats:        stats,
	}
}

// Start installs the completion barrier, arms the periodic rate-check
// ticker, subscribes the headers stream, and sends the initial get_headers.
// handler is invoked exactly once, from whichever goroutine wins the race.
func (p *Protocol) Start(handler func(Disposition)) {
	p.barrier = session.NewOnce(func(d Disposition) {
		p.finish(d, handler)
	})

	p.state.Store(int32(stateAwaitingHeaders))

	p.ticker = armTicker(p.tickInterval, p.handleTick)

	p2p.Rearm(p.channel.SubscribeHeaders, p.handleReceiveHeaders)

	if err := p.sendGetHeaders(); err != nil {
		p.barrier.Complete(errs.ErrSendFailed)
	}
}

func (p *Protocol) sendGetHeaders() error {
	locator := p.table.PreviousHash()
	stop := p.table.StopHash()

	msg := wire.NewMsgGetHeaders()
	if err := msg.AddBlockLocatorHash(&locator); err != nil {
		return err
	}
	msg.HashStop = stop

	return p.channel.Send(msg)
}

// handleReceiveHeaders is the headers-subscription handler. Its boolean
// return is the re-subscribe signal demanded by the channel's single-shot
// delivery contract: true keeps the subscription alive, false lets it lapse.
func (p *Protocol) handleReceiveHeaders(err error, msg *wire.MsgHeaders) bool {
	if p.channel.Stopped() {
		return false
	}

	if err != nil {
		p.transitionFailed(err)
		return false
	}

	if len(msg.Headers) == 0 {
		p.transitionFailed(errs.ErrOperationFailed)
		return false
	}

	batch := make([]wire.BlockHeader, 0, len(msg.Headers))
	for _, h := range msg.Headers {
		batch = append(batch, *h)
	}

	if !p.table.Merge(batch) {
		p.transitionFailed(errs.ErrInvalidPreviousBlock)
		return false
	}

	if p.table.Complete() {
		p.transitionComplete()
		return false
	}

	if len(batch) < MaxHeadersPerMessage {
		p.transitionFailed(errs.ErrOperationFailed)
		return false
	}

	if err := p.sendGetHeaders(); err != nil {
		p.transitionFailed(errs.ErrSendFailed)
		return false
	}

	return true
}

// handleTick implements handle_event from the original state machine: a
// normal tick advances elapsedSeconds and checks the lifetime-average rate;
// channel death or stop is reported as-is.
func (p *Protocol) handleTick() {
	if state(p.state.Load()) != stateAwaitingHeaders {
		return
	}

	if p.channel.Stopped() {
		p.transitionFailed(errs.ErrChannelStopped)
		return
	}

	elapsedNanos := atomic.AddInt64(&p.elapsedNanos, int64(p.tickInterval))
	if elapsedNanos < 0 {
		// saturate rather than wrap on overflow - see spec's open question
		// about elapsed_seconds overflow.
		elapsedNanos = int64(^uint64(0) >> 1)
		atomic.StoreInt64(&p.elapsedNanos, elapsedNanos)
	}
	elapsedSeconds := time.Duration(elapsedNanos).Seconds()

	progress := p.table.PreviousHeight() - p.table.FirstHeight() - p.startSize
	rate := float64(progress) / elapsedSeconds

	if p.stats != nil {
		p.stats.SetRate(rate)
	}

	if rate < p.minimumRate {
		p.transitionFailed(errs.ErrChannelTimeout)
	}
}

func (p *Protocol) transitionComplete() {
	p.state.Store(int32(stateComplete))
	p.barrier.Complete(nil)
}

func (p *Protocol) transitionFailed(reason error) {
	p.state.Store(int32(stateFailed))
	p.barrier.Complete(reason)
}

// finish runs once, on whichever goroutine the barrier admits: it stops the
// ticker, stops the channel, logs the disposition, and calls the caller's
// handler.
func (p *Protocol) finish(d Disposition, handler func(Disposition)) {
	if p.ticker != nil {
		p.ticker.disarm()
	}

	reason := d
	if reason == nil {
		reason = errs.ErrChannelStopped
	}
	p.channel.Stop(reason)

	if p.stats != nil {
		p.stats.ObserveDisposition(d)
	}

	first, last := p.table.Heights()
	if d == nil {
		p.logger.Info("header sync complete",
			slog.Int64("from_height", first),
			slog.Int64("to_height", last))
	} else {
		p.logger.Warn("header sync failed",
			slog.String("err", d.Error()),
			slog.Int64("from_height", first),
			slog.Int64("to_height", last))
	}

	handler(d)
}
