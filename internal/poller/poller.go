// Package poller implements the block poller referenced only by name in
// the session dispatcher ("ask the poller to query and monitor the new
// channel"): it listens for hashblock notifications from a local trusted
// node over ZMQ and hands each announced hash to a caller-supplied handler.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-zeromq/zmq4"
)

const hashblockTopic = "hashblock"

// NewBlockHandler receives the hash (hex-encoded, as ZMQ delivers it) of
// every new block the trusted node announces.
type NewBlockHandler func(blockHashHex string)

// Poller subscribes to a node's ZMQ hashblock feed and invokes a handler per
// announcement. Query and Monitor, named after the session dispatcher's two
// verbs for a newly joined channel, only log the request: there is nothing
// channel-specific about a ZMQ feed shared by the whole node, and the
// subscription started by Start already covers every channel.
type Poller struct {
	address     string
	logger      *slog.Logger
	refreshRate time.Duration
	onBlock     NewBlockHandler
}

// New builds a Poller against a local node's ZMQ endpoint, e.g.
// zmq://127.0.0.1:28332.
func New(logger *slog.Logger, zmqURL *url.URL, onBlock NewBlockHandler) *Poller {
	return &Poller{
		address:     fmt.Sprintf("tcp://%s:%s", zmqURL.Hostname(), zmqURL.Port()),
		logger:      logger.With(slog.String("module", "poller")),
		refreshRate: 10 * time.Second,
		onBlock:     onBlock,
	}
}

// Start dials the ZMQ endpoint and runs the receive loop until ctx is
// cancelled, reconnecting on failure.
func (p *Poller) Start(ctx context.Context) {
	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		sock := zmq4.NewSub(ctx, zmq4.WithID(zmq4.SocketIdentity("poller")))
		if err := sock.Dial(p.address); err != nil {
			p.logger.Error("poller: dial failed", slog.String("address", p.address), slog.String("err", err.Error()))
			time.Sleep(p.refreshRate)
			continue
		}

		if err := sock.SetOption(zmq4.OptionSubscribe, hashblockTopic); err != nil {
			p.logger.Error("poller: subscribe failed", slog.String("err", err.Error()))
			_ = sock.Close()
			time.Sleep(p.refreshRate)
			continue
		}

		p.logger.Info("poller: subscribed", slog.String("address", p.address), slog.String("topic", hashblockTopic))
		p.receiveLoop(ctx, sock)
		_ = sock.Close()
	}
}

func (p *Poller) receiveLoop(ctx context.Context, sock zmq4.Socket) {
	for {
		msg, err := sock.Recv()
		if err != nil {
			p.logger.Warn("poller: recv failed, reconnecting", slog.String("err", err.Error()))
			return
		}
		if ctx.Err() != nil {
			return
		}
		if len(msg.Frames) < 2 {
			continue
		}
		if string(msg.Frames[0]) != hashblockTopic {
			continue
		}
		p.onBlock(fmt.Sprintf("%x", msg.Frames[1]))
	}
}

// Query asks the poller to check for new blocks on ch's behalf. The ZMQ
// feed is already continuous and shared across every channel, so this is a
// logging hook rather than a distinct action.
func (p *Poller) Query(channelAuthority string) {
	p.logger.Debug("poller: query requested", slog.String("channel", channelAuthority))
}

// Monitor asks the poller to keep watching on ch's behalf; same rationale as
// Query.
func (p *Poller) Monitor(channelAuthority string) {
	p.logger.Debug("poller: monitor requested", slog.String("channel", channelAuthority))
}
