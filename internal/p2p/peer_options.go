package p2p

import (
	"github.com/libsv/go-p2p/wire"
)

// PeerOptions configures a Peer at construction time. A header-sync node
// dials few, long-lived peers rather than relaying to many, so only the
// options that connection actually needs are kept: the wire message size
// ceiling (HEADERS batches are bounded, unlike block messages), a
// self-identifying user agent, and the advertised service bits.
type PeerOptions func(p *Peer)

func WithMaximumMessageSize(maximumMessageSize int64) PeerOptions {
	return func(p *Peer) {
		p.maxMsgSize = maximumMessageSize
	}
}

func WithUserAgent(userAgentName string, userAgentVersion string) PeerOptions {
	return func(p *Peer) {
		p.userAgentName = &userAgentName
		p.userAgentVersion = &userAgentVersion
	}
}

func WithServiceFlag(flag wire.ServiceFlag) PeerOptions {
	return func(p *Peer) {
		p.servicesFlag = flag
	}
}
