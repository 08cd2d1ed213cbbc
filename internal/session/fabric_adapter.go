package session

import (
	"github.com/bitcoin-sv/node/internal/p2p"
)

// FabricAdapter wraps a *p2p.ChannelFabric to satisfy Fabric, converting its
// concrete *p2p.Channel delivery into the dispatcher's narrower Channel
// interface.
type FabricAdapter struct {
	*p2p.ChannelFabric
}

// SubscribeNewChannel adapts the wrapped fabric's concrete *p2p.Channel
// delivery to the Channel interface.
func (f FabricAdapter) SubscribeNewChannel(handler func(err error, ch Channel) bool) {
	f.ChannelFabric.SubscribeNewChannel(func(err error, ch *p2p.Channel) bool {
		return handler(err, ch)
	})
}

var _ Fabric = FabricAdapter{}
