package p2p

import (
	"github.com/libsv/go-p2p/chaincfg/chainhash"
	"github.com/libsv/go-p2p/wire"
)

// NetworkMessanger is the fabric's broadcast collaborator: the dispatcher's
// reorganization handler is the only thing this node announces to the
// network, so unlike a relay node's messenger this one only needs to
// announce blocks, never transactions.
type NetworkMessanger struct {
	pm *PeerManager
}

func NewHerald(m *PeerManager) *NetworkMessanger {
	return &NetworkMessanger{pm: m}
}

// AnnounceBlock sends an INV message for blockHash to the provided peers,
// or to a selected subset of connected peers if peers is nil. It returns
// the peers the block was actually announced to.
func (h *NetworkMessanger) AnnounceBlock(blockHash *chainhash.Hash, peers []PeerI) []PeerI {
	invMsg := wire.NewMsgInvSizeHint(1)
	iv := wire.NewInvVect(wire.InvTypeBlock, blockHash)
	_ = invMsg.AddInvVect(iv)

	if len(peers) == 0 {
		peers = h.pm.GetPeersForAnnouncement()
	}

	for _, peer := range peers {
		peer.WriteMsg(invMsg)
	}

	return peers
}
