package p2p

// PeerManagerOptions configures a PeerManager at construction time.
type PeerManagerOptions func(p *PeerManager)

// WithRestartUnhealthyPeers enables the manager's automatic restart of any
// peer whose health monitor trips, which matters for a long-running sync
// session where a single dropped connection shouldn't require operator
// intervention to recover.
func WithRestartUnhealthyPeers() PeerManagerOptions {
	return func(p *PeerManager) {
		p.restartUnhealthyPeers = true
	}
}
