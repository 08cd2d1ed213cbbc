// Package handshake exposes the wire handshake's start-height field as a
// standing interface the session dispatcher can push into on every
// reorganization.
package handshake

import "context"

// Layer is the handshake layer's consumed interface: it sets the height a
// peer's next VERSION message should advertise.
type Layer interface {
	SetStartHeight(ctx context.Context, height int32) error
}
