package p2p

// Rearm wraps a single-shot subscribe function so that a handler returning
// true triggers automatic re-subscription, and a handler returning false
// lets the subscription lapse. This is the Go equivalent of the
// SUBSCRIBE2/SUBSCRIBE3 macro convention the header-sync protocol and
// session dispatcher both rely on: every stream they consume is delivered
// single-shot by the channel, and re-subscription is an explicit, separate
// act rather than something the channel does on the caller's behalf.
func Rearm[T any](subscribe func(handler func(error, T) bool), handler func(error, T) bool) {
	var wrapped func(error, T) bool
	wrapped = func(err error, msg T) bool {
		keepGoing := handler(err, msg)
		if keepGoing {
			subscribe(wrapped)
		}
		return keepGoing
	}
	subscribe(wrapped)
}
