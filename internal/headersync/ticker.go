package headersync

import "time"

// rateTicker is the Timer/Rate Monitor: a periodic scheduler armed per
// protocol instance with interval T, cancelled cooperatively once the owning
// instance reaches a terminal state. Grounded on the time.NewTicker-driven
// loop used throughout the peer handler's fill-gaps scheduling.
type rateTicker struct {
	t    *time.Ticker
	stop chan struct{}
}

func armTicker(interval time.Duration, onTick func()) *rateTicker {
	rt := &rateTicker{
		t:    time.NewTicker(interval),
		stop: make(chan struct{}),
	}

	go func() {
		defer rt.t.Stop()
		for {
			select {
			case <-rt.stop:
				return
			case <-rt.t.C:
				onTick()
			}
		}
	}()

	return rt
}

// disarm cancels the ticker. Any tick already in flight when disarm is
// called may still invoke onTick once; callers must gate that with their own
// stopped() check, exactly as the stateAwaitingHeaders guard does.
func (rt *rateTicker) disarm() {
	select {
	case <-rt.stop:
		// already disarmed
	default:
		close(rt.stop)
	}
}
