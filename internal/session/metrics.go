package session

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the session dispatcher's Prometheus collector: a gauge of
// channels wired into the dispatcher (incremented per new channel and never
// decremented when one stops) and the time of the most recent header merge,
// mirrored from internal/headersync's collector shape.
type Metrics struct {
	channels *prometheus.Desc
	channelCount atomic.Int64

	lastMergeUnixNano atomic.Int64
}

// NewMetrics builds a session Metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		channels: prometheus.NewDesc("node_session_connected_channels", "Number of channels currently wired into the session dispatcher", nil, nil),
	}
}

// IncChannels records a newly wired channel.
func (m *Metrics) IncChannels() {
	m.channelCount.Add(1)
}

// ObserveHeaderMerge records that a header batch merge just happened, for
// HealthCheck's SinceLastMerge.
func (m *Metrics) ObserveHeaderMerge(at time.Time) {
	m.lastMergeUnixNano.Store(at.UnixNano())
}

// SinceLastMerge returns the duration since the last recorded header merge,
// or zero if none has been recorded.
func (m *Metrics) SinceLastMerge() time.Duration {
	last := m.lastMergeUnixNano.Load()
	if last == 0 {
		return 0
	}
	return time.Since(time.Unix(0, last))
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) { ch <- m.channels }

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(m.channels, prometheus.GaugeValue, float64(m.channelCount.Load()))
}

var _ prometheus.Collector = (*Metrics)(nil)
