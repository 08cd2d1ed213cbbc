package headersync

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bitcoin-sv/node/internal/errs"
)

// Metrics is a prometheus.Collector tracking header-sync disposition counts
// and the current sync rate, in the shape of tracing.PeerHandlerCollector:
// a handful of const descriptors populated from live counters on Collect.
type Metrics struct {
	disposition *prometheus.Desc
	rate        *prometheus.Desc

	counts map[string]*counter
	rateGa *gauge
}

type counter struct{ v uint64 }
type gauge struct{ v float64 }

// NewMetrics builds an unregistered collector; callers Register it once per
// process. Its descriptors carry no per-peer label, so every protocol
// instance sharing it reports into the same series.
func NewMetrics() *Metrics {
	m := &Metrics{
		disposition: prometheus.NewDesc(
			"node_headersync_disposition_total",
			"Count of header-sync attempts by terminal disposition",
			[]string{"disposition"}, nil,
		),
		rate: prometheus.NewDesc(
			"node_headersync_rate_headers_per_second",
			"Lifetime-average header sync rate of the most recent tick",
			nil, nil,
		),
		counts: map[string]*counter{
			"success":                {},
			"invalid_previous_block": {},
			"operation_failed":       {},
			"channel_timeout":        {},
			"channel_stopped":        {},
			"send_failed":            {},
		},
		rateGa: &gauge{},
	}
	return m
}

// SetRate records the most recently computed rate for the gauge.
func (m *Metrics) SetRate(rate float64) {
	m.rateGa.v = rate
}

// ObserveDisposition increments the counter matching d (nil means success).
func (m *Metrics) ObserveDisposition(d error) {
	key := "success"
	switch {
	case d == nil:
		key = "success"
	case d == errs.ErrInvalidPreviousBlock:
		key = "invalid_previous_block"
	case d == errs.ErrOperationFailed:
		key = "operation_failed"
	case d == errs.ErrChannelTimeout:
		key = "channel_timeout"
	case d == errs.ErrChannelStopped:
		key = "channel_stopped"
	default:
		key = "send_failed"
	}
	if c, ok := m.counts[key]; ok {
		c.v++
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.disposition
	ch <- m.rate
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for label, c := range m.counts {
		ch <- prometheus.MustNewConstMetric(m.disposition, prometheus.CounterValue, float64(c.v), label)
	}
	ch <- prometheus.MustNewConstMetric(m.rate, prometheus.GaugeValue, m.rateGa.v)
}
