package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthCheck_ReportsConnectedChannelCount(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	d.stats = NewMetrics()

	d.newChannel(nil, &fakeChannel{authority: "a:1"})
	d.newChannel(nil, &fakeChannel{authority: "b:1"})

	report := d.HealthCheck()
	assert.Equal(t, 2, report.ConnectedChannels)
}

func TestHealthCheck_SinceLastMergeZeroWithoutObservation(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	d.stats = NewMetrics()

	report := d.HealthCheck()
	assert.Equal(t, time.Duration(0), report.SinceLastMerge)
}
