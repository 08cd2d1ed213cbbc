package poller

import (
	"io"
	"log/slog"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_BuildsTCPAddressFromURL(t *testing.T) {
	u, err := url.Parse("zmq://127.0.0.1:28332")
	require.NoError(t, err)

	var got string
	p := New(slog.New(slog.NewTextHandler(io.Discard, nil)), u, func(hash string) { got = hash })

	assert.Equal(t, "tcp://127.0.0.1:28332", p.address)
	assert.Empty(t, got)
}

func TestQueryAndMonitor_DoNotPanicWithoutAConnection(t *testing.T) {
	u, _ := url.Parse("zmq://127.0.0.1:28332")
	p := New(slog.New(slog.NewTextHandler(io.Discard, nil)), u, func(string) {})

	p.Query("peer:18333")
	p.Monitor("peer:18333")
}
