package chainstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_FetchLastHeightStartsAtGenesis(t *testing.T) {
	s := NewMemStore()
	h, err := s.FetchLastHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), h)
}

func TestMemStore_ReorganizeAdvancesHeightAndFiresHandler(t *testing.T) {
	s := NewMemStore()

	var got ReorgEvent
	fired := false
	s.SubscribeReorganize(func(err error, event ReorgEvent) bool {
		fired = true
		got = event
		return false
	})

	newBlocks := []BlockRef{{Height: 1}, {Height: 2}}
	s.Reorganize(0, newBlocks, nil)

	require.True(t, fired)
	assert.Equal(t, int64(0), got.ForkPoint)
	assert.Len(t, got.NewBlocks, 2)

	h, err := s.FetchLastHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), h)
}

func TestMemStore_SubscriptionIsSingleShot(t *testing.T) {
	s := NewMemStore()

	calls := 0
	s.SubscribeReorganize(func(err error, event ReorgEvent) bool {
		calls++
		return false
	})

	s.Reorganize(0, []BlockRef{{Height: 1}}, nil)
	// second reorg has nothing subscribed, so the handler must not fire again.
	s.Reorganize(1, []BlockRef{{Height: 2}}, nil)

	assert.Equal(t, 1, calls)
}
