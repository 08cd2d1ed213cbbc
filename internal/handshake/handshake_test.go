package handshake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSetter struct {
	height int32
}

func (r *recordingSetter) SetStartHeight(height int32) { r.height = height }

func TestFabricLayer_FansOutToAllChannels(t *testing.T) {
	a, b := &recordingSetter{}, &recordingSetter{}
	layer := NewFabricLayer(func() []HeightSetter { return []HeightSetter{a, b} })

	err := layer.SetStartHeight(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, int32(42), a.height)
	assert.Equal(t, int32(42), b.height)
	assert.Equal(t, int32(42), layer.Height())
}
