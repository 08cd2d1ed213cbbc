package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrand_RunsPostedWorkInOrder(t *testing.T) {
	s := newStrand(4)
	defer s.stop()

	var order []int32
	var next atomic.Int32
	done := make(chan struct{})

	for i := 0; i < 3; i++ {
		i := i
		s.post(func() {
			order = append(order, int32(i))
			if next.Add(1) == 3 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for strand to drain")
	}

	assert.Equal(t, []int32{0, 1, 2}, order)
}

func TestStrand_StopDrainsQueuedWork(t *testing.T) {
	s := newStrand(4)

	var ran atomic.Bool
	s.post(func() { ran.Store(true) })
	s.stop()

	require.True(t, ran.Load())
}
