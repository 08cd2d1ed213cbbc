package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_DefaultNodeConfig(t *testing.T) {
	cfg := getDefaultNodeConfig()

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "memory", cfg.ChainStore.Mode)
	assert.Equal(t, uint64(1), cfg.Mempool.MinimumFeeSatoshis)
	assert.True(t, cfg.Mempool.RejectConflicts)
	assert.Equal(t, 5, cfg.Sync.SyncTimeoutSeconds)
	assert.Equal(t, 1, cfg.Sync.BlockPollSeconds)
}
