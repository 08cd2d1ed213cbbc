package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load(t *testing.T) {
	t.Run("default load", func(t *testing.T) {
		expectedConfig := getDefaultNodeConfig()

		actualConfig, err := Load()
		require.NoError(t, err, "error loading config")

		assert.Equal(t, expectedConfig, actualConfig)
	})

	t.Run("partial file override", func(t *testing.T) {
		expectedConfig := getDefaultNodeConfig()

		actualConfig, err := Load("./test_files/")
		require.NoError(t, err, "error loading config")

		assert.Equal(t, expectedConfig.Mempool.MinimumFeeSatoshis, actualConfig.Mempool.MinimumFeeSatoshis)

		assert.Equal(t, "DEBUG", actualConfig.LogLevel)
		assert.Equal(t, "text", actualConfig.LogFormat)
		assert.Equal(t, "testnet", actualConfig.Network)
		assert.Equal(t, 18333, actualConfig.Sync.Peers[0].P2P)
		assert.Equal(t, 3, actualConfig.Sync.SyncPeers)
	})
}
