package config

func getDefaultNodeConfig() *NodeConfig {
	return &NodeConfig{
		LogLevel:  "INFO",
		LogFormat: "tint",
		Network:   "mainnet",
		Sync:      getDefaultSyncConfig(),
		Mempool:   getDefaultMempoolConfig(),
		ChainStore: &ChainStoreConfig{
			Mode: "memory",
		},
		Health: &HealthConfig{
			ListenAddr:                ":9005",
			MinimumHealthyConnections: 1,
		},
	}
}

func getDefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		SyncPeers:               0,
		SyncTimeoutSeconds:      5,
		BlockPollSeconds:        1,
		RelayTransactions:       true,
		RefreshTransactions:     true,
		FirstHeight:             0,
		FirstHash:               "0000000000000000000000000000000000000000000000000000000000000000",
		TableCapacity:           2000,
		MinimumHeadersPerSecond: 1,
	}
}

func getDefaultMempoolConfig() *MempoolConfig {
	return &MempoolConfig{
		MinimumFeeSatoshis: 1,
		RejectConflicts:    true,
	}
}
