// Package config defines the node's typed configuration surface: a single
// struct decoded by viper, with every leaf tagged for both JSON and
// mapstructure so the same struct serves as a defaults source and a decode
// target.
package config

import "time"

// NodeConfig is the top-level configuration struct Load returns.
type NodeConfig struct {
	LogLevel           string            `json:"logLevel" mapstructure:"logLevel"`
	LogFormat          string            `json:"logFormat" mapstructure:"logFormat"`
	ProfilerAddr       string            `json:"profilerAddr" mapstructure:"profilerAddr"`
	PrometheusEndpoint string            `json:"prometheusEndpoint" mapstructure:"prometheusEndpoint"`
	PrometheusAddr     string            `json:"prometheusAddr" mapstructure:"prometheusAddr"`
	Network            string            `json:"network" mapstructure:"network"`
	Tracing            *TracingConfig    `json:"tracing" mapstructure:"tracing"`
	Sync               *SyncConfig       `json:"sync" mapstructure:"sync"`
	Mempool            *MempoolConfig    `json:"mempool" mapstructure:"mempool"`
	ChainStore         *ChainStoreConfig `json:"chainStore" mapstructure:"chainStore"`
	ZMQ                *ZMQConfig        `json:"zmq" mapstructure:"zmq"`
	Health             *HealthConfig     `json:"health" mapstructure:"health"`
}

// TracingConfig carries the OpenTelemetry exporter dial address and any
// static span attributes to attach to every span.
type TracingConfig struct {
	DialAddr   string            `json:"dialAddr" mapstructure:"dialAddr"`
	Attributes map[string]string `json:"attributes" mapstructure:"attributes"`
}

// PeerConfig names one sync peer by address and its P2P/ZMQ ports.
type PeerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	P2P  int    `json:"p2p" mapstructure:"p2p"`
	ZMQ  int    `json:"zmq" mapstructure:"zmq"`
}

// SyncConfig is the header-sync configuration surface.
type SyncConfig struct {
	// Peers lists the addresses cmd/node dials at start-up.
	Peers []PeerConfig `json:"peers" mapstructure:"peers"`

	// SyncPeers is decoded from configuration but no component reads it:
	// cmd/node binds a header-sync protocol to every dialed entry of Peers,
	// with no cap on the number of concurrent sync channels.
	SyncPeers int `json:"syncPeers" mapstructure:"syncPeers"`

	// SyncTimeoutSeconds is the header-sync protocol's rate-monitor tick
	// interval T.
	SyncTimeoutSeconds int `json:"syncTimeoutSeconds" mapstructure:"syncTimeoutSeconds"`

	// BlockPollSeconds is decoded but not read: the poller follows its ZMQ
	// feed and has no polling cadence of its own.
	BlockPollSeconds int `json:"blockPollSeconds" mapstructure:"blockPollSeconds"`

	// RelayTransactions is decoded but not read: the VERSION message a peer
	// sends is built without consulting it.
	RelayTransactions bool `json:"relayTransactions" mapstructure:"relayTransactions"`

	// RefreshTransactions is decoded but not read: a new channel triggers no
	// re-request of transaction inventory.
	RefreshTransactions bool `json:"refreshTransactions" mapstructure:"refreshTransactions"`

	// FirstHeight, FirstHash and StopHash anchor the header slot table a
	// freshly dialed channel syncs against; TableCapacity bounds its slots.
	// The header-sync protocol itself is agnostic to how these are obtained,
	// so the node takes them from configuration rather than discovering them
	// itself.
	FirstHeight           int64   `json:"firstHeight" mapstructure:"firstHeight"`
	FirstHash             string  `json:"firstHash" mapstructure:"firstHash"`
	StopHash              string  `json:"stopHash" mapstructure:"stopHash"`
	TableCapacity         uint32  `json:"tableCapacity" mapstructure:"tableCapacity"`
	MinimumHeadersPerSecond float64 `json:"minimumHeadersPerSecond" mapstructure:"minimumHeadersPerSecond"`
}

// MempoolConfig carries the mempool admission policy.
type MempoolConfig struct {
	MinimumFeeSatoshis uint64 `json:"minimumFeeSatoshis" mapstructure:"minimumFeeSatoshis"`
	RejectConflicts    bool   `json:"rejectConflicts" mapstructure:"rejectConflicts"`
}

// ChainStoreConfig selects and configures the chainstore.Store
// implementation.
type ChainStoreConfig struct {
	Mode     string          `json:"mode" mapstructure:"mode"` // "memory" or "postgres"
	Postgres *PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// PostgresConfig is the chain store's connection parameters.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Name     string `json:"name" mapstructure:"name"`
	User     string `json:"user" mapstructure:"user"`
	Password string `json:"password" mapstructure:"password"`
	SslMode  string `json:"sslMode" mapstructure:"sslMode"`
}

// ZMQConfig is the block poller's trusted-node ZMQ endpoint.
type ZMQConfig struct {
	URL string `json:"url" mapstructure:"url"`
}

// HealthConfig exposes the dispatcher's health probe.
type HealthConfig struct {
	ListenAddr                string        `json:"listenAddr" mapstructure:"listenAddr"`
	MinimumHealthyConnections int           `json:"minimumHealthyConnections" mapstructure:"minimumHealthyConnections"`
	StaleMergeThreshold       time.Duration `json:"staleMergeThreshold" mapstructure:"staleMergeThreshold"`
}
