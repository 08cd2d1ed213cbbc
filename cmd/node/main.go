package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bitcoin-sv/node/config"
	"github.com/bitcoin-sv/node/internal/chainstore"
	"github.com/bitcoin-sv/node/internal/chainstore/postgres"
	"github.com/bitcoin-sv/node/internal/handshake"
	"github.com/bitcoin-sv/node/internal/headersync"
	"github.com/bitcoin-sv/node/internal/logger"
	"github.com/bitcoin-sv/node/internal/mempool"
	"github.com/bitcoin-sv/node/internal/p2p"
	"github.com/bitcoin-sv/node/internal/poller"
	"github.com/bitcoin-sv/node/internal/session"

	"github.com/libsv/go-p2p/chaincfg/chainhash"
)

// inventoryStrandDepth bounds the session dispatcher's tx-inventory dispatch
// queue; a peer that floods inventory faster than the mempool can drain it
// blocks on Send rather than growing this queue without limit.
const inventoryStrandDepth = 1024

const (
	// headerSyncMaxMessageSize bounds a single wire message a connected
	// peer may send; large enough for a full HEADERS batch plus inventory
	// traffic, far below a block-sized payload this node never requests.
	headerSyncMaxMessageSize = 4 * 1024 * 1024

	nodeUserAgentName    = "bsv-node"
	nodeUserAgentVersion = "0.1.0"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("failed to run node: %v", err)
	}

	os.Exit(0)
}

func run() error {
	configDir := parseFlags()

	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	nodeLogger, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("failed to get host name: %w", err)
	}
	nodeLogger = nodeLogger.With(slog.String("host", hostname))

	network, err := config.GetNetwork(cfg.Network)
	if err != nil {
		return fmt.Errorf("failed to resolve network: %w", err)
	}

	store, err := buildChainStore(cfg.ChainStore)
	if err != nil {
		return fmt.Errorf("failed to build chain store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("failed to start chain store: %w", err)
	}

	pool := mempool.NewInMemoryPool(mempool.PolicyConfig{
		RejectConflicts:    cfg.Mempool.RejectConflicts,
		MinimumFeeSatoshis: cfg.Mempool.MinimumFeeSatoshis,
	})

	fabric := p2p.NewChannelFabric(nodeLogger, network,
		p2p.WithServiceFlag(0),
		p2p.WithMaximumMessageSize(headerSyncMaxMessageSize),
		p2p.WithUserAgent(nodeUserAgentName, nodeUserAgentVersion),
	)

	handshakeLayer := handshake.NewFabricLayer(func() []handshake.HeightSetter {
		channels := fabric.Channels()
		out := make([]handshake.HeightSetter, len(channels))
		for i, ch := range channels {
			out[i] = ch
		}
		return out
	})

	sessionMetrics := session.NewMetrics()
	headerMetrics := headersync.NewMetrics()
	registerMetrics(nodeLogger, sessionMetrics, headerMetrics)

	var blockPoller session.Poller = noopPoller{}
	if cfg.ZMQ != nil && cfg.ZMQ.URL != "" {
		zmqURL, err := url.Parse(cfg.ZMQ.URL)
		if err != nil {
			return fmt.Errorf("failed to parse zmq url: %w", err)
		}

		p := poller.New(nodeLogger, zmqURL, func(blockHashHex string) {
			nodeLogger.Info("node: trusted node announced new block", slog.String("hash", blockHashHex))
		})
		p.Start(ctx)
		blockPoller = p
	}

	dispatcher := session.NewDispatcher(nodeLogger, session.FabricAdapter{ChannelFabric: fabric}, store, pool, handshakeLayer, blockPoller, inventoryStrandDepth, sessionMetrics)
	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session dispatcher: %w", err)
	}

	shutdownFns := []func(){
		func() { _ = dispatcher.Stop() },
		func() { _ = store.Stop() },
	}

	if err := dialSyncPeers(nodeLogger, fabric, cfg.Sync, sessionMetrics, headerMetrics); err != nil {
		nodeLogger.Error("node: failed to dial configured sync peers", slog.String("err", err.Error()))
	}

	go serveProfiler(nodeLogger, cfg.ProfilerAddr)
	go servePrometheus(nodeLogger, cfg.PrometheusEndpoint, cfg.PrometheusAddr)
	go serveHealth(nodeLogger, cfg.Health, dispatcher)

	nodeLogger.Info("node: started", slog.String("network", cfg.Network))

	waitForShutdown(nodeLogger)
	for _, fn := range shutdownFns {
		fn()
	}

	return nil
}

// buildChainStore selects the chainstore.Store implementation named by
// cfg.Mode. "postgres" wires internal/chainstore/postgres.Store against the
// configured connection parameters; anything else falls back to the
// in-memory store.
func buildChainStore(cfg *config.ChainStoreConfig) (chainstore.Store, error) {
	if cfg == nil || cfg.Mode != "postgres" {
		return chainstore.NewMemStore(), nil
	}

	pg := cfg.Postgres
	if pg == nil {
		return nil, fmt.Errorf("chainStore.mode is postgres but no postgres config was supplied")
	}

	return postgres.New(postgres.ConnParams{
		Host:     pg.Host,
		Port:     pg.Port,
		Username: pg.User,
		Password: pg.Password,
		DBName:   pg.Name,
		SSLMode:  pg.SslMode,
	})
}

// dialSyncPeers dials every configured peer, then binds a header-sync
// protocol instance to the returned channel against a freshly allocated
// table anchored at the configured bootstrap heights. AddPeer fires the
// session dispatcher's standing new-channel subscription synchronously
// before returning, so the channel is already wired into inventory handling
// by the time the protocol starts.
func dialSyncPeers(logger *slog.Logger, fabric *p2p.ChannelFabric, cfg *config.SyncConfig, sessionStats *session.Metrics, headerStats *headersync.Metrics) error {
	if cfg == nil || len(cfg.Peers) == 0 {
		return nil
	}

	firstHash, err := chainhash.NewHashFromStr(cfg.FirstHash)
	if err != nil {
		return fmt.Errorf("invalid sync.firstHash: %w", err)
	}

	var stopHash chainhash.Hash
	haveStopHash := cfg.StopHash != ""
	if haveStopHash {
		h, err := chainhash.NewHashFromStr(cfg.StopHash)
		if err != nil {
			return fmt.Errorf("invalid sync.stopHash: %w", err)
		}
		stopHash = *h
	}

	tickInterval := time.Duration(cfg.SyncTimeoutSeconds) * time.Second

	for _, peerCfg := range cfg.Peers {
		address, err := peerCfg.GetP2PUrl()
		if err != nil {
			logger.Warn("node: skipping peer with no p2p port", slog.String("host", peerCfg.Host))
			continue
		}

		ch, err := fabric.AddPeer(address)
		if err != nil {
			logger.Warn("node: failed to dial sync peer", slog.String("address", address), slog.String("err", err.Error()))
			continue
		}

		if !haveStopHash {
			logger.Info("node: no sync.stopHash configured, channel wired for inventory only", slog.String("peer", address))
			continue
		}

		table := headersync.New(cfg.FirstHeight, *firstHash, stopHash, cfg.TableCapacity)
		protocol := headersync.NewProtocol(logger, ch, table, cfg.MinimumHeadersPerSecond, tickInterval, headerStats)
		protocol.Start(func(d headersync.Disposition) {
			if d == nil {
				sessionStats.ObserveHeaderMerge(time.Now())
			}
		})
	}

	return nil
}

func registerMetrics(logger *slog.Logger, collectors ...prometheus.Collector) {
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			logger.Warn("node: failed to register metrics collector", slog.String("err", err.Error()))
		}
	}
}

func serveProfiler(logger *slog.Logger, addr string) {
	if addr == "" {
		return
	}
	logger.Info("node: starting profiler", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, nil); err != nil { //nolint:gosec
		logger.Error("node: profiler server failed", slog.String("err", err.Error()))
	}
}

func servePrometheus(logger *slog.Logger, endpoint, addr string) {
	if endpoint == "" || addr == "" {
		return
	}
	logger.Info("node: starting prometheus", slog.String("endpoint", endpoint), slog.String("addr", addr))
	mux := http.NewServeMux()
	mux.Handle(endpoint, promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil { //nolint:gosec
		logger.Error("node: prometheus server failed", slog.String("err", err.Error()))
	}
}

func serveHealth(logger *slog.Logger, cfg *config.HealthConfig, dispatcher *session.Dispatcher) {
	if cfg == nil || cfg.ListenAddr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		report := dispatcher.HealthCheck()

		status := http.StatusOK
		if report.ConnectedChannels < cfg.MinimumHealthyConnections {
			status = http.StatusServiceUnavailable
		}
		if cfg.StaleMergeThreshold > 0 && report.SinceLastMerge > cfg.StaleMergeThreshold {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	})

	logger.Info("node: starting health endpoint", slog.String("addr", cfg.ListenAddr))
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil { //nolint:gosec
		logger.Error("node: health server failed", slog.String("err", err.Error()))
	}
}

func waitForShutdown(logger *slog.Logger) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-signalChan
	logger.Info("node: received shutdown signal", slog.String("reason", sig.String()))
}

func parseFlags() string {
	configDir := flag.String("config", "", "path to configuration file directory")
	flag.Parse()
	return *configDir
}

// noopPoller satisfies session.Poller for nodes with no configured ZMQ
// endpoint; the dispatcher still calls Query/Monitor on every new channel
// regardless of whether a real poller is wired.
type noopPoller struct{}

func (noopPoller) Query(string)   {}
func (noopPoller) Monitor(string) {}
