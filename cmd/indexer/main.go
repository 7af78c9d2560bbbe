package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/0xmhha/creation-indexer/internal/config"
	"github.com/0xmhha/creation-indexer/internal/constants"
	"github.com/0xmhha/creation-indexer/internal/logger"
	"github.com/0xmhha/creation-indexer/pkg/api"
	"github.com/0xmhha/creation-indexer/pkg/api/websocket"
	"github.com/0xmhha/creation-indexer/pkg/dispatch"
	"github.com/0xmhha/creation-indexer/pkg/eventbus"
	"github.com/0xmhha/creation-indexer/pkg/multichain"
	"github.com/0xmhha/creation-indexer/pkg/source"
	"github.com/0xmhha/creation-indexer/pkg/source/hypersync"
	rpcsource "github.com/0xmhha/creation-indexer/pkg/source/rpc"
	"github.com/0xmhha/creation-indexer/pkg/storage"
	"github.com/0xmhha/creation-indexer/pkg/types"
)

var (
	// Version information (injected at build time)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// flags holds command-line overrides; zero values leave the config untouched
type flags struct {
	configFile   string
	showVersion  bool
	dbPath       string
	hyperSyncURL string
	logLevel     string
	logFormat    string
	workers      int
	enableAPI    bool
	apiPort      int
}

func parseFlags() *flags {
	f := &flags{}
	flag.StringVar(&f.configFile, "config", "", "Path to configuration file (YAML)")
	flag.BoolVar(&f.showVersion, "version", false, "Show version information and exit")
	flag.StringVar(&f.dbPath, "db", "", "Database path")
	flag.StringVar(&f.hyperSyncURL, "hypersync-url", "", "HyperSync endpoint (may contain %d for the chain id)")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&f.logFormat, "log-format", "", "Log format (json, console)")
	flag.IntVar(&f.workers, "workers", 0, "Concurrent historical windows per chain")
	flag.BoolVar(&f.enableAPI, "api", false, "Enable API server")
	flag.IntVar(&f.apiPort, "api-port", 0, "API server port")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()

	if f.showVersion {
		fmt.Printf("creation-indexer version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", buildTime)
		os.Exit(0)
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewWithConfig(&logger.Config{
		Level:         cfg.Log.Level,
		Format:        cfg.Log.Format,
		Development:   cfg.Log.Format == "console",
		InitialFields: map[string]interface{}{"node_id": cfg.Node.ID},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting creation indexer",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_time", buildTime),
		zap.String("source", cfg.Source),
		zap.String("db_path", cfg.Database.Path),
		zap.Int("chains", len(multichain.EnabledChains(cfg.Chains))),
		zap.Int("workers", cfg.Indexer.Workers),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Indexer stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("Indexer stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	storageConfig := storage.DefaultConfig(cfg.Database.Path)
	storageConfig.ReadOnly = cfg.Database.ReadOnly
	store, err := storage.NewPebbleStorage(storageConfig)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	store.SetLogger(logger.WithComponent(log, "storage"))
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close storage", zap.Error(err))
		}
	}()
	log.Info("Storage initialized", zap.String("path", cfg.Database.Path))

	sinks, closeSinks, err := buildSinks(ctx, cfg, store, log)
	if err != nil {
		return err
	}
	defer closeSinks()

	var hub *websocket.Hub
	if cfg.API.Enabled && cfg.API.EnableWebSocket {
		hub = websocket.NewHub(logger.WithComponent(log, "websocket"))
		go hub.Run()
		defer hub.Stop()
		sinks = append(sinks, hub)
	}

	effects, err := dispatch.NewEffects(dispatch.EffectConfig{
		CacheSize:       cfg.Indexer.EffectCacheSize,
		MaxRetries:      cfg.Indexer.EffectRetries,
		InitialInterval: cfg.Indexer.EffectRetryDelay,
		MaxElapsedTime:  constants.DefaultEffectMaxElapsed,
		Logger:          logger.WithComponent(log, "effects"),
	})
	if err != nil {
		return fmt.Errorf("failed to create effect bridge: %w", err)
	}

	manager, err := multichain.NewManager(cfg.Chains, sourceFactory(cfg, log), multichain.ChainDeps{
		Sink:     dispatch.MultiSink(sinks),
		Effects:  effects,
		Coverage: store,
	}, logger.WithComponent(log, "manager"))
	if err != nil {
		return fmt.Errorf("failed to create chain manager: %w", err)
	}

	if cfg.API.Enabled {
		apiServer, err := startAPI(cfg, log, store, manager, hub)
		if err != nil {
			return err
		}
		defer func() {
			if err := apiServer.Stop(context.Background()); err != nil {
				log.Error("Failed to stop API server gracefully", zap.Error(err))
			}
		}()
	}

	err = manager.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// buildSinks returns the store sink plus every enabled broker sink
func buildSinks(ctx context.Context, cfg *config.Config, store *storage.PebbleStorage, log *zap.Logger) ([]dispatch.Sink, func(), error) {
	sinks := []dispatch.Sink{dispatch.StoreSink(store)}
	var closers []func() error

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn("Failed to close sink", zap.Error(err))
			}
		}
	}

	if cfg.Sinks.Kafka.Enabled {
		k, err := eventbus.NewKafkaSink(cfg.Sinks.Kafka, cfg.Node.ID, logger.WithComponent(log, "kafka"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create kafka sink: %w", err)
		}
		if err := k.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to connect kafka sink: %w", err)
		}
		closers = append(closers, k.Close)
		sinks = append(sinks, withTimeout(k))
	}

	if cfg.Sinks.Redis.Enabled {
		r, err := eventbus.NewRedisSink(cfg.Sinks.Redis, cfg.Node.ID, logger.WithComponent(log, "redis"))
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to create redis sink: %w", err)
		}
		if err := r.Connect(ctx); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to connect redis sink: %w", err)
		}
		closers = append(closers, r.Close)
		sinks = append(sinks, withTimeout(r))
	}

	return sinks, closeAll, nil
}

// withTimeout bounds every write to an external broker
func withTimeout(s dispatch.Sink) dispatch.Sink {
	return dispatch.SinkFunc(func(ctx context.Context, d *types.EnrichedDiscovery) error {
		ctx, cancel := context.WithTimeout(ctx, constants.DefaultSinkTimeout)
		defer cancel()
		return s.Upsert(ctx, d)
	})
}

// sourceFactory builds the configured source kind for a chain. A chain's
// source_url overrides the global endpoint.
func sourceFactory(cfg *config.Config, log *zap.Logger) multichain.SourceFactory {
	return func(chain multichain.ChainConfig) (source.Source, error) {
		chainLog := logger.WithChain(log, chain.ID)

		switch source.Kind(cfg.Source) {
		case source.KindRPC:
			endpoint := chain.SourceURL
			if endpoint == "" {
				endpoint = cfg.RPC.Endpoint
			}
			c, err := rpcsource.NewClient(&rpcsource.Config{
				Endpoint:   endpoint,
				Timeout:    cfg.RPC.Timeout,
				PageBlocks: cfg.RPC.PageBlocks,
				Logger:     chainLog,
			})
			if err != nil {
				return nil, err
			}
			return c, nil
		default:
			url := chain.SourceURL
			if url == "" {
				url = cfg.HyperSyncURL(chain.ChainID)
			}
			c, err := hypersync.NewClient(&hypersync.Config{
				URL:       url,
				APIToken:  cfg.HyperSync.APIToken,
				Timeout:   cfg.HyperSync.Timeout,
				RateLimit: cfg.HyperSync.RateLimit,
				Burst:     cfg.HyperSync.Burst,
				Logger:    chainLog,
			})
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}
}

func startAPI(cfg *config.Config, log *zap.Logger, store storage.Storage, manager *multichain.Manager, hub *websocket.Hub) (*api.Server, error) {
	apiConfig := api.DefaultConfig()
	apiConfig.Host = cfg.API.Host
	apiConfig.Port = cfg.API.Port
	apiConfig.EnableGraphQL = cfg.API.EnableGraphQL
	apiConfig.EnableWebSocket = cfg.API.EnableWebSocket
	apiConfig.RateLimitPerSecond = cfg.API.RateLimit
	apiConfig.RateLimitBurst = cfg.API.RateBurst
	apiConfig.ReadTimeout = cfg.API.ReadTimeout
	apiConfig.WriteTimeout = cfg.API.WriteTimeout

	server, err := api.NewServer(apiConfig, log, store, &api.ServerOptions{
		Health: manager,
		Hub:    hub,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create API server: %w", err)
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Error("API server failed", zap.Error(err))
		}
	}()
	return server, nil
}

// loadConfig loads .env, the YAML file and INDEXER_* variables, then
// applies command-line overrides
func loadConfig(f *flags) (*config.Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &config.Config{}
	if f.configFile != "" {
		if err := cfg.LoadFromFile(f.configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	applyFlags(cfg, f)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads environment variables from a .env file if it exists.
func loadDotEnv() error {
	info, err := os.Stat(".env")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat .env: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf(".env exists but is a directory")
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// applyFlags applies command-line flags to configuration
func applyFlags(cfg *config.Config, f *flags) {
	if f.dbPath != "" {
		cfg.Database.Path = f.dbPath
	}
	if f.hyperSyncURL != "" {
		cfg.HyperSync.URL = f.hyperSyncURL
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if f.workers > 0 {
		cfg.Indexer.Workers = f.workers
		for i := range cfg.Chains {
			cfg.Chains[i].Workers = f.workers
		}
	}
	if f.enableAPI {
		cfg.API.Enabled = true
	}
	if f.apiPort > 0 {
		cfg.API.Port = f.apiPort
	}
}
