package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"chainindex/internal/application"
	"chainindex/internal/config"
	"chainindex/internal/decode"
	"chainindex/internal/infrastructure/chainrpc"
	"chainindex/internal/infrastructure/kafka"
	"chainindex/internal/infrastructure/logging"
	"chainindex/internal/infrastructure/mysql"
	"chainindex/internal/infrastructure/sqlite"
	"chainindex/internal/infrastructure/telemetry"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = "logs/indexer.log"
	}
	if _, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		File:       logFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}); err != nil {
		slog.Error("logger init error", "err", err)
	}

	store, directory, closeStore, err := openStore(cfg)
	if err != nil {
		slog.Error("db error", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	shutdownTracing, err := telemetry.InitTracer(context.Background(), "chainindex-indexer", cfg.OtelEndpoint)
	if err != nil {
		slog.Warn("tracing init error", "err", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				slog.Warn("tracing shutdown error", "err", err)
			}
		}()
	}

	byNetwork := make(map[string]application.ChainClient, len(cfg.Networks))
	for _, network := range cfg.Networks {
		client, err := chainrpc.NewClient(chainrpc.Config{
			URL:     cfg.RPCURLs[network],
			Timeout: cfg.RPCTimeout,
		})
		if err != nil {
			slog.Error("rpc client error", "network", network, "err", err)
			os.Exit(1)
		}
		byNetwork[network] = client
	}
	clients := application.NewClients(byNetwork)

	decoder, err := decode.NewDecoder(decode.NewRegistry(decode.DefaultManifest()))
	if err != nil {
		slog.Error("decoder error", "err", err)
		os.Exit(1)
	}
	retention, err := application.NewRetentionPolicy(store, application.RetentionConfig{
		MaxFullPerWindow: int64(cfg.RetentionMaxFull),
		Window:           cfg.RetentionWindow,
		LiteTypes:        cfg.RetentionTypes,
	})
	if err != nil {
		slog.Error("retention policy error", "err", err)
		os.Exit(1)
	}
	aggregator, err := application.NewAggregator(store, application.AggregatorConfig{
		RefreshInterval: cfg.StatsInterval,
	})
	if err != nil {
		slog.Error("stats aggregator error", "err", err)
		os.Exit(1)
	}
	ingestor, err := application.NewIngestor(store, clients, directory, decoder, retention, aggregator)
	if err != nil {
		slog.Error("ingestor error", "err", err)
		os.Exit(1)
	}
	syncController, err := application.NewSyncController(store, clients, ingestor, application.SyncConfig{
		DefaultWindow: cfg.SyncWindow,
	})
	if err != nil {
		slog.Error("sync controller error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	aggregator.InitializeStats(ctx, cfg.Networks)
	for _, network := range cfg.Networks {
		if updated, err := application.BackfillFirstMessageType(ctx, store, network); err != nil {
			slog.Warn("first-message-type backfill error", "network", network, "err", err)
		} else if updated > 0 {
			slog.Info("first-message-type backfill", "network", network, "updated", updated)
		}
	}

	go aggregator.Run(ctx, cfg.Networks)

	// Catch up to chain head before the live feed takes over; the per-network
	// guard rejects any overlapping request in the meantime.
	var syncWG sync.WaitGroup
	for _, network := range cfg.Networks {
		syncWG.Add(1)
		go func(network string) {
			defer syncWG.Done()
			if err := syncController.StartSync(ctx, network, nil, nil); err != nil {
				slog.Error("startup sync failed", "network", network, "err", err)
			}
		}(network)
	}
	go func() {
		syncWG.Wait()
		slog.Info("startup sync finished", "networks", len(cfg.Networks))
	}()

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:     cfg.KafkaBrokers,
		GroupID:     cfg.KafkaGroupID,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Networks:    cfg.Networks,
	}, ingestor)
	if err != nil {
		slog.Error("kafka consumer error", "err", err)
		os.Exit(1)
	}

	slog.Info("indexer started", "networks", cfg.Networks, "driver", cfg.DBDriver)
	consumer.Run(ctx)
	syncWG.Wait()
}

func openStore(cfg config.Config) (application.Store, application.ValidatorDirectory, func(), error) {
	if cfg.DBDriver == "sqlite" {
		repo, err := sqlite.NewRepository(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return repo, repo, func() { _ = repo.Close() }, nil
	}

	base, err := mysql.NewRepository(cfg.DBDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	cached, err := mysql.NewCachedRepository(base, mysql.CacheConfig{
		Addr: cfg.RedisAddr,
		TTL:  cfg.CacheTTL,
	})
	if err != nil {
		slog.Warn("redis cache disabled", "err", err)
		return base, base, func() { _ = base.Close() }, nil
	}
	return cached, cached, func() { _ = cached.Close() }, nil
}
