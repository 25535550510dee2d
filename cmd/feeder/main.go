package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"chainindex/internal/config"
	"chainindex/internal/infrastructure/chainrpc"
	"chainindex/internal/infrastructure/kafka"
	"chainindex/internal/infrastructure/logging"
	"chainindex/internal/infrastructure/telemetry"

	"chainindex/internal/domain"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = "logs/feeder.log"
	}
	if _, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		File:       logFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}); err != nil {
		slog.Error("logger init error", "err", err)
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), "chainindex-feeder", cfg.OtelEndpoint)
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

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:     cfg.KafkaBrokers,
		TopicPrefix: cfg.KafkaTopicPrefix,
	})
	if err != nil {
		slog.Error("kafka producer error", "err", err)
		os.Exit(1)
	}
	defer producer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup
	for _, network := range cfg.Networks {
		client, err := chainrpc.NewClient(chainrpc.Config{
			URL:     cfg.RPCURLs[network],
			Timeout: cfg.RPCTimeout,
		})
		if err != nil {
			slog.Error("rpc client error", "network", network, "err", err)
			os.Exit(1)
		}
		wg.Add(1)
		go func(network string, client *chainrpc.Client) {
			defer wg.Done()
			pollNetwork(ctx, network, client, producer, cfg.PollInterval)
		}(network, client)
	}

	slog.Info("feeder started", "networks", cfg.Networks, "interval", cfg.PollInterval)
	<-ctx.Done()
	wg.Wait()
}

// pollNetwork tails the chain head and publishes every new block and its
// transactions onto the event feed. A failed height is retried on the next
// tick; heights are never skipped.
func pollNetwork(ctx context.Context, network string, client *chainrpc.Client, producer *kafka.Producer, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last int64
	if head, err := client.LatestHeight(ctx); err == nil {
		// Start at the current head; the indexer's sync controller owns
		// anything older.
		last = head
	} else {
		slog.Warn("head probe failed", "network", network, "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		head, err := client.LatestHeight(ctx)
		if err != nil {
			slog.Warn("head poll failed", "network", network, "err", err)
			continue
		}
		for height := last + 1; height <= head; height++ {
			if err := publishHeight(ctx, network, client, producer, height); err != nil {
				slog.Error("publish failed", "network", network, "height", height, "err", err)
				break
			}
			last = height
		}
	}
}

func publishHeight(ctx context.Context, network string, client *chainrpc.Client, producer *kafka.Producer, height int64) error {
	heightStr := domain.FormatHeight(height)
	block, err := client.BlockByHeight(ctx, heightStr)
	if err != nil {
		return err
	}
	if err := producer.PublishBlock(ctx, network, block); err != nil {
		return err
	}
	txs, err := client.TxsByHeight(ctx, heightStr)
	if err != nil {
		return err
	}
	return producer.PublishTxs(ctx, network, txs)
}
