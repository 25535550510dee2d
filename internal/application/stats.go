package application

import (
	"context"
	"log/slog"
	"time"

	"chainindex/internal/domain"
)

const (
	defaultStatsRefreshInterval = time.Hour
	defaultStatsQueueSize       = 1024
	statsFallbackBlockCount     = 10000
)

type statsEvent struct {
	network string
	msgType string
	height  string
}

type AggregatorConfig struct {
	RefreshInterval time.Duration
	QueueSize       int
}

// Aggregator maintains the per-network denormalized transaction counters.
// Increments flow through a supervised worker fed by a bounded queue so the
// write path that triggered them is never blocked or failed.
type Aggregator struct {
	store   Store
	queue   chan statsEvent
	refresh time.Duration
	now     func() time.Time
}

func NewAggregator(store Store, cfg AggregatorConfig) (*Aggregator, error) {
	if store == nil {
		return nil, &ValidationError{Field: "store"}
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultStatsRefreshInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultStatsQueueSize
	}
	return &Aggregator{
		store:   store,
		queue:   make(chan statsEvent, cfg.QueueSize),
		refresh: cfg.RefreshInterval,
		now:     time.Now,
	}, nil
}

// RecordSave enqueues a best-effort increment. A full queue drops the event;
// the periodic recompute corrects the drift.
func (a *Aggregator) RecordSave(network, msgType, height string) {
	select {
	case a.queue <- statsEvent{network: network, msgType: msgType, height: height}:
	default:
		slog.Warn("stats queue full, increment dropped", "network", network)
	}
}

// Run consumes the increment queue and re-runs full recomputes on a timer.
// It returns when ctx is canceled.
func (a *Aggregator) Run(ctx context.Context, networks []string) {
	ticker := time.NewTicker(a.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.queue:
			if err := a.applyIncrement(ctx, ev); err != nil {
				// One retry, then drop; the hourly recompute reconciles.
				if err := a.applyIncrement(ctx, ev); err != nil {
					slog.Error("stats increment failed", "network", ev.network, "error", err)
				}
			}
		case <-ticker.C:
			for _, network := range networks {
				if _, err := a.UpdateStats(ctx, network); err != nil {
					slog.Error("stats recompute failed", "network", network, "error", err)
				}
			}
		}
	}
}

func (a *Aggregator) applyIncrement(ctx context.Context, ev statsEvent) error {
	stats, ok, err := a.store.Stats(ctx, ev.network)
	if err != nil {
		return err
	}
	if !ok {
		stats = domain.TransactionStats{Network: ev.network}
	}
	if stats.CountByType == nil {
		stats.CountByType = make(map[string]int64)
	}
	stats.TotalCount++
	stats.Count24h++
	stats.CountByType[domain.SanitizeTypeKey(ev.msgType)]++
	if height, err := domain.HeightValue(ev.height); err == nil && height > stats.LatestHeight {
		stats.LatestHeight = height
	}
	stats.UpdatedAt = a.now()
	return a.store.PutStats(ctx, stats)
}

// UpdateStats fully recomputes the counters for one network. The latest
// height reconciles a string-sort max against a numeric-cast max and keeps
// the larger, since string height ordering is not numerically reliable.
func (a *Aggregator) UpdateStats(ctx context.Context, network string) (domain.TransactionStats, error) {
	total, err := a.store.CountTransactions(ctx, network)
	if err != nil {
		return domain.TransactionStats{}, processingErr("stats: count", err)
	}
	byType, err := a.store.TransactionCountsByType(ctx, network)
	if err != nil {
		return domain.TransactionStats{}, processingErr("stats: count by type", err)
	}
	sanitized := make(map[string]int64, len(byType))
	for msgType, count := range byType {
		sanitized[domain.SanitizeTypeKey(msgType)] += count
	}

	count24h, blocks, err := a.store.SumBlockTxsSince(ctx, network, a.now().Add(-24*time.Hour))
	if err != nil {
		return domain.TransactionStats{}, processingErr("stats: 24h count", err)
	}
	if blocks == 0 {
		// Freshly bootstrapped network: no block falls inside the window, so
		// approximate with the newest blocks by height.
		count24h, err = a.store.SumBlockTxsLastN(ctx, network, statsFallbackBlockCount)
		if err != nil {
			return domain.TransactionStats{}, processingErr("stats: 24h fallback", err)
		}
	}

	var latest int64
	if heightStr, ok, err := a.store.MaxHeightStringSort(ctx, network); err == nil && ok {
		if value, err := domain.HeightValue(heightStr); err == nil && value > latest {
			latest = value
		}
	}
	if numeric, ok, err := a.store.MaxHeightNumeric(ctx, network); err == nil && ok && numeric > latest {
		latest = numeric
	}

	stats := domain.TransactionStats{
		Network:      network,
		TotalCount:   total,
		LatestHeight: latest,
		CountByType:  sanitized,
		Count24h:     count24h,
		UpdatedAt:    a.now(),
	}
	if err := a.store.PutStats(ctx, stats); err != nil {
		return domain.TransactionStats{}, processingErr("stats: save", err)
	}
	return stats, nil
}

// TotalCount returns the precomputed counter, computing it synchronously the
// first time a network is asked about.
func (a *Aggregator) TotalCount(ctx context.Context, network string) (int64, error) {
	stats, ok, err := a.store.Stats(ctx, network)
	if err != nil {
		return 0, err
	}
	if ok {
		return stats.TotalCount, nil
	}
	computed, err := a.UpdateStats(ctx, network)
	if err != nil {
		return 0, err
	}
	return computed.TotalCount, nil
}

// InitializeStats computes counters for any configured network that has none
// stored yet.
func (a *Aggregator) InitializeStats(ctx context.Context, networks []string) {
	for _, network := range networks {
		if _, ok, err := a.store.Stats(ctx, network); err == nil && ok {
			continue
		}
		if _, err := a.UpdateStats(ctx, network); err != nil {
			slog.Error("stats initialization failed", "network", network, "error", err)
		}
	}
}
