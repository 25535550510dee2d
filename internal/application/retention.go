package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chainindex/internal/domain"
)

const (
	defaultMaxFullPerWindow = 5
	defaultRetentionWindow  = 24 * time.Hour
)

// defaultLiteTypes are the high-frequency relayer message types whose content
// is rarely inspected. Content for every other type is always kept.
var defaultLiteTypes = []string{
	"/ibc.core.client.v1.MsgUpdateClient",
	"/ibc.core.channel.v1.MsgAcknowledgement",
	"/ibc.core.channel.v1.MsgTimeout",
}

type RetentionConfig struct {
	MaxFullPerWindow int64
	Window           time.Duration
	LiteTypes        []string
}

// RetentionPolicy bounds storage growth: for lite-eligible first-message
// types it keeps a rolling sample of full-content records per window and
// strips the rest.
type RetentionPolicy struct {
	store TransactionStore

	mu        sync.RWMutex
	liteTypes map[string]struct{}
	maxFull   int64
	window    time.Duration

	now func() time.Time
}

func NewRetentionPolicy(store TransactionStore, cfg RetentionConfig) (*RetentionPolicy, error) {
	if store == nil {
		return nil, &ValidationError{Field: "store"}
	}
	if cfg.MaxFullPerWindow <= 0 {
		cfg.MaxFullPerWindow = defaultMaxFullPerWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultRetentionWindow
	}
	types := cfg.LiteTypes
	if types == nil {
		types = defaultLiteTypes
	}
	liteTypes := make(map[string]struct{}, len(types))
	for _, msgType := range types {
		liteTypes[msgType] = struct{}{}
	}
	return &RetentionPolicy{
		store:     store,
		liteTypes: liteTypes,
		maxFull:   cfg.MaxFullPerWindow,
		window:    cfg.Window,
		now:       time.Now,
	}, nil
}

// SetMaxFullPerWindow adjusts the full-content ceiling at runtime.
func (p *RetentionPolicy) SetMaxFullPerWindow(n int64) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	p.maxFull = n
	p.mu.Unlock()
}

// SetWindow adjusts the rolling window at runtime.
func (p *RetentionPolicy) SetWindow(window time.Duration) {
	if window <= 0 {
		return
	}
	p.mu.Lock()
	p.window = window
	p.mu.Unlock()
}

func (p *RetentionPolicy) liteEligible(msgType string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.liteTypes[msgType]
	return ok
}

func (p *RetentionPolicy) limits() (int64, time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxFull, p.window
}

// Persist stores the transaction, stripping message content when the rolling
// full-content quota for its type is exhausted. It returns the stored shape.
// The quota is counted against record-creation time, so a historical catch-up
// replaying old chain timestamps is bounded exactly like live ingestion.
func (p *RetentionPolicy) Persist(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	if p.liteEligible(tx.Type) {
		maxFull, window := p.limits()
		count, err := p.store.CountFullByTypeSince(ctx, tx.Network, tx.Type, p.now().Add(-window))
		if err != nil {
			// Counting is advisory; keep the record full rather than lose
			// content on a store hiccup.
			slog.Warn("retention count failed, storing full", "network", tx.Network, "type", tx.Type, "error", err)
		} else if count >= maxFull {
			tx.Messages = nil
			tx.IsLite = true
		}
	}
	if err := p.store.UpsertTransaction(ctx, tx); err != nil {
		return domain.Transaction{}, err
	}
	return tx, nil
}
