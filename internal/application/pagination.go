package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chainindex/internal/domain"
)

const (
	defaultHotTTL        = 5 * time.Second
	defaultWarmTTL       = 60 * time.Second
	defaultSweepInterval = 30 * time.Second

	// evictionMultiplier bounds tier memory: the sweep drops entries older
	// than evictionMultiplier times their tier TTL.
	evictionMultiplier = 3

	maxPageLimit     = 100
	refreshTimeout   = 10 * time.Second
	firstPageKeyword = "first"
)

type PageRequest struct {
	Network string
	Limit   int
	// Page is the 1-based page number; values above 1 without a cursor use
	// the offset fallback.
	Page   int
	Cursor string
}

type Page struct {
	Transactions []domain.Transaction
	NextCursor   string
	PrevCursor   string
}

type PageEngineConfig struct {
	HotTTL        time.Duration
	WarmTTL       time.Duration
	SweepInterval time.Duration
}

type cacheEntry struct {
	page     Page
	storedAt time.Time
}

type cursorLinks struct {
	prev     string
	next     string
	storedAt time.Time
}

// PageEngine serves latest-transaction reads through a two-tier cache: a hot
// tier for the first page with a short TTL and background refresh, and a warm
// tier for cursor pages. Cursor queries are keyset conditions, never offsets.
type PageEngine struct {
	store TransactionStore

	hotTTL        time.Duration
	warmTTL       time.Duration
	sweepInterval time.Duration

	mu         sync.Mutex
	hot        map[string]cacheEntry
	warm       map[string]cacheEntry
	history    map[string]cursorLinks
	refreshing map[string]bool

	refreshes atomic.Int64
	now       func() time.Time
}

func NewPageEngine(store TransactionStore, cfg PageEngineConfig) (*PageEngine, error) {
	if store == nil {
		return nil, &ValidationError{Field: "store"}
	}
	if cfg.HotTTL <= 0 {
		cfg.HotTTL = defaultHotTTL
	}
	if cfg.WarmTTL <= 0 {
		cfg.WarmTTL = defaultWarmTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	return &PageEngine{
		store:         store,
		hotTTL:        cfg.HotTTL,
		warmTTL:       cfg.WarmTTL,
		sweepInterval: cfg.SweepInterval,
		hot:           make(map[string]cacheEntry),
		warm:          make(map[string]cacheEntry),
		history:       make(map[string]cursorLinks),
		refreshing:    make(map[string]bool),
		now:           time.Now,
	}, nil
}

// LatestTransactions serves one page of the newest transactions.
func (e *PageEngine) LatestTransactions(ctx context.Context, req PageRequest) (Page, error) {
	limit := clampLimit(req.Limit)
	switch {
	case req.Cursor != "":
		return e.cursorPage(ctx, req.Network, req.Cursor, limit)
	case req.Page > 1:
		return e.offsetPage(ctx, req.Network, req.Page, limit)
	default:
		return e.firstPage(ctx, req.Network, limit)
	}
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

func (e *PageEngine) firstPage(ctx context.Context, network string, limit int) (Page, error) {
	key := pageKey(network, firstPageKeyword, limit)
	if page, ok := e.cachedPage(e.hot, key, e.hotTTL); ok {
		// Serve the cached page immediately and refresh it off the request
		// path so the hot entry stays near head.
		e.scheduleRefresh(key, network, limit)
		return page, nil
	}
	page, err := e.loadFirstPage(ctx, network, limit)
	if err != nil {
		return Page{}, err
	}
	e.putCache(e.hot, key, page)
	return page, nil
}

func (e *PageEngine) loadFirstPage(ctx context.Context, network string, limit int) (Page, error) {
	rows, err := e.store.LatestTransactions(ctx, network, limit)
	if err != nil {
		return Page{}, err
	}
	page := Page{Transactions: rows}
	if len(rows) == limit {
		page.NextCursor = rowCursor(rows[len(rows)-1])
		e.recordLinks("", page.NextCursor)
	}
	return page, nil
}

func (e *PageEngine) cursorPage(ctx context.Context, network, token string, limit int) (Page, error) {
	cursor, err := domain.DecodeCursor(token)
	if err != nil {
		return Page{}, &ValidationError{Field: "cursor"}
	}

	key := pageKey(network, token, limit)
	if page, ok := e.cachedPage(e.warm, key, e.warmTTL); ok {
		return page, nil
	}

	rows, err := e.store.TransactionsBefore(ctx, network, cursor, limit)
	if err != nil {
		return Page{}, err
	}
	page := Page{Transactions: rows}
	if len(rows) == limit {
		page.NextCursor = rowCursor(rows[len(rows)-1])
	}

	prev, ok := e.linkedPrev(token)
	if !ok {
		prev, err = e.reconstructPrev(ctx, network, cursor, limit)
		if err != nil {
			return Page{}, err
		}
	}
	page.PrevCursor = prev

	e.recordPage(token, page)
	e.putCache(e.warm, key, page)
	return page, nil
}

// reconstructPrev derives the boundary of the previous page when no history
// survived: walking upward from the request cursor, the limit-th newer row is
// the previous page's exclusive bound. Fewer rows means the previous page is
// the first page.
func (e *PageEngine) reconstructPrev(ctx context.Context, network string, cursor domain.Cursor, limit int) (string, error) {
	newer, err := e.store.TransactionsAfter(ctx, network, cursor, limit)
	if err != nil {
		return "", err
	}
	if len(newer) < limit {
		return "", nil
	}
	return rowCursor(newer[limit-1]), nil
}

func (e *PageEngine) offsetPage(ctx context.Context, network string, pageNum, limit int) (Page, error) {
	slog.Info("serving page-number request via offset fallback", "network", network, "page", pageNum, "limit", limit)
	key := pageKey(network, fmt.Sprintf("page=%d", pageNum), limit)
	if page, ok := e.cachedPage(e.warm, key, e.warmTTL); ok {
		return page, nil
	}
	rows, err := e.store.TransactionsPage(ctx, network, pageNum, limit)
	if err != nil {
		return Page{}, err
	}
	page := Page{Transactions: rows}
	if len(rows) == limit {
		page.NextCursor = rowCursor(rows[len(rows)-1])
	}
	e.putCache(e.warm, key, page)
	return page, nil
}

func (e *PageEngine) scheduleRefresh(key, network string, limit int) {
	e.mu.Lock()
	if e.refreshing[key] {
		e.mu.Unlock()
		return
	}
	e.refreshing[key] = true
	e.mu.Unlock()

	e.refreshes.Add(1)
	go func() {
		// The marker must clear on every exit path or this key could never
		// refresh again.
		defer func() {
			e.mu.Lock()
			delete(e.refreshing, key)
			e.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		page, err := e.loadFirstPage(ctx, network, limit)
		if err != nil {
			slog.Warn("background page refresh failed", "key", key, "error", err)
			return
		}
		e.putCache(e.hot, key, page)
	}()
}

// Run sweeps expired entries until ctx is canceled, keeping tier memory
// bounded at evictionMultiplier times each TTL regardless of traffic shape.
func (e *PageEngine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweep()
		}
	}
}

func (e *PageEngine) sweep() {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, entry := range e.hot {
		if now.Sub(entry.storedAt) > evictionMultiplier*e.hotTTL {
			delete(e.hot, key)
		}
	}
	for key, entry := range e.warm {
		if now.Sub(entry.storedAt) > evictionMultiplier*e.warmTTL {
			delete(e.warm, key)
		}
	}
	for key, links := range e.history {
		if now.Sub(links.storedAt) > evictionMultiplier*e.warmTTL {
			delete(e.history, key)
		}
	}
}

// Invalidate drops all cached pages for a network after a write the caller
// wants visible immediately.
func (e *PageEngine) Invalidate(network string) {
	prefix := network + ":"
	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.hot {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(e.hot, key)
		}
	}
	for key := range e.warm {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(e.warm, key)
		}
	}
}

func (e *PageEngine) cachedPage(tier map[string]cacheEntry, key string, ttl time.Duration) (Page, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := tier[key]
	if !ok || e.now().Sub(entry.storedAt) > ttl {
		return Page{}, false
	}
	return entry.page, true
}

func (e *PageEngine) putCache(tier map[string]cacheEntry, key string, page Page) {
	e.mu.Lock()
	tier[key] = cacheEntry{page: page, storedAt: e.now()}
	e.mu.Unlock()
}

func (e *PageEngine) recordPage(token string, page Page) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	links := e.history[token]
	links.prev = page.PrevCursor
	links.next = page.NextCursor
	links.storedAt = now
	e.history[token] = links
	if page.NextCursor != "" {
		next := e.history[page.NextCursor]
		next.prev = token
		next.storedAt = now
		e.history[page.NextCursor] = next
	}
}

func (e *PageEngine) recordLinks(prev, next string) {
	if next == "" {
		return
	}
	e.mu.Lock()
	links := e.history[next]
	links.prev = prev
	links.storedAt = e.now()
	e.history[next] = links
	e.mu.Unlock()
}

func (e *PageEngine) linkedPrev(token string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	links, ok := e.history[token]
	if !ok {
		return "", false
	}
	return links.prev, true
}

func pageKey(network, page string, limit int) string {
	return fmt.Sprintf("%s:%s:%d", network, page, limit)
}

func rowCursor(tx domain.Transaction) string {
	return domain.EncodeCursor(domain.Cursor{Height: tx.Height, Time: tx.Time})
}
