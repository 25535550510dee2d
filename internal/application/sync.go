package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"chainindex/internal/domain"
	"chainindex/internal/infrastructure/chainrpc"
)

const defaultSyncWindow = int64(10)

type SyncConfig struct {
	// DefaultWindow is the number of trailing blocks synced when no usable
	// start height exists.
	DefaultWindow int64
}

// SyncController replays historical blocks through the ingestion pipeline to
// bring the index to chain head. One sync per network runs at a time; a
// concurrent request is rejected, not queued.
type SyncController struct {
	store    Store
	clients  *Clients
	ingestor *Ingestor
	window   int64

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewSyncController(store Store, clients *Clients, ingestor *Ingestor, cfg SyncConfig) (*SyncController, error) {
	if store == nil || clients == nil || ingestor == nil {
		return nil, &ValidationError{Field: "sync dependencies"}
	}
	if cfg.DefaultWindow <= 0 {
		cfg.DefaultWindow = defaultSyncWindow
	}
	return &SyncController{
		store:    store,
		clients:  clients,
		ingestor: ingestor,
		window:   cfg.DefaultWindow,
		inFlight: make(map[string]bool),
	}, nil
}

func (s *SyncController) tryAcquire(network string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[network] {
		return false
	}
	s.inFlight[network] = true
	return true
}

func (s *SyncController) release(network string) {
	s.mu.Lock()
	delete(s.inFlight, network)
	s.mu.Unlock()
}

// StartSync catches the index up from fromHeight (or the stored head, or the
// trailing default window) to chain head. count bounds the number of heights.
// Reprocessing an already-stored height is a safe no-op.
func (s *SyncController) StartSync(ctx context.Context, network string, fromHeight, count *int64) error {
	client, err := s.clients.ForNetwork(network)
	if err != nil {
		return err
	}
	if !s.tryAcquire(network) {
		slog.Warn("sync already in progress, request ignored", "network", network)
		return nil
	}
	defer s.release(network)

	head, err := client.LatestHeight(ctx)
	if err != nil {
		return processingErr("sync: chain head", err)
	}

	window := s.window
	if count != nil && *count > 0 {
		window = *count
	}

	start := s.resolveStart(ctx, network, fromHeight, head, window)

	// An explicitly requested height may be pruned on the node; fall back to
	// the trailing window so the run still makes forward progress.
	if fromHeight != nil {
		if _, err := client.BlockByHeight(ctx, domain.FormatHeight(start)); err != nil {
			slog.Warn("requested start height rejected by upstream, falling back to trailing window",
				"network", network, "from_height", start, "window", window, "error", err)
			start = head - window + 1
		}
	}
	if start < 1 {
		start = 1
	}

	end := head
	if count != nil && *count > 0 && start+*count-1 < head {
		end = start + *count - 1
	}

	slog.Info("historical sync started", "network", network, "from", start, "to", end, "head", head)

	for height := start; height <= end; height++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		heightStr := domain.FormatHeight(height)
		raw, err := client.BlockByHeight(ctx, heightStr)
		if err != nil {
			slog.Error("sync: block fetch failed, skipping height", "network", network, "height", height, "error", err)
			continue
		}

		var txResults []chainrpc.RawTxResult
		if len(raw.Block.Data.Txs) > 0 {
			txResults, err = client.TxsByHeight(ctx, heightStr)
			if err != nil {
				slog.Error("sync: tx fetch failed, skipping height", "network", network, "height", height, "error", err)
				continue
			}
		}

		block, err := s.ingestor.ProcessBlock(ctx, network, raw, txResults)
		if err != nil {
			if recoverable(err) {
				slog.Error("sync: block processing failed, skipping height", "network", network, "height", height, "error", err)
				continue
			}
			return err
		}

		for i := range txResults {
			if _, err := s.ingestor.ProcessTx(ctx, network, &txResults[i], block.Time); err != nil {
				slog.Error("sync: tx processing failed, skipping", "network", network, "height", height, "hash", txResults[i].Hash, "error", err)
			}
		}

		if (height-start+1)%100 == 0 {
			slog.Info("sync progress", "network", network, "height", height, "remaining", end-height)
		}
	}

	slog.Info("historical sync finished", "network", network, "from", start, "to", end)
	return nil
}

func (s *SyncController) resolveStart(ctx context.Context, network string, fromHeight *int64, head, window int64) int64 {
	if fromHeight != nil && *fromHeight > 0 {
		return *fromHeight
	}
	if latest, ok, err := s.store.LatestBlock(ctx, network); err == nil && ok {
		if value, err := domain.HeightValue(latest.Height); err == nil {
			return value + 1
		}
	}
	return head - window + 1
}

// recoverable reports whether a processing failure affects only the current
// event. Persistence failures are the one class that must surface to the
// caller.
func recoverable(err error) bool {
	var decodeErr *DecodeError
	var validationErr *ValidationError
	var notFoundErr *NotFoundError
	return errors.As(err, &decodeErr) || errors.As(err, &validationErr) || errors.As(err, &notFoundErr)
}
