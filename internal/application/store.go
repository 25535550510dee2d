package application

import (
	"context"
	"time"

	"chainindex/internal/domain"
)

type BlockStore interface {
	UpsertBlock(ctx context.Context, block domain.Block) error
	BlockByHeight(ctx context.Context, network, height string) (domain.Block, bool, error)
	BlockByHash(ctx context.Context, network, hash string) (domain.Block, bool, error)
	LatestBlock(ctx context.Context, network string) (domain.Block, bool, error)
	// SumBlockTxsSince returns the summed tx counts and the number of blocks
	// timestamped at or after the bound.
	SumBlockTxsSince(ctx context.Context, network string, since time.Time) (int64, int64, error)
	// SumBlockTxsLastN sums tx counts over the newest n blocks by height.
	SumBlockTxsLastN(ctx context.Context, network string, n int) (int64, error)
}

type TransactionStore interface {
	UpsertTransaction(ctx context.Context, tx domain.Transaction) error
	TransactionByHash(ctx context.Context, network, hash string) (domain.Transaction, bool, error)
	TransactionsByHeight(ctx context.Context, network, height string) ([]domain.Transaction, error)
	// LatestTransactions returns the newest transactions ordered descending by
	// (height, time) with numeric height ordering.
	LatestTransactions(ctx context.Context, network string, limit int) ([]domain.Transaction, error)
	// TransactionsBefore returns the page strictly older than the cursor,
	// descending.
	TransactionsBefore(ctx context.Context, network string, cursor domain.Cursor, limit int) ([]domain.Transaction, error)
	// TransactionsAfter returns rows strictly newer than the cursor, ascending;
	// the pagination engine uses it to reconstruct backward boundaries.
	TransactionsAfter(ctx context.Context, network string, cursor domain.Cursor, limit int) ([]domain.Transaction, error)
	// TransactionsPage is the offset fallback for page-number requests.
	TransactionsPage(ctx context.Context, network string, page, limit int) ([]domain.Transaction, error)
	CountTransactions(ctx context.Context, network string) (int64, error)
	TransactionCountsByType(ctx context.Context, network string) (map[string]int64, error)
	// CountFullByTypeSince counts non-lite records of a message type whose
	// record-creation time is at or after the bound. Retention ages by save
	// time, not chain time, so replayed history fills the quota the same way
	// live ingestion does.
	CountFullByTypeSince(ctx context.Context, network, msgType string, since time.Time) (int64, error)
	// MaxHeightStringSort returns the max height under the store's default
	// string collation; MaxHeightNumeric under a numeric cast. The two can
	// disagree and callers reconcile by preferring the larger.
	MaxHeightStringSort(ctx context.Context, network string) (string, bool, error)
	MaxHeightNumeric(ctx context.Context, network string) (int64, bool, error)
	ListMissingFirstMessageType(ctx context.Context, network string, limit int) ([]domain.Transaction, error)
	SetFirstMessageType(ctx context.Context, network, hash, msgType string) error
}

type StatsStore interface {
	Stats(ctx context.Context, network string) (domain.TransactionStats, bool, error)
	PutStats(ctx context.Context, stats domain.TransactionStats) error
}

// Store is the persistent store contract the indexer runs against.
type Store interface {
	BlockStore
	TransactionStore
	StatsStore
}

// ValidatorDirectory resolves a raw consensus address to a stored identity
// reference.
type ValidatorDirectory interface {
	Resolve(ctx context.Context, network, consensusAddr string) (string, bool, error)
}
