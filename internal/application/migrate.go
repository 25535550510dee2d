package application

import (
	"context"
	"log/slog"
)

const backfillBatchSize = 500

// BackfillFirstMessageType is the one-time migration for transaction rows
// written before the first-message-type field existed. It derives the value
// from stored message content where present and marks the rest unknown.
// Returns the number of rows updated.
func BackfillFirstMessageType(ctx context.Context, store TransactionStore, network string) (int64, error) {
	var updated int64
	for {
		select {
		case <-ctx.Done():
			return updated, ctx.Err()
		default:
		}
		txs, err := store.ListMissingFirstMessageType(ctx, network, backfillBatchSize)
		if err != nil {
			return updated, err
		}
		if len(txs) == 0 {
			break
		}
		for _, tx := range txs {
			msgType := "unknown"
			if len(tx.Messages) > 0 && tx.Messages[0].Inner != "" {
				msgType = tx.Messages[0].Inner
			}
			if err := store.SetFirstMessageType(ctx, tx.Network, tx.TxHash, msgType); err != nil {
				return updated, err
			}
			updated++
		}
		if len(txs) < backfillBatchSize {
			break
		}
	}
	if updated > 0 {
		slog.Info("first-message-type backfill complete", "network", network, "updated", updated)
	}
	return updated, nil
}
