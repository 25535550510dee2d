package application

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strconv"
	"time"

	"chainindex/internal/decode"
	"chainindex/internal/domain"
	"chainindex/internal/infrastructure/chainrpc"
	"chainindex/internal/streaming"
)

// TxDecoder is the opaque message decoder collaborator.
type TxDecoder interface {
	DecodeTx(payload []byte) (decode.DecodedTx, error)
}

// StatsRecorder receives best-effort save notifications; implementations must
// never block or fail the caller.
type StatsRecorder interface {
	RecordSave(network, msgType, height string)
}

// Ingestor normalizes raw blocks and transactions and persists them. Both the
// live feed and the sync controller funnel into the same two operations, so
// there is exactly one normalization path.
type Ingestor struct {
	store     Store
	clients   *Clients
	directory ValidatorDirectory
	decoder   TxDecoder
	retention *RetentionPolicy
	stats     StatsRecorder
}

func NewIngestor(store Store, clients *Clients, directory ValidatorDirectory, decoder TxDecoder, retention *RetentionPolicy, stats StatsRecorder) (*Ingestor, error) {
	if store == nil || clients == nil || directory == nil || decoder == nil || retention == nil {
		return nil, &ValidationError{Field: "ingestor dependencies"}
	}
	return &Ingestor{
		store:     store,
		clients:   clients,
		directory: directory,
		decoder:   decoder,
		retention: retention,
		stats:     stats,
	}, nil
}

// ProcessBlock normalizes and persists one raw block. txs may carry the
// block's transaction results when the caller already fetched them; when gas
// totals are needed and txs is nil they are fetched from the upstream node.
func (ig *Ingestor) ProcessBlock(ctx context.Context, network string, raw *chainrpc.RawBlock, txs []chainrpc.RawTxResult) (domain.Block, error) {
	if raw == nil {
		return domain.Block{}, processingErr("process block", &ValidationError{Field: "block"})
	}
	header := raw.Block.Header
	if header.Height == "" {
		return domain.Block{}, processingErr("process block", &ValidationError{Field: "header.height"})
	}

	hash := raw.BlockID.Hash
	if hash == "" {
		// Push feeds sometimes omit the block id; backfill it once from the
		// node before the first write so the unique key is complete.
		client, err := ig.clients.ForNetwork(network)
		if err != nil {
			return domain.Block{}, processingErr("process block", err)
		}
		fetched, err := client.BlockByHeight(ctx, header.Height)
		if err != nil {
			return domain.Block{}, processingErr("process block: backfill hash", err)
		}
		hash = fetched.BlockID.Hash
	}

	proposer := header.ProposerAddress
	if resolved, ok, err := ig.directory.Resolve(ctx, network, header.ProposerAddress); err != nil {
		slog.Warn("proposer lookup failed", "network", network, "height", header.Height, "error", err)
	} else if ok {
		proposer = resolved
	} else {
		slog.Warn("proposer not in validator directory", "network", network, "address", header.ProposerAddress)
	}

	signatures := make([]domain.SignatureEntry, 0, len(raw.Block.LastCommit.Signatures))
	for _, sig := range raw.Block.LastCommit.Signatures {
		if sig.ValidatorAddress == "" {
			continue
		}
		entry := domain.SignatureEntry{Address: sig.ValidatorAddress, Timestamp: sig.Timestamp}
		if resolved, ok, err := ig.directory.Resolve(ctx, network, sig.ValidatorAddress); err == nil && ok {
			entry.Validator = resolved
		}
		signatures = append(signatures, entry)
	}

	gasWanted, gasUsed, err := ig.blockGasTotals(ctx, network, raw, txs)
	if err != nil {
		return domain.Block{}, processingErr("process block: gas totals", err)
	}

	block := domain.Block{
		Network:        network,
		Height:         header.Height,
		BlockHash:      hash,
		Proposer:       proposer,
		NumTxs:         int64(len(raw.Block.Data.Txs)),
		Time:           header.Time,
		Signatures:     signatures,
		AppHash:        header.AppHash,
		TotalGasWanted: gasWanted,
		TotalGasUsed:   gasUsed,
	}
	if err := ig.store.UpsertBlock(ctx, block); err != nil {
		return domain.Block{}, processingErr("store block", err)
	}
	return block, nil
}

func (ig *Ingestor) blockGasTotals(ctx context.Context, network string, raw *chainrpc.RawBlock, txs []chainrpc.RawTxResult) (int64, int64, error) {
	if raw.TotalGasWanted != "" || raw.TotalGasUsed != "" {
		wanted, _ := strconv.ParseInt(raw.TotalGasWanted, 10, 64)
		used, _ := strconv.ParseInt(raw.TotalGasUsed, 10, 64)
		return wanted, used, nil
	}
	if len(raw.Block.Data.Txs) == 0 {
		return 0, 0, nil
	}
	if txs == nil {
		client, err := ig.clients.ForNetwork(network)
		if err != nil {
			return 0, 0, err
		}
		fetched, err := client.TxsByHeight(ctx, raw.Block.Header.Height)
		if err != nil {
			return 0, 0, err
		}
		txs = fetched
	}
	var wanted, used int64
	for _, tx := range txs {
		if v, err := strconv.ParseInt(tx.TxResult.GasWanted, 10, 64); err == nil {
			wanted += v
		}
		if v, err := strconv.ParseInt(tx.TxResult.GasUsed, 10, 64); err == nil {
			used += v
		}
	}
	return wanted, used, nil
}

// ProcessTx normalizes and persists one raw transaction result. blockTime is
// used when the raw result carries no timestamp; a zero blockTime triggers a
// single block lookup.
func (ig *Ingestor) ProcessTx(ctx context.Context, network string, raw *chainrpc.RawTxResult, blockTime time.Time) (domain.Transaction, error) {
	if raw == nil {
		return domain.Transaction{}, processingErr("process tx", &ValidationError{Field: "tx"})
	}
	if raw.Hash == "" {
		return domain.Transaction{}, processingErr("process tx", &ValidationError{Field: "hash"})
	}
	if raw.Height == "" {
		return domain.Transaction{}, processingErr("process tx", &ValidationError{Field: "height"})
	}

	payload, err := base64.StdEncoding.DecodeString(raw.Tx)
	if err != nil {
		return domain.Transaction{}, processingErr("process tx", &DecodeError{Cause: err})
	}
	decoded, err := ig.decoder.DecodeTx(payload)
	if err != nil {
		return domain.Transaction{}, processingErr("process tx", &DecodeError{Cause: err})
	}

	status := domain.TxStatusSuccess
	reason := ""
	if raw.TxResult.Code != 0 {
		status = domain.TxStatusFailed
		reason = raw.TxResult.Log
	}

	first := decoded.Messages[0]
	firstMessageType := first.Inner
	if firstMessageType == "" {
		firstMessageType = "unknown"
	}

	txTime := raw.Timestamp
	if txTime.IsZero() {
		txTime = blockTime
	}
	if txTime.IsZero() {
		if fetched, ok, err := ig.store.BlockByHeight(ctx, network, raw.Height); err == nil && ok {
			txTime = fetched.Time
		} else if client, cerr := ig.clients.ForNetwork(network); cerr == nil {
			if block, berr := client.BlockByHeight(ctx, raw.Height); berr == nil {
				txTime = block.Block.Header.Time
			}
		}
	}

	tx := domain.Transaction{
		Network:          network,
		TxHash:           raw.Hash,
		Height:           raw.Height,
		Status:           status,
		Fee:              decoded.Fee,
		MessageCount:     len(decoded.Messages),
		Type:             first.Type,
		FirstMessageType: firstMessageType,
		Reason:           reason,
		Time:             txTime,
		Messages:         decoded.Messages,
	}

	stored, err := ig.retention.Persist(ctx, tx)
	if err != nil {
		return domain.Transaction{}, processingErr("store tx", err)
	}
	if ig.stats != nil {
		ig.stats.RecordSave(network, first.Type, raw.Height)
	}
	return stored, nil
}

// HandleNewBlock is the handler boundary for raw block events. Failures are
// logged and the event dropped; one bad event never stops the pipeline.
func (ig *Ingestor) HandleNewBlock(ctx context.Context, env streaming.Envelope) {
	if env.Kind != streaming.EnvelopeKindBlock || env.Block == nil {
		slog.Error("dropping event: not a block envelope", "kind", env.Kind, "network", env.Network)
		return
	}
	if _, err := ig.ProcessBlock(ctx, env.Network, env.Block, nil); err != nil {
		slog.Error("dropping block event", "network", env.Network, "height", env.Block.Block.Header.Height, "error", err)
	}
}

// HandleNewTransaction is the handler boundary for raw transaction events.
func (ig *Ingestor) HandleNewTransaction(ctx context.Context, env streaming.Envelope) {
	if env.Kind != streaming.EnvelopeKindTx || env.Tx == nil {
		slog.Error("dropping event: not a tx envelope", "kind", env.Kind, "network", env.Network)
		return
	}
	if _, err := ig.ProcessTx(ctx, env.Network, env.Tx, time.Time{}); err != nil {
		slog.Error("dropping tx event", "network", env.Network, "hash", env.Tx.Hash, "error", err)
	}
}
