package application

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"

	"chainindex/internal/domain"
)

// QueryService is the read surface consumed by the API layer. Every lookup
// supports a raw-vs-normalized toggle; raw responses come straight from the
// upstream node.
type QueryService struct {
	store   Store
	clients *Clients
	decoder TxDecoder
	pages   *PageEngine
	stats   *Aggregator
}

func NewQueryService(store Store, clients *Clients, decoder TxDecoder, pages *PageEngine, stats *Aggregator) (*QueryService, error) {
	if store == nil || clients == nil || decoder == nil || pages == nil || stats == nil {
		return nil, &ValidationError{Field: "query dependencies"}
	}
	return &QueryService{
		store:   store,
		clients: clients,
		decoder: decoder,
		pages:   pages,
		stats:   stats,
	}, nil
}

func (q *QueryService) BlockByHeight(ctx context.Context, network, height string, raw bool) (domain.Block, json.RawMessage, error) {
	if raw {
		client, err := q.clients.ForNetwork(network)
		if err != nil {
			return domain.Block{}, nil, err
		}
		payload, err := client.BlockRawByHeight(ctx, height)
		if err != nil {
			return domain.Block{}, nil, err
		}
		return domain.Block{}, payload, nil
	}
	block, ok, err := q.store.BlockByHeight(ctx, network, height)
	if err != nil {
		return domain.Block{}, nil, err
	}
	if !ok {
		return domain.Block{}, nil, &NotFoundError{Kind: "block", Key: height}
	}
	return block, nil, nil
}

func (q *QueryService) BlockByHash(ctx context.Context, network, hash string) (domain.Block, error) {
	block, ok, err := q.store.BlockByHash(ctx, network, hash)
	if err != nil {
		return domain.Block{}, err
	}
	if !ok {
		return domain.Block{}, &NotFoundError{Kind: "block", Key: hash}
	}
	return block, nil
}

func (q *QueryService) LatestBlock(ctx context.Context, network string) (domain.Block, error) {
	block, ok, err := q.store.LatestBlock(ctx, network)
	if err != nil {
		return domain.Block{}, err
	}
	if !ok {
		return domain.Block{}, &NotFoundError{Kind: "block", Key: "latest"}
	}
	return block, nil
}

// TransactionByHash returns one transaction. A lite record is transparently
// rehydrated: full content is fetched from the node for this response only
// and never written back, so storage stays bounded.
func (q *QueryService) TransactionByHash(ctx context.Context, network, hash string, raw bool) (domain.Transaction, json.RawMessage, error) {
	if raw {
		client, err := q.clients.ForNetwork(network)
		if err != nil {
			return domain.Transaction{}, nil, err
		}
		payload, err := client.TxRawByHash(ctx, hash)
		if err != nil {
			return domain.Transaction{}, nil, err
		}
		return domain.Transaction{}, payload, nil
	}
	tx, ok, err := q.store.TransactionByHash(ctx, network, hash)
	if err != nil {
		return domain.Transaction{}, nil, err
	}
	if !ok {
		return domain.Transaction{}, nil, &NotFoundError{Kind: "transaction", Key: hash}
	}
	if tx.IsLite && len(tx.Messages) == 0 {
		tx = q.rehydrate(ctx, tx)
	}
	return tx, nil, nil
}

func (q *QueryService) rehydrate(ctx context.Context, tx domain.Transaction) domain.Transaction {
	client, err := q.clients.ForNetwork(tx.Network)
	if err != nil {
		slog.Warn("lite rehydration unavailable", "network", tx.Network, "hash", tx.TxHash, "error", err)
		return tx
	}
	rawTx, err := client.TxByHash(ctx, tx.TxHash)
	if err != nil {
		slog.Warn("lite rehydration fetch failed", "network", tx.Network, "hash", tx.TxHash, "error", err)
		return tx
	}
	payload, err := base64.StdEncoding.DecodeString(rawTx.Tx)
	if err != nil {
		slog.Warn("lite rehydration decode failed", "network", tx.Network, "hash", tx.TxHash, "error", err)
		return tx
	}
	decoded, err := q.decoder.DecodeTx(payload)
	if err != nil {
		slog.Warn("lite rehydration decode failed", "network", tx.Network, "hash", tx.TxHash, "error", err)
		return tx
	}
	tx.Messages = decoded.Messages
	return tx
}

func (q *QueryService) TransactionsByHeight(ctx context.Context, network, height string, raw bool) ([]domain.Transaction, json.RawMessage, error) {
	if raw {
		client, err := q.clients.ForNetwork(network)
		if err != nil {
			return nil, nil, err
		}
		payload, err := client.TxsRawByHeight(ctx, height)
		if err != nil {
			return nil, nil, err
		}
		return nil, payload, nil
	}
	txs, err := q.store.TransactionsByHeight(ctx, network, height)
	if err != nil {
		return nil, nil, err
	}
	return txs, nil, nil
}

func (q *QueryService) LatestTransactions(ctx context.Context, req PageRequest) (Page, error) {
	return q.pages.LatestTransactions(ctx, req)
}

func (q *QueryService) TotalTransactions(ctx context.Context, network string) (int64, error) {
	return q.stats.TotalCount(ctx, network)
}
