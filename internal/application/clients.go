package application

import (
	"context"
	"encoding/json"

	"chainindex/internal/infrastructure/chainrpc"
)

// ChainClient is the upstream node surface the indexer consumes.
type ChainClient interface {
	LatestHeight(ctx context.Context) (int64, error)
	BlockByHeight(ctx context.Context, height string) (*chainrpc.RawBlock, error)
	BlockByHash(ctx context.Context, hash string) (*chainrpc.RawBlock, error)
	TxByHash(ctx context.Context, hash string) (*chainrpc.RawTxResult, error)
	TxsByHeight(ctx context.Context, height string) ([]chainrpc.RawTxResult, error)
	BlockRawByHeight(ctx context.Context, height string) (json.RawMessage, error)
	TxRawByHash(ctx context.Context, hash string) (json.RawMessage, error)
	TxsRawByHeight(ctx context.Context, height string) (json.RawMessage, error)
}

// Clients is the static network -> upstream client registry.
type Clients struct {
	byNetwork map[string]ChainClient
}

func NewClients(byNetwork map[string]ChainClient) *Clients {
	clients := make(map[string]ChainClient, len(byNetwork))
	for network, client := range byNetwork {
		clients[network] = client
	}
	return &Clients{byNetwork: clients}
}

func (c *Clients) ForNetwork(network string) (ChainClient, error) {
	client, ok := c.byNetwork[network]
	if !ok {
		return nil, &NotConfiguredError{Network: network}
	}
	return client, nil
}

func (c *Clients) Networks() []string {
	networks := make([]string, 0, len(c.byNetwork))
	for network := range c.byNetwork {
		networks = append(networks, network)
	}
	return networks
}
