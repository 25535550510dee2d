package application

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"chainindex/internal/domain"
	"chainindex/internal/infrastructure/chainrpc"
)

// memStore is an in-memory Store with the same key and ordering semantics as
// the real repositories.
type memStore struct {
	mu      sync.Mutex
	blocks  map[string]domain.Block            // network|height
	byHash  map[string]string                  // network|hash -> height
	txs     map[string]domain.Transaction      // network|txHash
	txSaved map[string]time.Time               // network|txHash -> record-creation time
	stats   map[string]domain.TransactionStats // network
	clock   func() time.Time

	upsertTxErr    error
	upsertBlockErr error
	latestCalls    int
	upsertCalls    int
	latestGate     chan struct{}
}

func newMemStore() *memStore {
	return &memStore{
		blocks:  make(map[string]domain.Block),
		byHash:  make(map[string]string),
		txs:     make(map[string]domain.Transaction),
		txSaved: make(map[string]time.Time),
		stats:   make(map[string]domain.TransactionStats),
		clock:   time.Now,
	}
}

func skey(network, id string) string { return network + "|" + id }

func (m *memStore) UpsertBlock(ctx context.Context, block domain.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertBlockErr != nil {
		return m.upsertBlockErr
	}
	key := skey(block.Network, block.Height)
	if existing, ok := m.blocks[key]; ok {
		// Immutable after first write, except hash backfill.
		if existing.BlockHash == "" && block.BlockHash != "" {
			existing.BlockHash = block.BlockHash
			m.blocks[key] = existing
			m.byHash[skey(block.Network, block.BlockHash)] = block.Height
		}
		return nil
	}
	// (network, block_hash) is a unique key; a replay of a known hash under a
	// different height is a benign no-op.
	if block.BlockHash != "" {
		if _, ok := m.byHash[skey(block.Network, block.BlockHash)]; ok {
			return nil
		}
	}
	m.blocks[key] = block
	m.byHash[skey(block.Network, block.BlockHash)] = block.Height
	return nil
}

func (m *memStore) BlockByHeight(ctx context.Context, network, height string) (domain.Block, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	block, ok := m.blocks[skey(network, height)]
	return block, ok, nil
}

func (m *memStore) BlockByHash(ctx context.Context, network, hash string) (domain.Block, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	height, ok := m.byHash[skey(network, hash)]
	if !ok {
		return domain.Block{}, false, nil
	}
	block, ok := m.blocks[skey(network, height)]
	return block, ok, nil
}

func (m *memStore) LatestBlock(ctx context.Context, network string) (domain.Block, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest domain.Block
	found := false
	for _, block := range m.blocks {
		if block.Network != network {
			continue
		}
		if !found || domain.CompareHeights(block.Height, latest.Height) > 0 {
			latest = block
			found = true
		}
	}
	return latest, found, nil
}

func (m *memStore) SumBlockTxsSince(ctx context.Context, network string, since time.Time) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum, count int64
	for _, block := range m.blocks {
		if block.Network == network && !block.Time.Before(since) {
			sum += block.NumTxs
			count++
		}
	}
	return sum, count, nil
}

func (m *memStore) SumBlockTxsLastN(ctx context.Context, network string, n int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blocks := make([]domain.Block, 0)
	for _, block := range m.blocks {
		if block.Network == network {
			blocks = append(blocks, block)
		}
	}
	sort.Slice(blocks, func(a, b int) bool {
		return domain.CompareHeights(blocks[a].Height, blocks[b].Height) > 0
	})
	if len(blocks) > n {
		blocks = blocks[:n]
	}
	var sum int64
	for _, block := range blocks {
		sum += block.NumTxs
	}
	return sum, nil
}

func (m *memStore) UpsertTransaction(ctx context.Context, tx domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if m.upsertTxErr != nil {
		return m.upsertTxErr
	}
	key := skey(tx.Network, tx.TxHash)
	if _, ok := m.txSaved[key]; !ok {
		m.txSaved[key] = m.clock().UTC()
	}
	m.txs[key] = tx
	return nil
}

func (m *memStore) TransactionByHash(ctx context.Context, network, hash string) (domain.Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[skey(network, hash)]
	return tx, ok, nil
}

func (m *memStore) TransactionsByHeight(ctx context.Context, network, height string) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var txs []domain.Transaction
	for _, tx := range m.txs {
		if tx.Network == network && tx.Height == height {
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(a, b int) bool { return txs[a].TxHash < txs[b].TxHash })
	return txs, nil
}

func (m *memStore) ordered(network string) []domain.Transaction {
	var txs []domain.Transaction
	for _, tx := range m.txs {
		if tx.Network == network {
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(a, b int) bool {
		if c := domain.CompareHeights(txs[a].Height, txs[b].Height); c != 0 {
			return c > 0
		}
		if !txs[a].Time.Equal(txs[b].Time) {
			return txs[a].Time.After(txs[b].Time)
		}
		return txs[a].TxHash > txs[b].TxHash
	})
	return txs
}

func (m *memStore) LatestTransactions(ctx context.Context, network string, limit int) ([]domain.Transaction, error) {
	m.mu.Lock()
	m.latestCalls++
	gate := m.latestGate
	wait := gate != nil && m.latestCalls > 1
	txs := m.ordered(network)
	m.mu.Unlock()
	if wait {
		<-gate
	}
	if len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func olderThan(tx domain.Transaction, cursor domain.Cursor) bool {
	if c := domain.CompareHeights(tx.Height, cursor.Height); c != 0 {
		return c < 0
	}
	return tx.Time.Before(cursor.Time)
}

func newerThan(tx domain.Transaction, cursor domain.Cursor) bool {
	if c := domain.CompareHeights(tx.Height, cursor.Height); c != 0 {
		return c > 0
	}
	return tx.Time.After(cursor.Time)
}

func (m *memStore) TransactionsBefore(ctx context.Context, network string, cursor domain.Cursor, limit int) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var page []domain.Transaction
	for _, tx := range m.ordered(network) {
		if !olderThan(tx, cursor) {
			continue
		}
		page = append(page, tx)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (m *memStore) TransactionsAfter(ctx context.Context, network string, cursor domain.Cursor, limit int) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ordered := m.ordered(network)
	var page []domain.Transaction
	for i := len(ordered) - 1; i >= 0; i-- {
		if !newerThan(ordered[i], cursor) {
			continue
		}
		page = append(page, ordered[i])
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (m *memStore) TransactionsPage(ctx context.Context, network string, page, limit int) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txs := m.ordered(network)
	offset := (page - 1) * limit
	if offset >= len(txs) {
		return nil, nil
	}
	txs = txs[offset:]
	if len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func (m *memStore) CountTransactions(ctx context.Context, network string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, tx := range m.txs {
		if tx.Network == network {
			count++
		}
	}
	return count, nil
}

func (m *memStore) TransactionCountsByType(ctx context.Context, network string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int64)
	for _, tx := range m.txs {
		if tx.Network == network {
			counts[tx.Type]++
		}
	}
	return counts, nil
}

func (m *memStore) CountFullByTypeSince(ctx context.Context, network, msgType string, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for key, tx := range m.txs {
		if tx.Network == network && tx.Type == msgType && !tx.IsLite && !m.txSaved[key].Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memStore) MaxHeightStringSort(ctx context.Context, network string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := ""
	found := false
	for _, tx := range m.txs {
		if tx.Network != network {
			continue
		}
		if !found || tx.Height > max {
			max = tx.Height
			found = true
		}
	}
	return max, found, nil
}

func (m *memStore) MaxHeightNumeric(ctx context.Context, network string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	found := false
	for _, tx := range m.txs {
		if tx.Network != network {
			continue
		}
		if value, err := domain.HeightValue(tx.Height); err == nil {
			if !found || value > max {
				max = value
				found = true
			}
		}
	}
	return max, found, nil
}

func (m *memStore) ListMissingFirstMessageType(ctx context.Context, network string, limit int) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var txs []domain.Transaction
	for _, tx := range m.txs {
		if tx.Network == network && tx.FirstMessageType == "" {
			txs = append(txs, tx)
			if len(txs) == limit {
				break
			}
		}
	}
	return txs, nil
}

func (m *memStore) SetFirstMessageType(ctx context.Context, network, hash, msgType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[skey(network, hash)]
	if !ok {
		return fmt.Errorf("transaction %s not found", hash)
	}
	tx.FirstMessageType = msgType
	m.txs[skey(network, hash)] = tx
	return nil
}

func (m *memStore) Stats(ctx context.Context, network string) (domain.TransactionStats, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats, ok := m.stats[network]
	return stats, ok, nil
}

func (m *memStore) PutStats(ctx context.Context, stats domain.TransactionStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[stats.Network] = stats
	return nil
}

// fakeClient is a scripted upstream node.
type fakeClient struct {
	mu          sync.Mutex
	head        int64
	blocks      map[string]*chainrpc.RawBlock
	blockErrs   map[string]error
	txsByHeight map[string][]chainrpc.RawTxResult
	txByHash    map[string]*chainrpc.RawTxResult
	blockCalls  int
}

func newFakeClient(head int64) *fakeClient {
	return &fakeClient{
		head:        head,
		blocks:      make(map[string]*chainrpc.RawBlock),
		blockErrs:   make(map[string]error),
		txsByHeight: make(map[string][]chainrpc.RawTxResult),
		txByHash:    make(map[string]*chainrpc.RawTxResult),
	}
}

func (f *fakeClient) LatestHeight(ctx context.Context) (int64, error) {
	return f.head, nil
}

func (f *fakeClient) BlockByHeight(ctx context.Context, height string) (*chainrpc.RawBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockCalls++
	if err, ok := f.blockErrs[height]; ok {
		return nil, err
	}
	block, ok := f.blocks[height]
	if !ok {
		return nil, fmt.Errorf("%w: height %s", chainrpc.ErrNotFound, height)
	}
	return block, nil
}

func (f *fakeClient) BlockByHash(ctx context.Context, hash string) (*chainrpc.RawBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, block := range f.blocks {
		if block.BlockID.Hash == hash {
			return block, nil
		}
	}
	return nil, chainrpc.ErrNotFound
}

func (f *fakeClient) TxByHash(ctx context.Context, hash string) (*chainrpc.RawTxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txByHash[hash]
	if !ok {
		return nil, chainrpc.ErrNotFound
	}
	return tx, nil
}

func (f *fakeClient) TxsByHeight(ctx context.Context, height string) ([]chainrpc.RawTxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.txsByHeight[height], nil
}

func (f *fakeClient) BlockRawByHeight(ctx context.Context, height string) (json.RawMessage, error) {
	block, err := f.BlockByHeight(ctx, height)
	if err != nil {
		return nil, err
	}
	return json.Marshal(block)
}

func (f *fakeClient) TxRawByHash(ctx context.Context, hash string) (json.RawMessage, error) {
	tx, err := f.TxByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tx)
}

func (f *fakeClient) TxsRawByHeight(ctx context.Context, height string) (json.RawMessage, error) {
	txs, err := f.TxsByHeight(ctx, height)
	if err != nil {
		return nil, err
	}
	return json.Marshal(txs)
}

// fakeDirectory resolves a fixed set of consensus addresses.
type fakeDirectory struct {
	identities map[string]string
}

func (f *fakeDirectory) Resolve(ctx context.Context, network, consensusAddr string) (string, bool, error) {
	id, ok := f.identities[consensusAddr]
	return id, ok, nil
}

// rawTx builds a scripted tx result whose payload is the decoded-form
// envelope the registry decoder understands.
func rawTx(hash, height string, code uint32, failLog, msgJSON string) chainrpc.RawTxResult {
	envelope := fmt.Sprintf(`{
		"body": {"messages": [%s]},
		"auth_info": {"fee": {"amount": [{"denom": "uatom", "amount": "5000"}], "gas_limit": "200000"}}
	}`, msgJSON)
	return chainrpc.RawTxResult{
		Hash:   hash,
		Height: height,
		Tx:     base64.StdEncoding.EncodeToString([]byte(envelope)),
		TxResult: chainrpc.RawTxResponse{
			Code:      code,
			Log:       failLog,
			GasWanted: "100000",
			GasUsed:   "80000",
		},
	}
}

func rawBlock(height, hash string, t time.Time, txCount int) *chainrpc.RawBlock {
	block := &chainrpc.RawBlock{}
	block.BlockID.Hash = hash
	block.Block.Header.Height = height
	block.Block.Header.Time = t
	block.Block.Header.ProposerAddress = "CONSADDR1"
	for i := 0; i < txCount; i++ {
		block.Block.Data.Txs = append(block.Block.Data.Txs, fmt.Sprintf("tx-%d", i))
	}
	return block
}

const msgSend = `{"@type": "/cosmos.bank.v1beta1.MsgSend", "from_address": "cosmos1a", "to_address": "cosmos1b"}`
const msgUpdateClient = `{"@type": "/ibc.core.client.v1.MsgUpdateClient", "client_message": {"@type": "/ibc.lightclients.tendermint.v1.Header"}}`
