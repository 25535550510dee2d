package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"chainindex/internal/decode"
	"chainindex/internal/domain"
)

func newTestQuery(t *testing.T, store *memStore, client *fakeClient) *QueryService {
	t.Helper()
	decoder, err := decode.NewDecoder(decode.NewRegistry(decode.DefaultManifest()))
	if err != nil {
		t.Fatal(err)
	}
	engine, err := NewPageEngine(store, PageEngineConfig{})
	if err != nil {
		t.Fatal(err)
	}
	aggregator, err := NewAggregator(store, AggregatorConfig{})
	if err != nil {
		t.Fatal(err)
	}
	clients := NewClients(map[string]ChainClient{"testnet": client})
	service, err := NewQueryService(store, clients, decoder, engine, aggregator)
	if err != nil {
		t.Fatal(err)
	}
	return service
}

func storeLiteTx(store *memStore, hash string) {
	store.txs[skey("testnet", hash)] = domain.Transaction{
		Network:          "testnet",
		TxHash:           hash,
		Height:           "42",
		Status:           domain.TxStatusSuccess,
		Type:             "/ibc.core.client.v1.MsgUpdateClient",
		FirstMessageType: "/ibc.lightclients.tendermint.v1.Header",
		Time:             time.Now().UTC(),
		IsLite:           true,
	}
}

func TestLiteTransactionRehydratedOnRead(t *testing.T) {
	store := newMemStore()
	client := newFakeClient(100)
	storeLiteTx(store, "LITE1")
	upstream := rawTx("LITE1", "42", 0, "", msgUpdateClient)
	client.txByHash["LITE1"] = &upstream
	service := newTestQuery(t, store, client)
	ctx := context.Background()

	tx, _, err := service.TransactionByHash(ctx, "testnet", "LITE1", false)
	if err != nil {
		t.Fatal(err)
	}
	if !tx.IsLite {
		t.Error("rehydrated response must still be marked lite")
	}
	if len(tx.Messages) != 1 || tx.Messages[0].Type != "/ibc.core.client.v1.MsgUpdateClient" {
		t.Fatalf("messages not rehydrated: %+v", tx.Messages)
	}

	// Rehydration is per-response; the stored record stays stripped.
	stored := store.txs[skey("testnet", "LITE1")]
	if len(stored.Messages) != 0 {
		t.Error("rehydrated content leaked into storage")
	}
	if store.upsertCalls != 0 {
		t.Errorf("read path must not write, saw %d upserts", store.upsertCalls)
	}
}

func TestLiteRehydrationDegradesWhenNodeLacksTx(t *testing.T) {
	store := newMemStore()
	storeLiteTx(store, "LITE2")
	service := newTestQuery(t, store, newFakeClient(100))

	tx, _, err := service.TransactionByHash(context.Background(), "testnet", "LITE2", false)
	if err != nil {
		t.Fatalf("missing upstream tx must degrade, not fail: %v", err)
	}
	if len(tx.Messages) != 0 || !tx.IsLite {
		t.Errorf("degraded response changed: %+v", tx)
	}
}

func TestTransactionByHashNotFound(t *testing.T) {
	service := newTestQuery(t, newMemStore(), newFakeClient(100))

	_, _, err := service.TransactionByHash(context.Background(), "testnet", "NOPE", false)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestBlockByHeightRawToggle(t *testing.T) {
	store := newMemStore()
	client := newFakeClient(100)
	client.blocks["7"] = rawBlock("7", "HASH7", time.Now().UTC(), 0)
	store.blocks[skey("testnet", "7")] = domain.Block{Network: "testnet", Height: "7", BlockHash: "HASH7"}
	store.byHash[skey("testnet", "HASH7")] = "7"
	service := newTestQuery(t, store, client)
	ctx := context.Background()

	block, payload, err := service.BlockByHeight(ctx, "testnet", "7", false)
	if err != nil {
		t.Fatal(err)
	}
	if block.BlockHash != "HASH7" || payload != nil {
		t.Errorf("normalized read wrong: hash=%q payload=%v", block.BlockHash, payload)
	}

	_, payload, err = service.BlockByHeight(ctx, "testnet", "7", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(payload) == 0 {
		t.Error("raw read returned no payload")
	}

	if _, _, err := service.BlockByHeight(ctx, "testnet", "8", false); err == nil {
		t.Error("missing block must return an error")
	}
}

func TestQueryRejectsUnknownNetwork(t *testing.T) {
	service := newTestQuery(t, newMemStore(), newFakeClient(100))

	_, _, err := service.BlockByHeight(context.Background(), "devnet", "1", true)
	var notConfigured *NotConfiguredError
	if !errors.As(err, &notConfigured) {
		t.Fatalf("expected NotConfiguredError, got %v", err)
	}
}

func TestTransactionsByHeight(t *testing.T) {
	store := newMemStore()
	now := time.Now().UTC()
	seedTx(store, "T1", "9", "/a.MsgA", now)
	seedTx(store, "T2", "9", "/a.MsgB", now)
	seedTx(store, "T3", "10", "/a.MsgA", now)
	service := newTestQuery(t, store, newFakeClient(100))

	txs, _, err := service.TransactionsByHeight(context.Background(), "testnet", "9", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 2 {
		t.Errorf("expected 2 txs at height 9, got %d", len(txs))
	}
}
