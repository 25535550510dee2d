package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"chainindex/internal/infrastructure/chainrpc"
)

func newTestSync(t *testing.T, store *memStore, client *fakeClient) *SyncController {
	t.Helper()
	ingestor, _ := newTestIngestor(t, store, client, nil)
	controller, err := NewSyncController(store, NewClients(map[string]ChainClient{"testnet": client}), ingestor, SyncConfig{})
	if err != nil {
		t.Fatal(err)
	}
	return controller
}

func seedChain(client *fakeClient, from, to int64) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for h := from; h <= to; h++ {
		height := fmt.Sprintf("%d", h)
		client.blocks[height] = rawBlock(height, "HASH"+height, base.Add(time.Duration(h)*time.Minute), 0)
	}
}

func TestSyncFallsBackWhenStartHeightPruned(t *testing.T) {
	store := newMemStore()
	client := newFakeClient(100)
	seedChain(client, 91, 100)
	client.blockErrs["50"] = errors.New("height 50 is not available, lowest height is 80")
	controller := newTestSync(t, store, client)

	from := int64(50)
	if err := controller.StartSync(context.Background(), "testnet", &from, nil); err != nil {
		t.Fatalf("fallback sync must not surface the pruned-height error: %v", err)
	}

	for h := int64(91); h <= 100; h++ {
		if _, ok, _ := store.BlockByHeight(context.Background(), "testnet", fmt.Sprintf("%d", h)); !ok {
			t.Errorf("block %d missing after fallback sync", h)
		}
	}
	if len(store.blocks) != 10 {
		t.Errorf("expected the trailing 10 blocks, got %d", len(store.blocks))
	}
}

func TestSyncRejectsConcurrentRun(t *testing.T) {
	store := newMemStore()
	client := newFakeClient(5)
	seedChain(client, 1, 5)
	controller := newTestSync(t, store, client)

	if !controller.tryAcquire("testnet") {
		t.Fatal("guard acquisition failed")
	}
	defer controller.release("testnet")

	if err := controller.StartSync(context.Background(), "testnet", nil, nil); err != nil {
		t.Fatalf("rejected sync must not error: %v", err)
	}
	if len(store.blocks) != 0 {
		t.Error("rejected sync must not process any heights")
	}
}

func TestSyncStopsAtChainHead(t *testing.T) {
	store := newMemStore()
	client := newFakeClient(5)
	seedChain(client, 1, 5)
	controller := newTestSync(t, store, client)

	from, count := int64(1), int64(100)
	if err := controller.StartSync(context.Background(), "testnet", &from, &count); err != nil {
		t.Fatal(err)
	}
	if len(store.blocks) != 5 {
		t.Errorf("expected sync to stop at head 5, stored %d blocks", len(store.blocks))
	}
}

func TestSyncResumesAfterStoredHead(t *testing.T) {
	store := newMemStore()
	client := newFakeClient(5)
	seedChain(client, 1, 5)
	controller := newTestSync(t, store, client)
	ctx := context.Background()

	// Index already holds heights up to 3; sync must continue from 4.
	ingestor, _ := newTestIngestor(t, store, client, nil)
	for h := int64(1); h <= 3; h++ {
		if _, err := ingestor.ProcessBlock(ctx, "testnet", client.blocks[fmt.Sprintf("%d", h)], nil); err != nil {
			t.Fatal(err)
		}
	}
	client.blockCalls = 0

	if err := controller.StartSync(ctx, "testnet", nil, nil); err != nil {
		t.Fatal(err)
	}
	if len(store.blocks) != 5 {
		t.Errorf("expected 5 blocks, got %d", len(store.blocks))
	}
	if client.blockCalls != 2 {
		t.Errorf("expected fetches for heights 4 and 5 only, got %d", client.blockCalls)
	}
}

func TestSyncSkipsFailingTransaction(t *testing.T) {
	store := newMemStore()
	client := newFakeClient(2)
	seedChain(client, 1, 2)
	client.blocks["2"] = rawBlock("2", "HASH2", time.Now().UTC(), 1)
	bad := rawTx("TXBAD", "2", 0, "", msgSend)
	bad.Tx = "not-base64"
	client.txsByHeight["2"] = []chainrpc.RawTxResult{bad}
	controller := newTestSync(t, store, client)

	if err := controller.StartSync(context.Background(), "testnet", nil, nil); err != nil {
		t.Fatalf("tx failure must not abort the sync: %v", err)
	}
	if _, ok, _ := store.BlockByHeight(context.Background(), "testnet", "2"); !ok {
		t.Error("block 2 missing")
	}
	if len(store.txs) != 0 {
		t.Error("malformed tx must be skipped")
	}
}

func TestSyncPropagatesPersistenceFailure(t *testing.T) {
	store := newMemStore()
	store.upsertBlockErr = errors.New("disk full")
	client := newFakeClient(2)
	seedChain(client, 1, 2)
	controller := newTestSync(t, store, client)

	if err := controller.StartSync(context.Background(), "testnet", nil, nil); err == nil {
		t.Fatal("unrecoverable persistence failure must surface")
	}
}
