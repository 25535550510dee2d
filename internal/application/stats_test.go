package application

import (
	"context"
	"testing"
	"time"

	"chainindex/internal/domain"
)

func seedTx(store *memStore, hash, height, msgType string, t time.Time) {
	store.txs[skey("testnet", hash)] = domain.Transaction{
		Network: "testnet",
		TxHash:  hash,
		Height:  height,
		Type:    msgType,
		Time:    t,
	}
}

func TestIncrementIsMonotonic(t *testing.T) {
	store := newMemStore()
	aggregator, err := NewAggregator(store, AggregatorConfig{})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	seed := domain.TransactionStats{Network: "testnet", TotalCount: 10, Count24h: 4, LatestHeight: 100}
	if err := store.PutStats(ctx, seed); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		ev := statsEvent{network: "testnet", msgType: "/cosmos.bank.v1beta1.MsgSend", height: "101"}
		if err := aggregator.applyIncrement(ctx, ev); err != nil {
			t.Fatalf("increment %d failed: %v", i, err)
		}
	}

	stats, ok, _ := store.Stats(ctx, "testnet")
	if !ok {
		t.Fatal("stats row missing")
	}
	if stats.TotalCount != 15 {
		t.Errorf("totalCount = %d, want 15", stats.TotalCount)
	}
	if stats.Count24h != 9 {
		t.Errorf("count24h = %d, want 9", stats.Count24h)
	}
	if stats.CountByType["cosmos_bank_v1beta1_MsgSend"] != 5 {
		t.Errorf("per-type count = %d, want 5", stats.CountByType["cosmos_bank_v1beta1_MsgSend"])
	}
	if stats.LatestHeight != 101 {
		t.Errorf("latestHeight = %d, want 101", stats.LatestHeight)
	}
}

func TestIncrementNeverLowersWatermark(t *testing.T) {
	store := newMemStore()
	aggregator, _ := NewAggregator(store, AggregatorConfig{})
	ctx := context.Background()

	if err := aggregator.applyIncrement(ctx, statsEvent{network: "testnet", msgType: "a", height: "500"}); err != nil {
		t.Fatal(err)
	}
	if err := aggregator.applyIncrement(ctx, statsEvent{network: "testnet", msgType: "a", height: "200"}); err != nil {
		t.Fatal(err)
	}
	stats, _, _ := store.Stats(ctx, "testnet")
	if stats.LatestHeight != 500 {
		t.Errorf("latestHeight lowered to %d", stats.LatestHeight)
	}
}

func TestRecordSaveFlowsThroughWorker(t *testing.T) {
	store := newMemStore()
	aggregator, _ := NewAggregator(store, AggregatorConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go aggregator.Run(ctx, nil)

	for i := 0; i < 3; i++ {
		aggregator.RecordSave("testnet", "/cosmos.bank.v1beta1.MsgSend", "10")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stats, ok, _ := store.Stats(context.Background(), "testnet")
		if ok && stats.TotalCount == 3 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	stats, _, _ := store.Stats(context.Background(), "testnet")
	t.Fatalf("worker never applied increments, totalCount=%d", stats.TotalCount)
}

func TestUpdateStatsReconcilesHeightOrderings(t *testing.T) {
	store := newMemStore()
	aggregator, _ := NewAggregator(store, AggregatorConfig{})
	ctx := context.Background()
	now := time.Now().UTC()

	// "99" sorts above "100" under string collation; the recompute must keep
	// the numerically larger height.
	seedTx(store, "T1", "99", "/a.MsgA", now)
	seedTx(store, "T2", "100", "/a.MsgA", now)

	stats, err := aggregator.UpdateStats(ctx, "testnet")
	if err != nil {
		t.Fatal(err)
	}
	if stats.LatestHeight != 100 {
		t.Errorf("latestHeight = %d, want 100", stats.LatestHeight)
	}
	if stats.TotalCount != 2 {
		t.Errorf("totalCount = %d, want 2", stats.TotalCount)
	}
}

func TestUpdateStats24hWindowAndFallback(t *testing.T) {
	store := newMemStore()
	aggregator, _ := NewAggregator(store, AggregatorConfig{})
	ctx := context.Background()
	now := time.Now().UTC()

	store.blocks[skey("testnet", "1")] = domain.Block{Network: "testnet", Height: "1", BlockHash: "H1", NumTxs: 3, Time: now.Add(-2 * time.Hour)}
	store.blocks[skey("testnet", "2")] = domain.Block{Network: "testnet", Height: "2", BlockHash: "H2", NumTxs: 4, Time: now.Add(-30 * time.Hour)}

	stats, err := aggregator.UpdateStats(ctx, "testnet")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Count24h != 3 {
		t.Errorf("count24h = %d, want 3 (only the recent block)", stats.Count24h)
	}

	// With no block inside the window the recompute falls back to the newest
	// blocks by height.
	delete(store.blocks, skey("testnet", "1"))
	stats, err = aggregator.UpdateStats(ctx, "testnet")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Count24h != 4 {
		t.Errorf("fallback count24h = %d, want 4", stats.Count24h)
	}
}

func TestTotalCountComputesLazily(t *testing.T) {
	store := newMemStore()
	aggregator, _ := NewAggregator(store, AggregatorConfig{})
	ctx := context.Background()
	now := time.Now().UTC()

	seedTx(store, "T1", "5", "/a.MsgA", now)
	seedTx(store, "T2", "6", "/a.MsgB", now)

	total, err := aggregator.TotalCount(ctx, "testnet")
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if _, ok, _ := store.Stats(ctx, "testnet"); !ok {
		t.Error("lazy TotalCount must persist the computed stats")
	}
}

func TestInitializeStatsOnlyFillsMissing(t *testing.T) {
	store := newMemStore()
	aggregator, _ := NewAggregator(store, AggregatorConfig{})
	ctx := context.Background()

	existing := domain.TransactionStats{Network: "mainnet", TotalCount: 42}
	_ = store.PutStats(ctx, existing)
	seedTx(store, "T1", "5", "/a.MsgA", time.Now().UTC())

	aggregator.InitializeStats(ctx, []string{"mainnet", "testnet"})

	mainnet, _, _ := store.Stats(ctx, "mainnet")
	if mainnet.TotalCount != 42 {
		t.Errorf("existing stats overwritten: %d", mainnet.TotalCount)
	}
	testnet, ok, _ := store.Stats(ctx, "testnet")
	if !ok || testnet.TotalCount != 1 {
		t.Errorf("missing stats not initialized: ok=%v total=%d", ok, testnet.TotalCount)
	}
}
