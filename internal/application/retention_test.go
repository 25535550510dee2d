package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"chainindex/internal/domain"
)

func liteEligibleTx(n int, now time.Time) domain.Transaction {
	return domain.Transaction{
		Network:          "testnet",
		TxHash:           fmt.Sprintf("LITE%d", n),
		Height:           domain.FormatHeight(int64(100 + n)),
		Status:           domain.TxStatusSuccess,
		Type:             "/ibc.core.client.v1.MsgUpdateClient",
		FirstMessageType: "/ibc.lightclients.tendermint.v1.Header",
		Time:             now.Add(time.Duration(n) * time.Second),
		Messages: []domain.Message{{
			Type:    "/ibc.core.client.v1.MsgUpdateClient",
			Content: []byte(`{"client_id":"07-tendermint-0"}`),
		}},
	}
}

func TestRetentionCeilingWithinWindow(t *testing.T) {
	store := newMemStore()
	policy, err := NewRetentionPolicy(store, RetentionConfig{MaxFullPerWindow: 5})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 1; i <= 6; i++ {
		if _, err := policy.Persist(ctx, liteEligibleTx(i, now)); err != nil {
			t.Fatalf("save %d failed: %v", i, err)
		}
	}

	var full, lite int
	for _, tx := range store.txs {
		if tx.IsLite {
			lite++
			if len(tx.Messages) != 0 {
				t.Errorf("%s: lite record still has content", tx.TxHash)
			}
		} else {
			full++
			if len(tx.Messages) == 0 {
				t.Errorf("%s: full record lost content", tx.TxHash)
			}
		}
	}
	if full != 5 || lite != 1 {
		t.Errorf("expected 5 full and 1 lite, got %d full %d lite", full, lite)
	}

	sixth, ok, _ := store.TransactionByHash(ctx, "testnet", "LITE6")
	if !ok || !sixth.IsLite {
		t.Errorf("sixth record should be lite: ok=%v lite=%v", ok, sixth.IsLite)
	}
}

func TestRetentionIgnoresRecordsOutsideWindow(t *testing.T) {
	store := newMemStore()
	policy, err := NewRetentionPolicy(store, RetentionConfig{MaxFullPerWindow: 2, Window: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	now := time.Now().UTC()

	// Two full records saved well outside the rolling window must not count
	// against the ceiling.
	store.clock = func() time.Time { return now.Add(-3 * time.Hour) }
	for i := 1; i <= 2; i++ {
		if _, err := policy.Persist(ctx, liteEligibleTx(i, now.Add(-3*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}
	store.clock = time.Now
	fresh, err := policy.Persist(ctx, liteEligibleTx(3, now))
	if err != nil {
		t.Fatal(err)
	}
	if fresh.IsLite {
		t.Error("record inside a fresh window must be stored full")
	}
}

func TestRetentionCeilingBindsDuringCatchUp(t *testing.T) {
	store := newMemStore()
	policy, err := NewRetentionPolicy(store, RetentionConfig{MaxFullPerWindow: 5, Window: 24 * time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	// A catch-up replays transactions whose chain timestamps are far older
	// than the window; the quota must still fill, because it ages by when the
	// record was saved, not by when the chain produced it.
	old := time.Now().UTC().Add(-30 * 24 * time.Hour)
	for i := 1; i <= 8; i++ {
		if _, err := policy.Persist(ctx, liteEligibleTx(i, old)); err != nil {
			t.Fatalf("save %d failed: %v", i, err)
		}
	}

	var full, lite int
	for _, tx := range store.txs {
		if tx.IsLite {
			lite++
		} else {
			full++
		}
	}
	if full != 5 || lite != 3 {
		t.Errorf("expected 5 full and 3 lite, got %d full %d lite", full, lite)
	}
}

func TestRetentionNeverStripsOtherTypes(t *testing.T) {
	store := newMemStore()
	policy, _ := NewRetentionPolicy(store, RetentionConfig{MaxFullPerWindow: 1})
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 1; i <= 10; i++ {
		tx := liteEligibleTx(i, now)
		tx.TxHash = fmt.Sprintf("SEND%d", i)
		tx.Type = "/cosmos.bank.v1beta1.MsgSend"
		stored, err := policy.Persist(ctx, tx)
		if err != nil {
			t.Fatal(err)
		}
		if stored.IsLite || len(stored.Messages) == 0 {
			t.Fatalf("save %d: non-eligible type was stripped", i)
		}
	}
}

func TestRetentionKnobsAdjustableAtRuntime(t *testing.T) {
	store := newMemStore()
	policy, _ := NewRetentionPolicy(store, RetentionConfig{MaxFullPerWindow: 5})
	ctx := context.Background()
	now := time.Now().UTC().Add(-10 * time.Minute)

	if _, err := policy.Persist(ctx, liteEligibleTx(1, now)); err != nil {
		t.Fatal(err)
	}

	policy.SetMaxFullPerWindow(1)
	second, err := policy.Persist(ctx, liteEligibleTx(2, now))
	if err != nil {
		t.Fatal(err)
	}
	if !second.IsLite {
		t.Error("lowered ceiling must apply to the next save")
	}

	// Shrinking the window below the age of the stored full record frees the
	// quota again.
	policy.SetWindow(time.Nanosecond)
	third, err := policy.Persist(ctx, liteEligibleTx(3, now.Add(time.Minute)))
	if err != nil {
		t.Fatal(err)
	}
	if third.IsLite {
		t.Error("shrunken window must free the full-content quota")
	}
}
