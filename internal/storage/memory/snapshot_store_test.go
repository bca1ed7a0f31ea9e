package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

func TestPositionSnapshotStoreScoringGuard(t *testing.T) {
	ctx := context.Background()
	store := NewPositionSnapshotStore()

	snap := &domain.PositionSnapshot{
		ID:         "snap-1",
		PositionID: "pos-1",
		Event:      domain.EventMint,
		Block:      100,
		Timestamp:  1_700_000_000_000,
	}
	if err := store.Insert(ctx, snap); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Insert(ctx, snap); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("duplicate Insert: got %v, want ErrDuplicateKey", err)
	}

	if _, err := store.Find(ctx, "pos-1", 1_700_000_000_000, domain.EventSwap); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Find with wrong event: got %v, want ErrNotFound", err)
	}
	found, err := store.FindByBlock(ctx, "pos-1", 100, domain.EventMint)
	if err != nil {
		t.Fatalf("FindByBlock: %v", err)
	}
	if found.ID != "snap-1" {
		t.Errorf("FindByBlock ID = %s, want snap-1", found.ID)
	}

	if err := store.AddCollectedFees(ctx, "snap-1", decimal.NewFromFloat(0.1), decimal.NewFromInt(25)); err != nil {
		t.Fatalf("AddCollectedFees: %v", err)
	}
	if err := store.AddCollectedFees(ctx, "snap-1", decimal.NewFromFloat(0.2), decimal.NewFromInt(50)); err != nil {
		t.Fatalf("AddCollectedFees: %v", err)
	}
	if err := store.AddCollectedFees(ctx, "missing", decimal.Zero, decimal.Zero); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("AddCollectedFees on missing id: got %v, want ErrNotFound", err)
	}

	pending, err := store.GetPending(ctx)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("GetPending: got %d snapshots, want 1", len(pending))
	}
	if !pending[0].CollectedFeesToken0.Equal(decimal.NewFromFloat(0.3)) {
		t.Errorf("CollectedFeesToken0 = %s, want 0.3", pending[0].CollectedFeesToken0)
	}
	if !pending[0].CollectedFeesToken1.Equal(decimal.NewFromInt(75)) {
		t.Errorf("CollectedFeesToken1 = %s, want 75", pending[0].CollectedFeesToken1)
	}

	scored := pending[0]
	scored.LpPoints = decimal.NewFromInt(42)
	if err := store.MarkScored(ctx, scored); err != nil {
		t.Fatalf("MarkScored: %v", err)
	}
	if err := store.MarkScored(ctx, scored); !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("second MarkScored: got %v, want ErrInvalidInput", err)
	}

	pending, err = store.GetPending(ctx)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("GetPending after scoring: got %d snapshots, want 0", len(pending))
	}

	last, err := store.GetLastScored(ctx, "pos-1")
	if err != nil {
		t.Fatalf("GetLastScored: %v", err)
	}
	if !last.LpPoints.Equal(decimal.NewFromInt(42)) {
		t.Errorf("LpPoints = %s, want 42", last.LpPoints)
	}
	if _, err := store.GetLastScored(ctx, "pos-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetLastScored for unknown position: got %v, want ErrNotFound", err)
	}
}

func TestVolumeSnapshotStoreGetSince(t *testing.T) {
	ctx := context.Background()
	store := NewVolumeSnapshotStore()

	fixtures := []struct {
		id   string
		ts   int64
		fees string
	}{
		{"vol-a", 1000, "3"},
		{"vol-b", 2000, "1"},
		{"vol-c", 3000, "10"},
		{"vol-d", 500, "2"},
	}
	for _, f := range fixtures {
		snap := &domain.VolumeSnapshot{
			ID:          f.id,
			OwnerAddress: "0xuser",
			Timestamp:   f.ts,
			SwapFeesUSD: decimal.RequireFromString(f.fees),
		}
		if err := store.Insert(ctx, snap); err != nil {
			t.Fatalf("Insert %s: %v", f.id, err)
		}
	}

	// Window excludes vol-d; order is by fees ascending.
	got, err := store.GetSince(ctx, 1000)
	if err != nil {
		t.Fatalf("GetSince: %v", err)
	}
	want := []string{"vol-b", "vol-a", "vol-c"}
	if len(got) != len(want) {
		t.Fatalf("GetSince: got %d snapshots, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].ID != w {
			t.Errorf("GetSince[%d] = %s, want %s", i, got[i].ID, w)
		}
	}

	pending, err := store.GetPending(ctx)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(pending) != 4 || pending[0].ID != "vol-d" {
		t.Fatalf("GetPending: got %d snapshots, first %q, want 4 with vol-d first", len(pending), pending[0].ID)
	}

	scored := pending[0]
	scored.VolumePoints = decimal.NewFromInt(5)
	if err := store.MarkScored(ctx, scored); err != nil {
		t.Fatalf("MarkScored: %v", err)
	}
	if err := store.MarkScored(ctx, scored); !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("second MarkScored: got %v, want ErrInvalidInput", err)
	}
}

func TestLeaderboardStoreAddPoints(t *testing.T) {
	ctx := context.Background()
	store := NewLeaderboardStore()

	if _, err := store.Get(ctx, domain.ContestLP, "0xalice"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get on empty board: got %v, want ErrNotFound", err)
	}

	if err := store.AddPoints(ctx, domain.ContestLP, "0xalice", decimal.NewFromFloat(100.5), 1000); err != nil {
		t.Fatalf("AddPoints: %v", err)
	}
	if err := store.AddPoints(ctx, domain.ContestLP, "0xalice", decimal.NewFromFloat(99.5), 2000); err != nil {
		t.Fatalf("AddPoints: %v", err)
	}
	if err := store.AddPoints(ctx, domain.ContestLP, "0xbob", decimal.NewFromInt(150), 1500); err != nil {
		t.Fatalf("AddPoints: %v", err)
	}
	if err := store.AddPoints(ctx, domain.ContestVolume, "0xalice", decimal.NewFromInt(7), 1000); err != nil {
		t.Fatalf("AddPoints: %v", err)
	}

	alice, err := store.Get(ctx, domain.ContestLP, "0xalice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !alice.Points.Equal(decimal.NewFromInt(200)) {
		t.Errorf("alice LP points = %s, want 200", alice.Points)
	}
	if alice.UpdatedAt != 2000 {
		t.Errorf("alice UpdatedAt = %d, want 2000", alice.UpdatedAt)
	}

	// Contests accumulate independently.
	aliceVol, err := store.Get(ctx, domain.ContestVolume, "0xalice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !aliceVol.Points.Equal(decimal.NewFromInt(7)) {
		t.Errorf("alice volume points = %s, want 7", aliceVol.Points)
	}

	top, err := store.Top(ctx, domain.ContestLP, 1)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(top) != 1 || top[0].UserAddress != "0xalice" {
		t.Fatalf("Top(1): got %+v, want alice only", top)
	}
}

func TestBlockStoreClosest(t *testing.T) {
	ctx := context.Background()
	store := NewBlockStore()

	if _, err := store.Closest(ctx, 1000); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Closest on empty store: got %v, want ErrNotFound", err)
	}

	blocks := []domain.Block{
		{Number: 100, Timestamp: 1000},
		{Number: 101, Timestamp: 2000},
		{Number: 102, Timestamp: 5000},
	}
	for i := range blocks {
		if err := store.Insert(ctx, &blocks[i]); err != nil {
			t.Fatalf("Insert %d: %v", blocks[i].Number, err)
		}
	}

	got, err := store.Closest(ctx, 2400)
	if err != nil {
		t.Fatalf("Closest: %v", err)
	}
	if got.Number != 101 {
		t.Errorf("Closest(2400) = block %d, want 101", got.Number)
	}

	// Re-inserting a number replaces its timestamp.
	if err := store.Insert(ctx, &domain.Block{Number: 102, Timestamp: 6000}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Number != 102 || latest.Timestamp != 6000 {
		t.Errorf("Latest = block %d ts %d, want 102/6000", latest.Number, latest.Timestamp)
	}
}

func TestPositionStoreGetOpen(t *testing.T) {
	ctx := context.Background()
	store := NewPositionStore()

	positions := []*domain.Position{
		{PositionID: "pos-2", OwnerAddress: "0xalice", Liquidity: decimal.NewFromInt(10)},
		{PositionID: "pos-1", OwnerAddress: "0xbob", Liquidity: decimal.NewFromInt(5)},
		{PositionID: "pos-3", OwnerAddress: "0xalice", Liquidity: decimal.Zero},
		{PositionID: "pos-4", OwnerAddress: domain.ZeroAddress, Liquidity: decimal.NewFromInt(1)},
	}
	for _, p := range positions {
		if err := store.Upsert(ctx, p); err != nil {
			t.Fatalf("Upsert %s: %v", p.PositionID, err)
		}
	}

	open, err := store.GetOpen(ctx)
	if err != nil {
		t.Fatalf("GetOpen: %v", err)
	}
	want := []string{"pos-1", "pos-2"}
	if len(open) != len(want) {
		t.Fatalf("GetOpen: got %d positions, want %d", len(open), len(want))
	}
	for i, w := range want {
		if open[i].PositionID != w {
			t.Errorf("GetOpen[%d] = %s, want %s", i, open[i].PositionID, w)
		}
	}

	// Upsert replaces in place.
	if err := store.Upsert(ctx, &domain.Position{PositionID: "pos-1", OwnerAddress: "0xbob", Liquidity: decimal.Zero}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	open, err = store.GetOpen(ctx)
	if err != nil {
		t.Fatalf("GetOpen: %v", err)
	}
	if len(open) != 1 || open[0].PositionID != "pos-2" {
		t.Fatalf("GetOpen after closing pos-1: got %+v, want pos-2 only", open)
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("GetAll: got %d positions, want 4", len(all))
	}
}
