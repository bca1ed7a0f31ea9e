package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

func TestFactoryStoreSingleOpenVersion(t *testing.T) {
	ctx := context.Background()
	store := NewFactoryStore()

	if _, err := store.GetLatest(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetLatest on empty store: got %v, want ErrNotFound", err)
	}

	f := &domain.Factory{Address: domain.FactoryAddress, PoolCount: 1, TxCount: 1, ValidFrom: 10}
	if err := store.Insert(ctx, f); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Insert(ctx, f); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("second Insert: got %v, want ErrDuplicateKey", err)
	}

	f.TxCount = 2
	if err := store.Update(ctx, f); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := store.GetLatest(ctx)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if got.TxCount != 2 {
		t.Errorf("TxCount = %d, want 2", got.TxCount)
	}
	if got.ValidFrom != 10 {
		t.Errorf("Update must preserve ValidFrom: got %d, want 10", got.ValidFrom)
	}
}

func TestPoolStoreVersioning(t *testing.T) {
	ctx := context.Background()
	store := NewPoolStore()

	if err := store.Update(ctx, &domain.Pool{PoolAddress: "0xpool"}); !errors.Is(err, storage.ErrVersionClosed) {
		t.Fatalf("Update with no open version: got %v, want ErrVersionClosed", err)
	}

	tick := int64(-100)
	p := &domain.Pool{
		PoolAddress: "0xpool",
		Token0:      "0xaaa",
		Token1:      "0xbbb",
		FeeTier:     3000,
		Tick:        &tick,
		Liquidity:   decimal.NewFromInt(500),
		ValidFrom:   10,
	}
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Insert(ctx, p); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Insert over open version: got %v, want ErrDuplicateKey", err)
	}

	next := *p
	next.TxCount = 7
	if err := store.Supersede(ctx, "0xpool", 20, &next); err != nil {
		t.Fatalf("Supersede: %v", err)
	}

	got, err := store.GetLatest(ctx, "0xpool")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if got.ValidTo != nil {
		t.Errorf("open version has ValidTo = %d, want nil", *got.ValidTo)
	}
	if got.ValidFrom != 20 {
		t.Errorf("ValidFrom = %d, want 20", got.ValidFrom)
	}
	if got.TxCount != 7 {
		t.Errorf("TxCount = %d, want 7", got.TxCount)
	}

	// Mutating the returned copy must not leak back into the store.
	got.TxCount = 999
	again, err := store.GetLatest(ctx, "0xpool")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if again.TxCount != 7 {
		t.Errorf("store mutated through returned copy: TxCount = %d", again.TxCount)
	}
}

func TestPoolStoreGetByTokenOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewPoolStore()

	for _, addr := range []string{"0x0c", "0x0a", "0x0b"} {
		p := &domain.Pool{PoolAddress: addr, Token0: "0xtok", Token1: "0xother", ValidFrom: 1}
		if err := store.Insert(ctx, p); err != nil {
			t.Fatalf("Insert %s: %v", addr, err)
		}
	}
	p := &domain.Pool{PoolAddress: "0x0d", Token0: "0xother2", Token1: "0xtok", ValidFrom: 1}
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert 0x0d: %v", err)
	}

	pools, err := store.GetByToken(ctx, "0xtok")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	want := []string{"0x0a", "0x0b", "0x0c", "0x0d"}
	if len(pools) != len(want) {
		t.Fatalf("got %d pools, want %d", len(pools), len(want))
	}
	for i, w := range want {
		if pools[i].PoolAddress != w {
			t.Errorf("pools[%d] = %s, want %s", i, pools[i].PoolAddress, w)
		}
	}
}

func TestTokenStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewTokenStore()

	if _, err := store.GetLatest(ctx, "0xeth"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetLatest on empty store: got %v, want ErrNotFound", err)
	}

	wei := decimal.RequireFromString("0.000000000000000001")
	tok := &domain.Token{
		TokenAddress: "0xeth",
		Symbol:       "ETH",
		Decimals:     18,
		DerivedETH:   decimal.NewFromInt(1),
		Volume:       wei,
		ValidFrom:    5,
	}
	if err := store.Insert(ctx, tok); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := store.GetLatest(ctx, "0xeth")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if !got.Volume.Equal(wei) {
		t.Errorf("Volume = %s, want %s", got.Volume, wei)
	}

	tok.TxCount = 3
	if err := store.Update(ctx, tok); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err = store.GetLatest(ctx, "0xeth")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if got.TxCount != 3 {
		t.Errorf("TxCount = %d, want 3", got.TxCount)
	}
}
