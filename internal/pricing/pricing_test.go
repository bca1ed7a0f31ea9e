package pricing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage/memory"
)

func TestSafeDiv_ZeroDenominator(t *testing.T) {
	got := SafeDiv(decimal.NewFromInt(5), decimal.Zero)
	if !got.IsZero() {
		t.Errorf("SafeDiv by zero = %s, want 0", got)
	}
}

func TestSqrtPriceX96ToPrices_Reciprocal(t *testing.T) {
	// 2^96 encodes a raw price of exactly 1.
	q96 := decimal.NewFromInt(2).Pow(decimal.NewFromInt(96))

	cases := []struct {
		name         string
		sqrtPriceX96 decimal.Decimal
		dec0, dec1   int
	}{
		{"unit price equal decimals", q96, 18, 18},
		{"unit price uneven decimals", q96, 18, 6},
		{"doubled", q96.Mul(decimal.NewFromInt(2)), 18, 18},
		{"fractional", q96.Div(decimal.NewFromInt(3)), 6, 18},
	}

	one := decimal.NewFromInt(1)
	tolerance := decimal.New(1, -20)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p0, p1 := SqrtPriceX96ToPrices(tc.sqrtPriceX96, tc.dec0, tc.dec1)
			product := p0.Mul(p1)
			if product.Sub(one).Abs().GreaterThan(tolerance) {
				t.Errorf("price0*price1 = %s, want 1", product)
			}
		})
	}
}

func TestSqrtPriceX96ToPrices_Zero(t *testing.T) {
	p0, p1 := SqrtPriceX96ToPrices(decimal.Zero, 18, 18)
	if !p0.IsZero() || !p1.IsZero() {
		t.Errorf("zero sqrtPrice gave prices %s, %s; want 0, 0", p0, p1)
	}
}

func TestContext_Refresh_Sentinel(t *testing.T) {
	pools := memory.NewPoolStore()
	tokens := memory.NewTokenStore()
	pc := NewContext(pools, tokens)

	if err := pc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !pc.EthUSD().Equal(decimal.NewFromInt(2500)) {
		t.Errorf("EthUSD = %s, want sentinel 2500", pc.EthUSD())
	}
}

func TestContext_Refresh_ReferencePool(t *testing.T) {
	pools := memory.NewPoolStore()
	tokens := memory.NewTokenStore()
	ctx := context.Background()

	tick := int64(0)
	err := pools.Insert(ctx, &domain.Pool{
		PoolAddress: domain.EthUsdcPool,
		Token0:      domain.ETH,
		Token1:      domain.USDC,
		Tick:        &tick,
		Token0Price: decimal.NewFromFloat(0.0003),
		Token1Price: decimal.NewFromInt(3200),
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	pc := NewContext(pools, tokens)
	if err := pc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !pc.EthUSD().Equal(decimal.NewFromInt(3200)) {
		t.Errorf("EthUSD = %s, want 3200", pc.EthUSD())
	}
}

func TestFindEthPerToken_NativeAsset(t *testing.T) {
	pc := NewContext(memory.NewPoolStore(), memory.NewTokenStore())

	got, err := pc.FindEthPerToken(context.Background(), domain.ETH)
	if err != nil {
		t.Fatalf("FindEthPerToken failed: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("derivedETH(ETH) = %s, want 1", got)
	}
}

func TestFindEthPerToken_Stablecoin(t *testing.T) {
	pc := NewContext(memory.NewPoolStore(), memory.NewTokenStore())

	got, err := pc.FindEthPerToken(context.Background(), domain.USDC)
	if err != nil {
		t.Fatalf("FindEthPerToken failed: %v", err)
	}
	want := decimal.NewFromInt(1).Div(decimal.NewFromInt(2500))
	if !got.Equal(want) {
		t.Errorf("derivedETH(USDC) = %s, want %s", got, want)
	}
}

func TestFindEthPerToken_LargestLiquidityWins(t *testing.T) {
	pools := memory.NewPoolStore()
	tokens := memory.NewTokenStore()
	ctx := context.Background()

	const newToken = "0x0abc"
	mustInsertToken(t, tokens, domain.ETH, 18, decimal.NewFromInt(1))
	mustInsertToken(t, tokens, domain.USDC, 6, decimal.NewFromFloat(0.0004))
	mustInsertToken(t, tokens, newToken, 18, decimal.Zero)

	tick := int64(0)
	// Small pool against USDC seeds the price first.
	if err := pools.Insert(ctx, &domain.Pool{
		PoolAddress:            "0x01",
		Token0:                 newToken,
		Token1:                 domain.USDC,
		Tick:                   &tick,
		Liquidity:              decimal.NewFromInt(10),
		Token1Price:            decimal.NewFromInt(5), // 5 USDC per token
		TotalValueLockedToken1: decimal.NewFromInt(100),
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	// Deeper pool against ETH should replace it.
	if err := pools.Insert(ctx, &domain.Pool{
		PoolAddress:            "0x02",
		Token0:                 newToken,
		Token1:                 domain.ETH,
		Tick:                   &tick,
		Liquidity:              decimal.NewFromInt(1000),
		Token1Price:            decimal.NewFromFloat(0.001), // 0.001 ETH per token
		TotalValueLockedToken1: decimal.NewFromInt(500),
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	pc := NewContext(pools, tokens)
	got, err := pc.FindEthPerToken(ctx, newToken)
	if err != nil {
		t.Fatalf("FindEthPerToken failed: %v", err)
	}

	// ETH pool locks 500 ETH vs the USDC pool's 100*0.0004 = 0.04 ETH.
	want := decimal.NewFromFloat(0.001)
	if !got.Equal(want) {
		t.Errorf("derivedETH = %s, want %s (deepest pool)", got, want)
	}
}

func TestFindEthPerToken_SkipsZeroLiquidityPools(t *testing.T) {
	pools := memory.NewPoolStore()
	tokens := memory.NewTokenStore()
	ctx := context.Background()

	const newToken = "0x0abc"
	mustInsertToken(t, tokens, domain.ETH, 18, decimal.NewFromInt(1))
	mustInsertToken(t, tokens, newToken, 18, decimal.Zero)

	if err := pools.Insert(ctx, &domain.Pool{
		PoolAddress: "0x01",
		Token0:      newToken,
		Token1:      domain.ETH,
		Liquidity:   decimal.Zero,
		Token1Price: decimal.NewFromInt(42),
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	pc := NewContext(pools, tokens)
	got, err := pc.FindEthPerToken(ctx, newToken)
	if err != nil {
		t.Fatalf("FindEthPerToken failed: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("derivedETH = %s, want 0 for empty pools", got)
	}
}

func TestTrackedAmountUSD(t *testing.T) {
	pc := NewContext(memory.NewPoolStore(), memory.NewTokenStore())
	// Sentinel ethUSD = 2500.
	one := decimal.NewFromInt(1)
	ten := decimal.NewFromInt(10)
	derived := decimal.NewFromFloat(0.001) // token priced at 2.5 USD

	t.Run("both whitelisted sums both legs", func(t *testing.T) {
		got := pc.TrackedAmountUSD(one, domain.ETH, one, ten, domain.USDC, decimal.NewFromFloat(0.0004))
		// 1 ETH * 2500 + 10 USDC * 1 = 2510
		want := decimal.NewFromInt(2510)
		if !got.Equal(want) {
			t.Errorf("tracked = %s, want %s", got, want)
		}
	})

	t.Run("one whitelisted doubles the leg", func(t *testing.T) {
		got := pc.TrackedAmountUSD(one, domain.ETH, one, ten, "0x0dead", derived)
		want := decimal.NewFromInt(5000)
		if !got.Equal(want) {
			t.Errorf("tracked = %s, want %s", got, want)
		}
	})

	t.Run("neither whitelisted is zero", func(t *testing.T) {
		got := pc.TrackedAmountUSD(one, "0x0dead", derived, ten, "0x0beef", derived)
		if !got.IsZero() {
			t.Errorf("tracked = %s, want 0", got)
		}
	})
}

func mustInsertToken(t *testing.T, store *memory.TokenStore, address string, decimals int, derivedETH decimal.Decimal) {
	t.Helper()
	err := store.Insert(context.Background(), &domain.Token{
		TokenAddress: address,
		Decimals:     decimals,
		DerivedETH:   derivedETH,
	})
	if err != nil {
		t.Fatalf("insert token %s: %v", address, err)
	}
}
