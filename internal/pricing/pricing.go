// Package pricing derives token prices from materialized pool state: the
// ETH/USD reference price, per-token derived-ETH discovery via pool
// traversal, and the whitelist tracked-volume heuristic.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

var (
	// q192 = 2^192, the sqrtPriceX96 squared fixed-point divisor.
	q192 = decimal.NewFromInt(2).Pow(decimal.NewFromInt(192))

	// ethUsdSentinel is used until the reference pool has a valid price.
	ethUsdSentinel = decimal.NewFromInt(2500)

	// minimumEthLocked is the liquidity floor a candidate pool must clear to
	// replace an already-seeded derived price.
	minimumEthLocked = decimal.Zero
)

// SafeDiv returns a/b, or zero when b is zero.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}

// ExponentToDecimal returns 10^decimals.
func ExponentToDecimal(decimals int) decimal.Decimal {
	return decimal.New(1, int32(decimals))
}

// AmountAfterDecimals scales a raw integer token amount by the token's
// decimals.
func AmountAfterDecimals(raw decimal.Decimal, decimals int) decimal.Decimal {
	return raw.Div(ExponentToDecimal(decimals))
}

// SqrtPriceX96ToPrices converts the AMM fixed-point price encoding into the
// two side prices. price1 = x^2 / 2^192 * 10^dec0 / 10^dec1; price0 is the
// guarded reciprocal (zero when price1 is zero).
func SqrtPriceX96ToPrices(sqrtPriceX96 decimal.Decimal, token0Decimals, token1Decimals int) (price0, price1 decimal.Decimal) {
	num := sqrtPriceX96.Mul(sqrtPriceX96)
	price1 = num.Div(q192).
		Mul(ExponentToDecimal(token0Decimals)).
		Div(ExponentToDecimal(token1Decimals))
	price0 = SafeDiv(decimal.NewFromInt(1), price1)
	return price0, price1
}

// Context carries the per-cycle pricing state. It is constructed once per
// processing cycle and never shared between cycles, replacing the old
// process-wide price singleton.
type Context struct {
	pools  storage.PoolStore
	tokens storage.TokenStore

	ethUSD decimal.Decimal
}

// NewContext creates a pricing context with the sentinel ETH price. Call
// Refresh before use.
func NewContext(pools storage.PoolStore, tokens storage.TokenStore) *Context {
	return &Context{
		pools:  pools,
		tokens: tokens,
		ethUSD: ethUsdSentinel,
	}
}

// EthUSD returns the cached ETH/USD price for this cycle.
func (c *Context) EthUSD() decimal.Decimal {
	return c.ethUSD
}

// Refresh re-reads the ETH/USD price from the reference ETH/USDC pool,
// taking whichever side prices the native asset. Falls back to the sentinel
// while the reference pool has no valid price; never yields zero.
func (c *Context) Refresh(ctx context.Context) error {
	pool, err := c.pools.GetLatest(ctx, domain.EthUsdcPool)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.ethUSD = ethUsdSentinel
			return nil
		}
		return fmt.Errorf("load reference pool: %w", err)
	}

	if pool.Token0Price.IsZero() || pool.Token1Price.IsZero() {
		c.ethUSD = ethUsdSentinel
		return nil
	}
	if pool.Token0 == domain.ETH {
		c.ethUSD = pool.Token1Price
	} else {
		c.ethUSD = pool.Token0Price
	}
	return nil
}

// FindEthPerToken discovers a token's price in units of the native asset.
// ETH prices at exactly 1; stablecoins at 1/ethUSD. Any other token is
// priced through the pools it appears in: the first candidate with positive
// liquidity seeds the running price unconditionally, later candidates
// replace it only when their ETH-locked amount exceeds both the running
// maximum and the minimum floor.
func (c *Context) FindEthPerToken(ctx context.Context, tokenAddress string) (decimal.Decimal, error) {
	if tokenAddress == domain.ETH {
		return decimal.NewFromInt(1), nil
	}
	if domain.Stablecoins[tokenAddress] {
		return SafeDiv(decimal.NewFromInt(1), c.ethUSD), nil
	}

	pools, err := c.pools.GetByToken(ctx, tokenAddress)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load pools for token %s: %w", tokenAddress, err)
	}

	largestLiquidityETH := decimal.Zero
	priceSoFar := decimal.Zero

	for _, pool := range pools {
		if !pool.Liquidity.IsPositive() {
			continue
		}

		var counterAddress string
		var counterPrice, counterTVL decimal.Decimal
		switch tokenAddress {
		case pool.Token0:
			counterAddress = pool.Token1
			counterPrice = pool.Token1Price
			counterTVL = pool.TotalValueLockedToken1
		case pool.Token1:
			counterAddress = pool.Token0
			counterPrice = pool.Token0Price
			counterTVL = pool.TotalValueLockedToken0
		default:
			continue
		}

		counter, err := c.tokens.GetLatest(ctx, counterAddress)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return decimal.Zero, fmt.Errorf("load counter token %s: %w", counterAddress, err)
		}

		candidate := counterPrice.Mul(counter.DerivedETH)
		if priceSoFar.IsZero() {
			priceSoFar = candidate
			continue
		}
		ethLocked := counterTVL.Mul(counter.DerivedETH)
		if ethLocked.GreaterThan(largestLiquidityETH) && ethLocked.GreaterThan(minimumEthLocked) {
			largestLiquidityETH = ethLocked
			priceSoFar = candidate
		}
	}
	return priceSoFar, nil
}

// TrackedAmountUSD values a swap's two legs conservatively: both sides
// whitelisted sums both USD legs, one side whitelisted doubles that leg,
// neither side whitelisted contributes nothing.
func (c *Context) TrackedAmountUSD(amount0Abs decimal.Decimal, token0Address string, derivedETH0 decimal.Decimal,
	amount1Abs decimal.Decimal, token1Address string, derivedETH1 decimal.Decimal) decimal.Decimal {

	price0USD := derivedETH0.Mul(c.ethUSD)
	price1USD := derivedETH1.Mul(c.ethUSD)

	tracked0 := domain.WhitelistedTokens[token0Address]
	tracked1 := domain.WhitelistedTokens[token1Address]

	switch {
	case tracked0 && tracked1:
		return amount0Abs.Mul(price0USD).Add(amount1Abs.Mul(price1USD))
	case tracked0:
		return amount0Abs.Mul(price0USD).Mul(decimal.NewFromInt(2))
	case tracked1:
		return amount1Abs.Mul(price1USD).Mul(decimal.NewFromInt(2))
	default:
		return decimal.Zero
	}
}
