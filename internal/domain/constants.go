package domain

// Well-known mainnet contract addresses (Starknet felts, 0x-hex).
const (
	FactoryAddress = "0x06262409329bff003489ccac5d548bb75d33c896e29ceb6a586084a266e094ff"
	NFTRouter      = "0x067c1ae6f84275a929accf49122c86531259ffb01d3e2a6bf72729ca05566547"

	ETH  = "0x049d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7"
	USDC = "0x053c91253bc9682c04929ca02ed00b3e423f6710d2ee7e0d5ebb06f3ecf368a8"
	DAI  = "0x00da114221cb83fa859dbdb4c44beeaa0bb37c7537ad5ae66fe5e0efd20e6eb3"
	USDT = "0x068f5c6a61780768455de69077e07e89787839bf8166decfbf92b645209c0fb8"
	WBTC = "0x03fe2b97c1fd336e750087d68b9b867997fd64a2661ff3ca5a7c771641e8e7ac"
	STRK = "0x04718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d"

	// EthUsdcPool is the reference pool for the ETH/USD price.
	EthUsdcPool = "0x0687959c1ab64e1d3df1825dfec5a650f18af44060b29e6a50643c770b15545c"

	ZeroAddress = "0x0000000000000000000000000000000000000000000000000000000000000000"
)

// Stablecoins priced as 1/ethUSD by the oracle.
var Stablecoins = map[string]bool{
	USDC: true,
	USDT: true,
	DAI:  true,
}

// WhitelistedTokens are tokens with a trusted USD valuation; swap volume is
// only "tracked" when at least one leg is whitelisted.
var WhitelistedTokens = map[string]bool{
	ETH:  true,
	USDC: true,
	USDT: true,
	DAI:  true,
	WBTC: true,
	STRK: true,
}

const (
	// DefaultDecimals is assumed when token metadata cannot be fetched.
	DefaultDecimals = 18

	// FeeDenominator converts a pool fee tier to a fraction (e.g. 3000 -> 0.3%).
	FeeDenominator = 1_000_000
)
