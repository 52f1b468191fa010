// Package tokens holds the static registry of tradeable Ethereum ecosystem
// tokens: contract address, base-unit decimals, CoinGecko id, and the
// per-token stop-loss override. The registry is an explicit value constructed
// once at startup and passed into the components that need it.
package tokens

import "driftguard/internal/domain"

// Token describes one tradeable token known to the agent.
type Token struct {
	Symbol      string
	Address     string
	Decimals    int
	CoinGeckoID string
	// StopLoss is the per-token fixed stop override, 0 meaning "use default".
	StopLoss float64
}

// Registry maps symbol to token metadata.
type Registry struct {
	tokens map[string]Token
}

// NewRegistry builds a registry from the given tokens.
func NewRegistry(list []Token) *Registry {
	m := make(map[string]Token, len(list))
	for _, tok := range list {
		m[tok.Symbol] = tok
	}
	return &Registry{tokens: m}
}

// Lookup returns the token metadata for symbol.
func (r *Registry) Lookup(symbol string) (Token, bool) {
	tok, ok := r.tokens[symbol]
	return tok, ok
}

// Symbols returns all registered symbols in unspecified order.
func (r *Registry) Symbols() []string {
	out := make([]string, 0, len(r.tokens))
	for sym := range r.tokens {
		out = append(out, sym)
	}
	return out
}

// CoinGeckoID returns the CoinGecko id for symbol, or "" if unknown.
func (r *Registry) CoinGeckoID(symbol string) string {
	return r.tokens[symbol].CoinGeckoID
}

// StopOverrides returns the per-symbol fixed stop fractions for every token
// that declares one.
func (r *Registry) StopOverrides() map[string]float64 {
	out := make(map[string]float64)
	for sym, tok := range r.tokens {
		if tok.StopLoss > 0 {
			out[sym] = tok.StopLoss
		}
	}
	return out
}

// Default returns the built-in Ethereum DeFi token registry. Stablecoins
// carry very tight stops; the more volatile governance tokens carry wider
// ones.
func Default() *Registry {
	return NewRegistry([]Token{
		{Symbol: "ETH", Address: "0x0000000000000000000000000000000000000000", Decimals: 18, CoinGeckoID: "ethereum", StopLoss: 0.12},
		{Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6, CoinGeckoID: "usd-coin", StopLoss: 0.05},
		{Symbol: "USDT", Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6, CoinGeckoID: "tether", StopLoss: 0.05},
		{Symbol: "UNI", Address: "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984", Decimals: 18, CoinGeckoID: "uniswap", StopLoss: 0.18},
		{Symbol: "LINK", Address: "0x514910771AF9Ca656af840dff83E8264EcF986CA", Decimals: 18, CoinGeckoID: "chainlink", StopLoss: 0.18},
		{Symbol: "AAVE", Address: "0x7Fc66500c84A76Ad7e9c93437bFc5Ac33E2DDaE9", Decimals: 18, CoinGeckoID: "aave", StopLoss: 0.20},
		{Symbol: "COMP", Address: "0xc00e94Cb662C3520282E6f5717214004A7f26888", Decimals: 18, CoinGeckoID: "compound-governance-token", StopLoss: 0.20},
		{Symbol: "MKR", Address: "0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2", Decimals: 18, CoinGeckoID: "maker", StopLoss: 0.18},
		{Symbol: "SNX", Address: "0xC011a73ee8576Fb46F5E1c5751cA3B9Fe0af2a6F", Decimals: 18, CoinGeckoID: "havven", StopLoss: 0.22},
		{Symbol: "YFI", Address: "0x0bc529c00C6401aEF6D220BE8C6Ea1667F6Ad93e", Decimals: 18, CoinGeckoID: "yearn-finance", StopLoss: 0.25},
		{Symbol: "CRV", Address: "0xD533a949740bb3306d119CC777fa900bA034cd52", Decimals: 18, CoinGeckoID: "curve-dao-token", StopLoss: 0.20},
		{Symbol: "BAL", Address: "0xba100000625a3754423978a60c9317c58a424e3D", Decimals: 18, CoinGeckoID: "balancer", StopLoss: 0.20},
		{Symbol: "SUSHI", Address: "0x6B3595068778DD592e39A122f4f5a5cF09C90fE2", Decimals: 18, CoinGeckoID: "sushi", StopLoss: 0.22},
		{Symbol: "1INCH", Address: "0x111111111117dC0aa78b770fA6A738034120C302", Decimals: 18, CoinGeckoID: "1inch", StopLoss: 0.22},
		{Symbol: "REN", Address: "0x408e41876cCcDC0F92210600ef50372656052a38", Decimals: 18, CoinGeckoID: "republic-protocol", StopLoss: 0.25},
		{Symbol: "ZRX", Address: "0xE41d2489571d322189246DaFA5ebDe1F4699F498", Decimals: 18, CoinGeckoID: "0x", StopLoss: 0.20},
	})
}

// DefaultTargets returns the built-in DeFi target allocation used when no
// allocation file exists yet.
func DefaultTargets() domain.TargetAllocation {
	return domain.TargetAllocation{
		"ETH":   0.30,
		"USDC":  0.15,
		"UNI":   0.12,
		"LINK":  0.10,
		"AAVE":  0.08,
		"COMP":  0.06,
		"MKR":   0.05,
		"SNX":   0.04,
		"YFI":   0.03,
		"CRV":   0.03,
		"BAL":   0.02,
		"SUSHI": 0.02,
	}
}
