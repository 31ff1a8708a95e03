package collector

import (
	"fmt"
	"regexp"
	"strings"
)

// tickerToID maps exchange tickers to CoinGecko coin ids
var tickerToID = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"BNB":  "binancecoin",
	"SOL":  "solana",
	"XRP":  "ripple",
	"DOGE": "dogecoin",
	"ADA":  "cardano",
	"AVAX": "avalanche-2",
	"DOT":  "polkadot",
	"LINK": "chainlink",
	"LTC":  "litecoin",
	"ETC":  "ethereum-classic",
	"XLM":  "stellar",
	"ATOM": "cosmos",
	"UNI":  "uniswap",
	"NEAR": "near",
	"AAVE": "aave",
	"ARB":  "arbitrum",
	"OP":   "optimism",
}

var idToTicker = func() map[string]string {
	m := make(map[string]string, len(tickerToID))
	for ticker, id := range tickerToID {
		m[id] = ticker
	}
	return m
}()

var validAsset = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// CoinID resolves a ticker ("BTC") or coin id ("bitcoin") to a CoinGecko coin id
func CoinID(asset string) string {
	s := strings.TrimSpace(asset)
	if id, ok := tickerToID[strings.ToUpper(s)]; ok {
		return id
	}
	return strings.ToLower(s)
}

// Ticker resolves a coin id ("bitcoin") or ticker ("btc") to an exchange ticker
func Ticker(asset string) string {
	s := strings.ToLower(strings.TrimSpace(asset))
	if ticker, ok := idToTicker[s]; ok {
		return ticker
	}
	return strings.ToUpper(s)
}

// QuoteAsset maps a fiat or crypto currency to the exchange quote asset.
// USD settles in USDT on exchanges without fiat books.
func QuoteAsset(currency string) string {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "USD" || c == "" {
		return "USDT"
	}
	return c
}

// Pair builds an exchange trading pair, e.g. ("bitcoin", "usd") -> "BTCUSDT"
func Pair(asset, currency string) string {
	return Ticker(asset) + QuoteAsset(currency)
}

// ValidateAsset checks that an asset id has a usable format
func ValidateAsset(asset string) error {
	if asset == "" {
		return fmt.Errorf("asset cannot be empty")
	}
	if !validAsset.MatchString(CoinID(asset)) {
		return fmt.Errorf("invalid asset format: %s", asset)
	}
	return nil
}
