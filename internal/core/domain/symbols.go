package domain

import (
	"strings"
)

// quoteAssets are the quote currencies recognized when splitting a
// concatenated pair back into base and quote. Longest first so USDT wins
// over USD.
var quoteAssets = []string{
	"USDT", "USDC", "BUSD", "TUSD", "USD", "BTC", "ETH", "BNB", "EUR",
}

// NormalizeSymbol converts a pair identifier into the canonical
// concatenated uppercase form the upstream exchange uses. Both "BTC-USDT"
// and "btcusdt" normalize to "BTCUSDT". Returns ErrInvalidSymbol when the
// input cannot represent a trading pair.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "/", "")

	if len(s) < 5 || len(s) > 20 {
		return "", ErrInvalidSymbol
	}
	hasLetter := false
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9':
		default:
			return "", ErrInvalidSymbol
		}
	}
	if !hasLetter {
		return "", ErrInvalidSymbol
	}
	return s, nil
}

// HyphenateSymbol converts a concatenated pair into base-quote notation,
// e.g. "BTCUSDT" -> "BTC-USDT". Symbols whose quote asset is not
// recognized are returned unchanged.
func HyphenateSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(s, "-") {
		return s
	}
	for _, quote := range quoteAssets {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return s[:len(s)-len(quote)] + "-" + quote
		}
	}
	return s
}
