// Package symbols maps normalized coin identifiers to exchange trading pairs.
package symbols

import (
	"regexp"
	"strings"
)

// DefaultQuoteSuffix is the quote currency appended by the fallback rule.
const DefaultQuoteSuffix = "USDT"

var trailingDigits = regexp.MustCompile(`\d+$`)

// Mapper resolves coin identifiers to exchange trading pairs. Listings
// that do not follow the fallback rule are handled by the override table,
// injected at construction so exchange-specific quirks can be updated
// without code changes.
type Mapper struct {
	overrides   map[string]string
	quoteSuffix string
}

// NewMapper creates a Mapper with the given override table and quote
// suffix. A nil override table and empty suffix fall back to defaults.
func NewMapper(overrides map[string]string, quoteSuffix string) *Mapper {
	if quoteSuffix == "" {
		quoteSuffix = DefaultQuoteSuffix
	}
	normalized := make(map[string]string, len(overrides))
	for coin, symbol := range overrides {
		normalized[strings.ToUpper(strings.TrimSpace(coin))] = symbol
	}
	return &Mapper{overrides: normalized, quoteSuffix: quoteSuffix}
}

// Map returns the exchange trading pair for a coin identifier.
//
// Override entries win. Otherwise the fallback rule applies: trailing
// digits are stripped (listings like BANANAS31 trade as BANANASUSDT)
// unless the identifier carries a recognized numeric prefix such as
// 1000PEPE, then the quote suffix is appended.
func (m *Mapper) Map(coin string) string {
	coin = strings.ToUpper(strings.TrimSpace(coin))

	if symbol, ok := m.overrides[coin]; ok {
		return symbol
	}

	if !hasNumericPrefix(coin) && strings.ContainsAny(coin, "0123456789") {
		coin = trailingDigits.ReplaceAllString(coin, "")
	}

	return coin + m.quoteSuffix
}

// hasNumericPrefix recognizes multiplier-prefixed listings (1000X,
// 1000000BOB) whose digits are part of the listed symbol.
func hasNumericPrefix(coin string) bool {
	return strings.HasPrefix(coin, "1000")
}
