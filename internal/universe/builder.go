// Package universe assembles the scan watchlist.
package universe

import (
	"sort"
	"strings"
)

// defaultWatchlist is the built-in liquid-optionable universe: names with
// tight markets and deep put chains, where a protective strike is always
// quotable.
var defaultWatchlist = []string{
	"AAPL", "AMD", "AMZN", "AVGO", "BA", "BAC", "COIN", "CRM",
	"DIS", "GOOGL", "INTC", "JPM", "META", "MSFT", "MU", "NFLX",
	"NVDA", "ORCL", "PLTR", "QCOM", "SHOP", "SMCI", "SNOW", "TSLA",
	"UBER", "XOM",
}

// Build resolves the watchlist from an override string ("NVDA,AMD,...") or
// falls back to the built-in universe. Symbols are uppercased, deduplicated
// and sorted.
func Build(override string) []string {
	if strings.TrimSpace(override) == "" {
		out := make([]string, len(defaultWatchlist))
		copy(out, defaultWatchlist)
		return out
	}

	seen := make(map[string]bool)
	var out []string
	for _, raw := range strings.Split(override, ",") {
		sym := strings.ToUpper(strings.TrimSpace(raw))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
