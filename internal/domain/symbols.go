package domain

import (
	"strings"
	"time"

	"github.com/aristath/riskparity/internal/utils"
)

// Default symbol sets for the two allocation schemes
var (
	DefaultInverseVolatilitySymbols = []string{"UPRO", "TMF"}
	DefaultRiskParitySymbols        = []string{"VTV", "BRK-B", "ARKK"}
)

// ParseSymbols splits a comma-separated list, trimming and upper-casing
// each entry. Empty entries and repeats are dropped, order is preserved.
// An empty result falls back to defaults.
func ParseSymbols(raw string, defaults []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range utils.ParseCSV(raw) {
		sym := strings.ToUpper(part)
		if seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	if len(out) == 0 {
		out = append([]string(nil), defaults...)
	}
	return out
}

// Default risk-parity estimation window
var (
	DefaultRiskParityStart = time.Date(2015, 5, 22, 0, 0, 0, 0, time.UTC)
	DefaultRiskParityEnd   = time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)
)
