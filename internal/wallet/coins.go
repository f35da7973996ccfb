package wallet

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"mochifi/internal/ledger"
	"mochifi/pkg/sentinel"
)

// MicroUnit is the chain's base-unit scale: 1 token = 1e6 micro-units.
const MicroUnit = 1_000_000

var displayDenoms = map[string]string{
	"uluna": "LUNA",
	"uusd":  "UST",
	"ukrw":  "KRT",
	"usdr":  "SDT",
}

// DisplayDenom maps a micro-denom to its display ticker.
func DisplayDenom(denom string) string {
	if name, ok := displayDenoms[denom]; ok {
		return name
	}
	return strings.ToUpper(strings.TrimPrefix(denom, "u"))
}

// ParseAmount converts a user-entered decimal token amount into micro-units.
// At most six fractional digits are meaningful on chain.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, sentinel.NewValidation("amount is required")
	}
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 6 {
		return 0, sentinel.NewValidation("amount has more than 6 decimal places")
	}
	frac += strings.Repeat("0", 6-len(frac))
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return 0, sentinel.NewValidation("amount is not a valid number")
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || f < 0 {
		return 0, sentinel.NewValidation("amount is not a valid number")
	}
	if w > (math.MaxInt64-f)/MicroUnit {
		return 0, sentinel.NewValidation("amount is too large")
	}
	micro := w*MicroUnit + f
	if micro <= 0 {
		return 0, sentinel.NewValidation("amount must be positive")
	}
	return micro, nil
}

// FormatCoin renders a micro-unit coin as a display string, e.g. "1.5 LUNA".
func FormatCoin(c ledger.Coin) string {
	whole := c.Amount / MicroUnit
	frac := c.Amount % MicroUnit
	if frac == 0 {
		return fmt.Sprintf("%d %s", whole, DisplayDenom(c.Denom))
	}
	fracStr := strings.TrimRight(fmt.Sprintf("%06d", frac), "0")
	return fmt.Sprintf("%d.%s %s", whole, fracStr, DisplayDenom(c.Denom))
}
