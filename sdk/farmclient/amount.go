package farmclient

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TokenDecimals is the precision of the season tokens and WETH.
const TokenDecimals = 18

// ParseAmount converts a human amount such as "1.5" into base units.
func ParseAmount(human string, decimals int32) (string, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(human))
	if err != nil {
		return "", fmt.Errorf("farmclient: invalid amount %q: %w", human, err)
	}
	if value.IsNegative() {
		return "", fmt.Errorf("farmclient: amount %q is negative", human)
	}
	scaled := value.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return "", fmt.Errorf("farmclient: amount %q exceeds %d decimals", human, decimals)
	}
	return scaled.BigInt().String(), nil
}

// FormatAmount renders base units as a human amount without trailing zeros.
func FormatAmount(base string, decimals int32) (string, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("farmclient: invalid base amount %q: %w", base, err)
	}
	return value.Shift(-decimals).String(), nil
}
