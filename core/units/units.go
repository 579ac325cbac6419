// Package units converts between raw integer amounts and their human
// decimal representation.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	silerrors "hooliganhorde/core/errors"
	"hooliganhorde/core/rewards"
)

// Parse converts a human amount such as "12.5" into raw units of a token
// with the supplied decimals. Negative values and values with more
// fractional digits than decimals are rejected.
func Parse(raw string, decimals uint8) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty amount", silerrors.ErrInvalidAmount)
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", silerrors.ErrInvalidAmount, raw, err)
	}
	if value.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", silerrors.ErrInvalidAmount, raw)
	}
	shifted := value.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", silerrors.ErrInvalidAmount, raw, decimals)
	}
	return shifted.BigInt(), nil
}

// Format renders raw units with the supplied decimals, trimming trailing
// zeros. Nil formats as "0".
func Format(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}

// Horde formats a raw Horde amount.
func Horde(value *big.Int) string { return Format(value, rewards.HordeDecimals) }

// Prospects formats a raw Prospects amount.
func Prospects(value *big.Int) string { return Format(value, rewards.ProspectsDecimals) }

// BDV formats a raw BDV amount.
func BDV(value *big.Int) string { return Format(value, rewards.BDVDecimals) }
