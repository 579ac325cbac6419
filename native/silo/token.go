package silo

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"hooliganhorde/core/rewards"
)

// Token describes a whitelisted silo token.
type Token struct {
	Symbol          string
	Address         common.Address
	Decimals        uint8
	ProspectsPerBDV rewards.Ratio
}

// Validate ensures the token is usable by a ledger.
func (t Token) Validate() error {
	if NormalizeSymbol(t.Symbol) == "" {
		return fmt.Errorf("token symbol required")
	}
	if t.Decimals > 36 {
		return fmt.Errorf("token %s: decimals %d out of range", t.Symbol, t.Decimals)
	}
	if err := t.ProspectsPerBDV.Validate(); err != nil {
		return fmt.Errorf("token %s prospects per bdv: %w", t.Symbol, err)
	}
	return nil
}

// NormalizeSymbol canonicalises token symbols for lookups.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
