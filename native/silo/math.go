package silo

import (
	"fmt"
	"math/big"

	silerrors "hooliganhorde/core/errors"
	"hooliganhorde/core/types"
)

// portion returns value * part / whole truncated toward zero.
func portion(value, part, whole *big.Int) *big.Int {
	if value == nil || part == nil || whole == nil || whole.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(value, part)
	return out.Quo(out, whole)
}

// split divides crate into the portion removed by a debit of amount and the
// portion that remains. Amounts are assumed validated. Truncation dust stays
// with the remaining crate so that removed + remaining always equals crate.
func split(crate types.Crate, amount *big.Int) (removed, remaining types.Crate) {
	crate = crate.Clone()
	if amount.Cmp(crate.Amount) == 0 {
		return crate, types.Crate{
			Gameday:   crate.Gameday,
			Amount:    big.NewInt(0),
			BDV:       big.NewInt(0),
			Horde:     big.NewInt(0),
			Prospects: big.NewInt(0),
		}
	}
	removed = types.Crate{
		Gameday:   crate.Gameday,
		Amount:    new(big.Int).Set(amount),
		BDV:       portion(crate.BDV, amount, crate.Amount),
		Horde:     portion(crate.Horde, amount, crate.Amount),
		Prospects: portion(crate.Prospects, amount, crate.Amount),
	}
	remaining = types.Crate{
		Gameday:   crate.Gameday,
		Amount:    new(big.Int).Sub(crate.Amount, removed.Amount),
		BDV:       new(big.Int).Sub(crate.BDV, removed.BDV),
		Horde:     new(big.Int).Sub(crate.Horde, removed.Horde),
		Prospects: new(big.Int).Sub(crate.Prospects, removed.Prospects),
	}
	return removed, remaining
}

func requirePositive(name string, value *big.Int) error {
	if value == nil || value.Sign() <= 0 {
		return fmt.Errorf("%w: %s must be positive", silerrors.ErrInvalidAmount, name)
	}
	return nil
}

func requireNonNegative(name string, value *big.Int) error {
	if value == nil || value.Sign() < 0 {
		return fmt.Errorf("%w: %s must be non-negative", silerrors.ErrInvalidAmount, name)
	}
	return nil
}

func zeroIfNil(value *big.Int) *big.Int {
	if value == nil {
		return big.NewInt(0)
	}
	return value
}
