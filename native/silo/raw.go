package silo

import (
	"fmt"
	"math"
	"math/big"

	"github.com/holiman/uint256"

	silerrors "hooliganhorde/core/errors"
	"hooliganhorde/core/types"
)

// RawCrate is a deposit as reported by the silo contract.
type RawCrate struct {
	Gameday uint32
	Amount  *uint256.Int
	BDV     *uint256.Int
}

// CrateFromRaw maps an on-chain deposit record into a crate of token.
func (l *Ledger) CrateFromRaw(raw RawCrate) (types.Crate, error) {
	if raw.Amount == nil || raw.Amount.IsZero() {
		return types.Crate{}, fmt.Errorf("%w: raw crate %d has no amount", silerrors.ErrInvalidAmount, raw.Gameday)
	}
	bdv := big.NewInt(0)
	if raw.BDV != nil {
		bdv = raw.BDV.ToBig()
	}
	return l.model.NewCrate(uint64(raw.Gameday), raw.Amount.ToBig(), bdv, l.token.ProspectsPerBDV), nil
}

// LoadRaw deposits every raw record into the ledger. Records are validated
// before any is applied.
func (l *Ledger) LoadRaw(records []RawCrate) error {
	crates := make([]types.Crate, 0, len(records))
	for _, raw := range records {
		crate, err := l.CrateFromRaw(raw)
		if err != nil {
			return err
		}
		crates = append(crates, crate)
	}
	for _, crate := range crates {
		l.merge(crate)
	}
	return nil
}

// ToRaw converts a crate into its on-chain representation.
func ToRaw(crate types.Crate) (RawCrate, error) {
	if crate.Gameday > math.MaxUint32 {
		return RawCrate{}, fmt.Errorf("gameday %d exceeds uint32", crate.Gameday)
	}
	amount, err := toUint256("amount", crate.Amount)
	if err != nil {
		return RawCrate{}, err
	}
	bdv, err := toUint256("bdv", crate.BDV)
	if err != nil {
		return RawCrate{}, err
	}
	return RawCrate{Gameday: uint32(crate.Gameday), Amount: amount, BDV: bdv}, nil
}

func toUint256(name string, value *big.Int) (*uint256.Int, error) {
	if value == nil {
		return uint256.NewInt(0), nil
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s is negative", silerrors.ErrInvalidAmount, name)
	}
	out, overflow := uint256.FromBig(value)
	if overflow {
		return nil, fmt.Errorf("%w: %s overflows uint256", silerrors.ErrInvalidAmount, name)
	}
	return out, nil
}
