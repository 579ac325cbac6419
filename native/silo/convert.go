package silo

import (
	"fmt"
	"math/big"

	"hooliganhorde/core/epoch"
	silerrors "hooliganhorde/core/errors"
	"hooliganhorde/core/rewards"
	"hooliganhorde/core/types"
)

// ConvertTarget describes the destination side of a conversion.
type ConvertTarget struct {
	// Amount of destination tokens received. Nil keeps the source amount.
	Amount *big.Int
	// BDV of the converted crate. Nil carries the removed source BDV.
	BDV *big.Int
	// ProspectsPerBDV is the reward rate of the destination token.
	ProspectsPerBDV rewards.Ratio
}

// Converter moves value out of a source crate into a new crate stamped with
// the current gameday.
type Converter struct {
	model *rewards.Model
	clock *epoch.Clock
}

// NewConverter constructs a converter reading the current gameday from clock.
func NewConverter(model *rewards.Model, clock *epoch.Clock) *Converter {
	if model == nil {
		model = rewards.MustModel(rewards.DefaultParams())
	}
	return &Converter{model: model, clock: clock}
}

// Convert debits amount from the crate at sourceGameday and returns the
// converted crate. The Horde carried by the removed portion, base and grown
// up to now, is kept as the base Horde of the new crate; only the accrual
// rate changes. The caller inserts the result into the destination ledger.
func (c *Converter) Convert(ledger *Ledger, sourceGameday uint64, amount *big.Int, target ConvertTarget) (types.Crate, error) {
	if ledger == nil {
		return types.Crate{}, fmt.Errorf("convert requires a source ledger")
	}
	if c.clock == nil {
		return types.Crate{}, fmt.Errorf("convert requires a gameday clock")
	}
	if err := requirePositive("convert amount", amount); err != nil {
		return types.Crate{}, err
	}
	if target.Amount != nil {
		if err := requirePositive("converted amount", target.Amount); err != nil {
			return types.Crate{}, err
		}
	}
	if target.BDV != nil {
		if err := requireNonNegative("converted bdv", target.BDV); err != nil {
			return types.Crate{}, err
		}
	}
	if err := target.ProspectsPerBDV.Validate(); err != nil {
		return types.Crate{}, fmt.Errorf("destination prospects per bdv: %w", err)
	}
	current := c.clock.Current()
	if current < sourceGameday {
		return types.Crate{}, fmt.Errorf("%w: current gameday %d precedes crate gameday %d", silerrors.ErrInvalidEpoch, current, sourceGameday)
	}

	removed, err := ledger.Debit(sourceGameday, amount)
	if err != nil {
		return types.Crate{}, err
	}
	grown, err := c.model.GrownHorde(removed, current)
	if err != nil {
		return types.Crate{}, err
	}

	converted := types.Crate{
		Gameday: current,
		Amount:  new(big.Int).Set(removed.Amount),
		BDV:     new(big.Int).Set(removed.BDV),
		Horde:   new(big.Int).Add(removed.Horde, grown),
	}
	if target.Amount != nil {
		converted.Amount.Set(target.Amount)
	}
	if target.BDV != nil {
		converted.BDV.Set(target.BDV)
	}
	converted.Prospects = c.model.Prospects(converted.BDV, target.ProspectsPerBDV)
	return converted, nil
}

// ConvertInto converts out of source and inserts the result into
// destination. Both ledgers must belong to the same account; source and
// destination may be the same ledger. On error neither ledger changes.
func (c *Converter) ConvertInto(source, destination *Ledger, sourceGameday uint64, amount *big.Int, target ConvertTarget) (types.Crate, error) {
	if source == nil || destination == nil {
		return types.Crate{}, fmt.Errorf("convert requires source and destination ledgers")
	}
	if source.Account() != destination.Account() {
		return types.Crate{}, fmt.Errorf("convert across accounts %s and %s", source.Account().Hex(), destination.Account().Hex())
	}
	working := source.Clone()
	into := working
	if destination != source {
		into = destination.Clone()
	}
	converted, err := c.Convert(working, sourceGameday, amount, target)
	if err != nil {
		return types.Crate{}, err
	}
	if _, err := into.InsertCrate(converted); err != nil {
		return types.Crate{}, err
	}
	source.crates = working.crates
	if destination != source {
		destination.crates = into.crates
	}
	return converted, nil
}
