package rewards

import (
	"fmt"
	"math/big"

	silerrors "hooliganhorde/core/errors"
	"hooliganhorde/core/types"
)

// Model derives the Horde and Prospects of deposit crates. It holds no state
// beyond its parameters and is safe for concurrent use.
type Model struct {
	params Params
}

// NewModel constructs a reward model from validated parameters.
func NewModel(params Params) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Model{params: params}, nil
}

// MustModel is NewModel for parameters known to be valid.
func MustModel(params Params) *Model {
	model, err := NewModel(params)
	if err != nil {
		panic(err)
	}
	return model
}

// Params returns the configured parameters.
func (m *Model) Params() Params {
	if m == nil {
		return DefaultParams()
	}
	return m.params
}

// BaseHorde returns the Horde granted to a crate of the supplied BDV at
// creation.
func (m *Model) BaseHorde(bdv *big.Int) *big.Int {
	return m.Params().HordePerBDV.Apply(bdv)
}

// Prospects returns the reward rate of a crate of the supplied BDV for a token
// paying prospectsPerBDV.
func (m *Model) Prospects(bdv *big.Int, prospectsPerBDV Ratio) *big.Int {
	return prospectsPerBDV.Apply(bdv)
}

// NewCrate builds a crate deposited at gameday with Horde and Prospects
// derived from its BDV.
func (m *Model) NewCrate(gameday uint64, amount, bdv *big.Int, prospectsPerBDV Ratio) types.Crate {
	return types.Crate{
		Gameday:   gameday,
		Amount:    copyBig(amount),
		BDV:       copyBig(bdv),
		Horde:     m.BaseHorde(bdv),
		Prospects: m.Prospects(bdv, prospectsPerBDV),
	}
}

// GrownHorde returns the Horde accrued by the crate's Prospects between its
// deposit gameday and current.
func (m *Model) GrownHorde(crate types.Crate, current uint64) (*big.Int, error) {
	if current < crate.Gameday {
		return nil, fmt.Errorf("%w: current gameday %d precedes crate gameday %d", silerrors.ErrInvalidEpoch, current, crate.Gameday)
	}
	elapsed := current - crate.Gameday
	if elapsed == 0 || crate.Prospects == nil || crate.Prospects.Sign() == 0 {
		return big.NewInt(0), nil
	}
	grown := new(big.Int).Mul(crate.Prospects, new(big.Int).SetUint64(elapsed))
	return m.Params().HordePerProspectPerGameday.Apply(grown), nil
}

// TotalHorde returns the base plus grown Horde of the crate at current.
func (m *Model) TotalHorde(crate types.Crate, current uint64) (*big.Int, error) {
	grown, err := m.GrownHorde(crate, current)
	if err != nil {
		return nil, err
	}
	return grown.Add(grown, copyBig(crate.Horde)), nil
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
