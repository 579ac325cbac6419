package rewards

import (
	"fmt"
	"math/big"
)

const (
	// BDVDecimals is the precision of bean-denominated value amounts.
	BDVDecimals = 6
	// HordeDecimals is the precision of Horde amounts.
	HordeDecimals = 10
	// ProspectsDecimals is the precision of Prospect amounts.
	ProspectsDecimals = 6
)

// Ratio is an exact rational constant applied to raw integer amounts.
type Ratio struct {
	Num uint64 `toml:"Num" yaml:"num" json:"num"`
	Den uint64 `toml:"Den" yaml:"den" json:"den"`
}

// NewRatio constructs a ratio from its numerator and denominator.
func NewRatio(num, den uint64) Ratio {
	return Ratio{Num: num, Den: den}
}

// Validate rejects zero denominators.
func (r Ratio) Validate() error {
	if r.Den == 0 {
		return fmt.Errorf("ratio denominator must be greater than zero")
	}
	return nil
}

// Apply returns x * Num / Den truncated toward zero. A nil input is treated
// as zero.
func (r Ratio) Apply(x *big.Int) *big.Int {
	if x == nil || r.Num == 0 || r.Den == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(x, new(big.Int).SetUint64(r.Num))
	return out.Quo(out, new(big.Int).SetUint64(r.Den))
}

// IsZero reports whether the ratio always yields zero.
func (r Ratio) IsZero() bool {
	return r.Num == 0
}

// String renders the ratio as num/den.
func (r Ratio) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Params controls the Horde accounting of deposited crates.
type Params struct {
	// HordePerBDV is the base Horde granted per unit of BDV when a crate is
	// created. One Horde (1e10 raw) per BDV (1e6 raw) gives 10_000/1.
	HordePerBDV Ratio

	// HordePerProspectPerGameday is the grown Horde earned by one raw
	// Prospect per elapsed gameday. 0.0001 Horde per Prospect per gameday
	// is 1/1 in raw units.
	HordePerProspectPerGameday Ratio
}

// DefaultParams returns the protocol accounting constants.
func DefaultParams() Params {
	return Params{
		HordePerBDV:                NewRatio(10_000, 1),
		HordePerProspectPerGameday: NewRatio(1, 1),
	}
}

// Validate ensures the parameters are usable.
func (p Params) Validate() error {
	if err := p.HordePerBDV.Validate(); err != nil {
		return fmt.Errorf("horde per bdv: %w", err)
	}
	if err := p.HordePerProspectPerGameday.Validate(); err != nil {
		return fmt.Errorf("horde per prospect per gameday: %w", err)
	}
	return nil
}
