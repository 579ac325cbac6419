package types

import "math/big"

// Crate is a single deposit lot of a silo token, keyed by the gameday it was
// deposited in. All values are raw integer base units: Amount in token units,
// BDV with 6 decimals, Horde with 10 decimals and Prospects with 6 decimals.
type Crate struct {
	Gameday   uint64   `json:"gameday"`
	Amount    *big.Int `json:"amount"`
	BDV       *big.Int `json:"bdv"`
	Horde     *big.Int `json:"horde"`
	Prospects *big.Int `json:"prospects"`
}

// Clone returns a deep copy of the crate with nil fields normalised to zero.
func (c Crate) Clone() Crate {
	return Crate{
		Gameday:   c.Gameday,
		Amount:    copyBig(c.Amount),
		BDV:       copyBig(c.BDV),
		Horde:     copyBig(c.Horde),
		Prospects: copyBig(c.Prospects),
	}
}

// IsEmpty reports whether the crate holds no tokens.
func (c Crate) IsEmpty() bool {
	return c.Amount == nil || c.Amount.Sign() == 0
}

// Add merges other into c field by field. The gameday of c is kept.
func (c *Crate) Add(other Crate) {
	c.Amount = sumBig(c.Amount, other.Amount)
	c.BDV = sumBig(c.BDV, other.BDV)
	c.Horde = sumBig(c.Horde, other.Horde)
	c.Prospects = sumBig(c.Prospects, other.Prospects)
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func sumBig(a, b *big.Int) *big.Int {
	out := copyBig(a)
	if b != nil {
		out.Add(out, b)
	}
	return out
}
