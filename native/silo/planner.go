package silo

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	silerrors "hooliganhorde/core/errors"
	"hooliganhorde/core/rewards"
	"hooliganhorde/core/types"
)

// PlanEntry is a single crate debit of a withdrawal plan together with the
// BDV, Horde and Prospects the debit removes.
type PlanEntry struct {
	Gameday    uint64   `json:"gameday"`
	Amount     *big.Int `json:"amount"`
	BDV        *big.Int `json:"bdv"`
	Horde      *big.Int `json:"horde"`
	GrownHorde *big.Int `json:"grownHorde"`
	Prospects  *big.Int `json:"prospects"`
}

// Plan is the ordered set of crate debits satisfying a withdrawal request.
// A plan is only valid for the ledger snapshot identified by Digest.
type Plan struct {
	Account   common.Address `json:"account"`
	Token     string         `json:"token"`
	Gameday   uint64         `json:"gameday"`
	Target    *big.Int       `json:"target"`
	Entries   []PlanEntry    `json:"entries"`
	Shortfall *big.Int       `json:"shortfall"`
	Totals    Balance        `json:"totals"`
	Digest    [32]byte       `json:"digest"`
	Recruit   *types.Crate   `json:"recruit,omitempty"`
}

// Debits converts the plan into ledger debits.
func (p Plan) Debits() []Debit {
	out := make([]Debit, len(p.Entries))
	for i, entry := range p.Entries {
		out[i] = Debit{Gameday: entry.Gameday, Amount: new(big.Int).Set(entry.Amount)}
	}
	return out
}

// Empty reports whether the plan debits nothing.
func (p Plan) Empty() bool { return len(p.Entries) == 0 }

// Planner selects the crates consumed by a withdrawal: oldest crates first,
// each consumed in full before the next, with at most one partial debit.
type Planner struct {
	model *rewards.Model
}

// NewPlanner constructs a planner using model to value removed Horde.
func NewPlanner(model *rewards.Model) *Planner {
	if model == nil {
		model = rewards.MustModel(rewards.DefaultParams())
	}
	return &Planner{model: model}
}

// Plan computes the debits withdrawing target from ledger at the current
// gameday. The ledger is not modified. Requests larger than the ledger
// produce a plan over every crate with the remainder reported as Shortfall.
func (p *Planner) Plan(ledger *Ledger, target *big.Int, current uint64) (Plan, error) {
	if target == nil || target.Sign() < 0 {
		return Plan{}, fmt.Errorf("%w: withdrawal target must be non-negative", silerrors.ErrInvalidAmount)
	}
	plan := Plan{
		Gameday:   current,
		Target:    new(big.Int).Set(target),
		Entries:   []PlanEntry{},
		Shortfall: big.NewInt(0),
		Totals:    newBalance(),
	}
	if ledger == nil {
		plan.Shortfall.Set(target)
		return plan, nil
	}
	plan.Account = ledger.Account()
	plan.Token = ledger.Token().Symbol
	digest, err := ledger.Digest()
	if err != nil {
		return Plan{}, err
	}
	plan.Digest = digest
	if target.Sign() == 0 {
		return plan, nil
	}

	remaining := new(big.Int).Set(target)
	for _, crate := range ledger.crates {
		if remaining.Sign() == 0 {
			break
		}
		amount := crate.Amount
		if remaining.Cmp(crate.Amount) < 0 {
			amount = remaining
		}
		removed, _ := split(crate, amount)
		grown, err := p.model.GrownHorde(removed, current)
		if err != nil {
			return Plan{}, err
		}
		plan.Entries = append(plan.Entries, PlanEntry{
			Gameday:    removed.Gameday,
			Amount:     removed.Amount,
			BDV:        removed.BDV,
			Horde:      removed.Horde,
			GrownHorde: grown,
			Prospects:  removed.Prospects,
		})
		plan.Totals.add(removed, grown)
		remaining = new(big.Int).Sub(remaining, amount)
	}
	plan.Shortfall = remaining
	return plan, nil
}

// PlanWithRecruit plans a withdrawal as if recruit had already been
// deposited. The recruited crate is inserted into a copy of the ledger; the
// ledger itself is untouched.
func (p *Planner) PlanWithRecruit(ledger *Ledger, recruit types.Crate, target *big.Int, current uint64) (Plan, error) {
	if target == nil || target.Sign() < 0 {
		return Plan{}, fmt.Errorf("%w: withdrawal target must be non-negative", silerrors.ErrInvalidAmount)
	}
	if ledger == nil {
		return Plan{}, fmt.Errorf("recruit requires a ledger")
	}
	digest, err := ledger.Digest()
	if err != nil {
		return Plan{}, err
	}
	working := ledger.Clone()
	if _, err := working.InsertCrate(recruit); err != nil {
		return Plan{}, err
	}
	plan, err := p.Plan(working, target, current)
	if err != nil {
		return Plan{}, err
	}
	plan.Digest = digest
	recruited := recruit.Clone()
	plan.Recruit = &recruited
	return plan, nil
}

// Apply debits the plan from ledger. The ledger must still match the
// snapshot the plan was computed against; otherwise ErrStalePlan is returned.
// Either every debit is applied or none is.
func Apply(ledger *Ledger, plan Plan) ([]types.Crate, error) {
	if ledger == nil {
		return nil, fmt.Errorf("apply requires a ledger")
	}
	digest, err := ledger.Digest()
	if err != nil {
		return nil, err
	}
	if digest != plan.Digest {
		return nil, fmt.Errorf("%w: %s %s", silerrors.ErrStalePlan, ledger.Account().Hex(), ledger.Token().Symbol)
	}
	working := ledger.Clone()
	if plan.Recruit != nil {
		if _, err := working.InsertCrate(*plan.Recruit); err != nil {
			return nil, err
		}
	}
	removed, err := working.DebitMany(plan.Debits())
	if err != nil {
		return nil, err
	}
	ledger.crates = working.crates
	return removed, nil
}
