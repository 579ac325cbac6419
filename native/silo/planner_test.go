package silo

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	silerrors "hooliganhorde/core/errors"
)

func TestPlanOldestFirst(t *testing.T) {
	ledger := newTestLedger(t, [2]int64{10, 5}, [2]int64{20, 5}, [2]int64{30, 5})
	plan, err := NewPlanner(testModel()).Plan(ledger, big.NewInt(7), 30)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(plan.Entries))
	}
	if plan.Entries[0].Gameday != 10 || plan.Entries[0].Amount.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("unexpected first entry: %+v", plan.Entries[0])
	}
	if plan.Entries[1].Gameday != 20 || plan.Entries[1].Amount.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("unexpected second entry: %+v", plan.Entries[1])
	}
	if plan.Shortfall.Sign() != 0 {
		t.Fatalf("unexpected shortfall: %s", plan.Shortfall)
	}
	if ledger.TotalAmount().Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("planning mutated the ledger")
	}
}

func TestPlanEmptyLedgerReportsFullShortfall(t *testing.T) {
	ledger := newTestLedger(t)
	plan, err := NewPlanner(testModel()).Plan(ledger, big.NewInt(100), 1)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !plan.Empty() {
		t.Fatalf("expected no entries, got %+v", plan.Entries)
	}
	if plan.Shortfall.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected shortfall: %s", plan.Shortfall)
	}
}

func TestPlanZeroTargetIsNoop(t *testing.T) {
	ledger := newTestLedger(t, [2]int64{10, 5}, [2]int64{20, 5})
	// A regressed gameday is irrelevant when nothing is withdrawn.
	for _, current := range []uint64{0, 10, 500} {
		plan, err := NewPlanner(testModel()).Plan(ledger, big.NewInt(0), current)
		if err != nil {
			t.Fatalf("plan at %d: %v", current, err)
		}
		if !plan.Empty() || plan.Shortfall.Sign() != 0 {
			t.Fatalf("expected empty plan at %d, got %+v", current, plan)
		}
	}
}

func TestPlanRejectsNegativeTarget(t *testing.T) {
	ledger := newTestLedger(t, [2]int64{10, 5})
	planner := NewPlanner(testModel())
	if _, err := planner.Plan(ledger, big.NewInt(-1), 10); !errors.Is(err, silerrors.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := planner.Plan(ledger, nil, 10); !errors.Is(err, silerrors.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for nil target, got %v", err)
	}
}

func TestPlanRejectsRegressedGameday(t *testing.T) {
	ledger := newTestLedger(t, [2]int64{10, 5})
	if _, err := NewPlanner(testModel()).Plan(ledger, big.NewInt(1), 9); !errors.Is(err, silerrors.ErrInvalidEpoch) {
		t.Fatalf("expected ErrInvalidEpoch, got %v", err)
	}
}

func TestPlanShortfallConsumesEverything(t *testing.T) {
	ledger := newTestLedger(t, [2]int64{1, 4}, [2]int64{2, 6})
	plan, err := NewPlanner(testModel()).Plan(ledger, big.NewInt(25), 2)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Entries) != 2 || plan.Totals.Amount.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if plan.Shortfall.Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("unexpected shortfall: %s", plan.Shortfall)
	}
}

func TestPlanReportsRemovedRewards(t *testing.T) {
	ledger := newTestLedger(t, [2]int64{10, 1_000_000}, [2]int64{20, 1_000_000})
	plan, err := NewPlanner(testModel()).Plan(ledger, big.NewInt(1_500_000), 30)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	// Full crate at 10: 2e6 prospects * 20 gamedays; half crate at 20: 1e6 * 10.
	if plan.Totals.GrownHorde.Cmp(big.NewInt(50_000_000)) != 0 {
		t.Fatalf("unexpected grown horde: %s", plan.Totals.GrownHorde)
	}
	if plan.Totals.Horde.Cmp(big.NewInt(15_000_000_000)) != 0 {
		t.Fatalf("unexpected base horde: %s", plan.Totals.Horde)
	}
	if plan.Totals.Prospects.Cmp(big.NewInt(3_000_000)) != 0 {
		t.Fatalf("unexpected prospects: %s", plan.Totals.Prospects)
	}
}

func TestApplyDebitsPlan(t *testing.T) {
	ledger := newTestLedger(t, [2]int64{10, 5}, [2]int64{20, 5}, [2]int64{30, 5})
	plan, err := NewPlanner(testModel()).Plan(ledger, big.NewInt(7), 30)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if _, err := Apply(ledger, plan); err != nil {
		t.Fatalf("apply: %v", err)
	}
	crates := ledger.Crates()
	if len(crates) != 2 || crates[0].Gameday != 20 || crates[0].Amount.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("unexpected crates after apply: %+v", crates)
	}
}

func TestApplyRejectsStalePlan(t *testing.T) {
	ledger := newTestLedger(t, [2]int64{10, 5})
	plan, err := NewPlanner(testModel()).Plan(ledger, big.NewInt(5), 10)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if _, err := ledger.Deposit(11, big.NewInt(1), big.NewInt(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := Apply(ledger, plan); !errors.Is(err, silerrors.ErrStalePlan) {
		t.Fatalf("expected ErrStalePlan, got %v", err)
	}
	if ledger.TotalAmount().Cmp(big.NewInt(6)) != 0 {
		t.Fatalf("stale plan mutated the ledger")
	}
}

func TestPlanWithRecruit(t *testing.T) {
	ledger := newTestLedger(t, [2]int64{10, 5})
	recruit, err := RecruitCrate(testModel(), hooliganToken(), 40, big.NewInt(3))
	if err != nil {
		t.Fatalf("recruit: %v", err)
	}
	planner := NewPlanner(testModel())
	plan, err := planner.PlanWithRecruit(ledger, recruit, big.NewInt(7), 40)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Shortfall.Sign() != 0 || len(plan.Entries) != 2 || plan.Entries[1].Gameday != 40 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if ledger.Len() != 1 {
		t.Fatalf("recruit leaked into the source ledger")
	}
	if _, err := Apply(ledger, plan); err != nil {
		t.Fatalf("apply: %v", err)
	}
	remaining, ok := ledger.Crate(40)
	if !ok || remaining.Amount.Cmp(big.NewInt(1)) != 0 || ledger.Len() != 1 {
		t.Fatalf("unexpected ledger after recruit withdrawal: %+v", ledger.Crates())
	}
}

func TestPlanConservationProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	planner := NewPlanner(testModel())
	for round := 0; round < 200; round++ {
		ledger := NewLedger(testAccount, hooliganToken(), testModel())
		crates := rng.Intn(8)
		for i := 0; i < crates; i++ {
			amount := big.NewInt(rng.Int63n(1_000_000) + 1)
			bdv := big.NewInt(rng.Int63n(1_000_000))
			_, err := ledger.Deposit(uint64(rng.Intn(50)+1), amount, bdv)
			require.NoError(t, err)
		}
		total := ledger.TotalAmount()
		target := new(big.Int).Rand(rng, new(big.Int).Add(total, big.NewInt(1)))
		plan, err := planner.Plan(ledger, target, 60)
		require.NoError(t, err)

		sum := big.NewInt(0)
		previous := uint64(0)
		for i, entry := range plan.Entries {
			require.Positive(t, entry.Amount.Sign(), "entry %d has no amount", i)
			require.GreaterOrEqual(t, entry.Gameday, previous, "entries out of order")
			previous = entry.Gameday
			crate, ok := ledger.Crate(entry.Gameday)
			require.True(t, ok)
			require.LessOrEqual(t, entry.Amount.Cmp(crate.Amount), 0, "entry exceeds crate")
			if i < len(plan.Entries)-1 {
				require.Zero(t, entry.Amount.Cmp(crate.Amount), "only the last entry may be partial")
			}
			sum.Add(sum, entry.Amount)
		}
		require.Zero(t, sum.Cmp(target), "round %d: sum %s target %s", round, sum, target)
		require.Zero(t, plan.Shortfall.Sign())

		_, err = Apply(ledger, plan)
		require.NoError(t, err)
		require.Zero(t, ledger.TotalAmount().Cmp(new(big.Int).Sub(total, target)))
		for _, crate := range ledger.Crates() {
			require.Positive(t, crate.Amount.Sign())
		}
	}
}
