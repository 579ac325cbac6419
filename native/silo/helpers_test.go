package silo

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"hooliganhorde/core/rewards"
	"hooliganhorde/core/types"
)

var testAccount = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func hooliganToken() Token {
	return Token{
		Symbol:          "HOOLIGAN",
		Address:         common.HexToAddress("0x00000000000000000000000000000000000000b1"),
		Decimals:        6,
		ProspectsPerBDV: rewards.NewRatio(2, 1),
	}
}

func lpToken() Token {
	return Token{
		Symbol:          "HOOLIGAN3CRV",
		Address:         common.HexToAddress("0x00000000000000000000000000000000000000b2"),
		Decimals:        18,
		ProspectsPerBDV: rewards.NewRatio(4, 1),
	}
}

func testModel() *rewards.Model {
	return rewards.MustModel(rewards.DefaultParams())
}

func newTestLedger(t *testing.T, deposits ...[2]int64) *Ledger {
	t.Helper()
	ledger := NewLedger(testAccount, hooliganToken(), testModel())
	for _, dep := range deposits {
		if _, err := ledger.Deposit(uint64(dep[0]), big.NewInt(dep[1]), big.NewInt(dep[1])); err != nil {
			t.Fatalf("deposit %v: %v", dep, err)
		}
	}
	return ledger
}

func gamedays(ledger *Ledger) []uint64 {
	crates := ledger.Crates()
	out := make([]uint64, len(crates))
	for i := range crates {
		out[i] = crates[i].Gameday
	}
	return out
}

func assertCratesEqual(t *testing.T, got, want []types.Crate) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("crate count mismatch: got %d want %d", len(got), len(want))
	}
	for i := range got {
		g, w := got[i], want[i]
		if g.Gameday != w.Gameday ||
			g.Amount.Cmp(w.Amount) != 0 ||
			g.BDV.Cmp(w.BDV) != 0 ||
			g.Horde.Cmp(w.Horde) != 0 ||
			g.Prospects.Cmp(w.Prospects) != 0 {
			t.Fatalf("crate %d mismatch: got %+v want %+v", i, g, w)
		}
	}
}
