package metrics

import (
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSiloMetrics(t *testing.T) {
	m := Silo()
	m.ObservePlan("hooligan", big.NewInt(0))
	m.ObservePlan("HOOLIGAN", big.NewInt(5))
	if got := testutil.ToFloat64(m.plans.WithLabelValues("HOOLIGAN")); got != 2 {
		t.Fatalf("unexpected plan count %v", got)
	}
	if got := testutil.ToFloat64(m.shortfalls.WithLabelValues("HOOLIGAN")); got != 1 {
		t.Fatalf("unexpected shortfall count %v", got)
	}
	m.SetGameday(42)
	if got := testutil.ToFloat64(m.gameday); got != 42 {
		t.Fatalf("unexpected gameday %v", got)
	}
	m.ObserveConvert("", "hooligan3crv")
	if got := testutil.ToFloat64(m.converts.WithLabelValues("UNKNOWN", "HOOLIGAN3CRV")); got != 1 {
		t.Fatalf("unexpected convert count %v", got)
	}
	m.ObserveCatchUp(0)
	m.ObserveCatchUp(3)
	if got := testutil.ToFloat64(m.sunriseLags); got != 3 {
		t.Fatalf("unexpected catch-up count %v", got)
	}
	var nilMetrics *SiloMetrics
	nilMetrics.ObserveDeposit("HOOLIGAN")
}
