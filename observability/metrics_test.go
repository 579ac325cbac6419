package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAPIObserve(t *testing.T) {
	m := API()
	m.Observe("/v1/plans/{id}", "GET", 200, time.Millisecond)
	m.Observe("/v1/plans/{id}", "GET", 404, time.Millisecond)
	if got := testutil.ToFloat64(m.requests.WithLabelValues("/v1/plans/{id}", "GET", "success")); got != 1 {
		t.Fatalf("unexpected success count %v", got)
	}
	if got := testutil.ToFloat64(m.errors.WithLabelValues("/v1/plans/{id}", "GET", "404")); got != 1 {
		t.Fatalf("unexpected error count %v", got)
	}
	m.RecordThrottle("")
	if got := testutil.ToFloat64(m.throttles.WithLabelValues("unspecified")); got != 1 {
		t.Fatalf("unexpected throttle count %v", got)
	}
}

func TestRecordEvent(t *testing.T) {
	m := Events()
	m.RecordEvent("AddDeposit", nil)
	m.RecordEvent("AddDeposit", errors.New("boom"))
	if got := testutil.ToFloat64(m.applied.WithLabelValues("AddDeposit", "rejected")); got != 1 {
		t.Fatalf("unexpected rejected count %v", got)
	}
}
