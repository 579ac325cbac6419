package metrics

import (
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SiloMetrics tracks ledger activity.
type SiloMetrics struct {
	deposits    *prometheus.CounterVec
	plans       *prometheus.CounterVec
	applied     *prometheus.CounterVec
	stalePlans  prometheus.Counter
	converts    *prometheus.CounterVec
	shortfalls  *prometheus.CounterVec
	gameday     prometheus.Gauge
	crates      *prometheus.GaugeVec
	sunriseLags prometheus.Counter
}

var (
	siloOnce     sync.Once
	siloRegistry *SiloMetrics
)

// Silo returns the process-wide silo metrics.
func Silo() *SiloMetrics {
	siloOnce.Do(func() {
		siloRegistry = &SiloMetrics{
			deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "silo_deposits_total",
				Help: "Count of crates deposited by token.",
			}, []string{"token"}),
			plans: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "silo_withdraw_plans_total",
				Help: "Count of withdrawal plans computed by token.",
			}, []string{"token"}),
			applied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "silo_withdraw_plans_applied_total",
				Help: "Count of withdrawal plans applied by token.",
			}, []string{"token"}),
			stalePlans: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "silo_stale_plans_total",
				Help: "Plans rejected because the ledger changed after planning.",
			}),
			converts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "silo_converts_total",
				Help: "Count of crate conversions by source and destination token.",
			}, []string{"from", "to"}),
			shortfalls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "silo_plan_shortfalls_total",
				Help: "Plans that could not cover their withdrawal target.",
			}, []string{"token"}),
			gameday: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "silo_gameday",
				Help: "Current gameday.",
			}),
			crates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "silo_crates",
				Help: "Number of open crates by token.",
			}, []string{"token"}),
			sunriseLags: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "silo_sunrise_catchup_total",
				Help: "Gamedays skipped forward because a sunrise was missed.",
			}),
		}
		prometheus.MustRegister(
			siloRegistry.deposits,
			siloRegistry.plans,
			siloRegistry.applied,
			siloRegistry.stalePlans,
			siloRegistry.converts,
			siloRegistry.shortfalls,
			siloRegistry.gameday,
			siloRegistry.crates,
			siloRegistry.sunriseLags,
		)
	})
	return siloRegistry
}

func label(token string) string {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return "UNKNOWN"
	}
	return token
}

func (m *SiloMetrics) ObserveDeposit(token string) {
	if m == nil {
		return
	}
	m.deposits.WithLabelValues(label(token)).Inc()
}

// ObservePlan records a computed plan and whether it fell short.
func (m *SiloMetrics) ObservePlan(token string, shortfall *big.Int) {
	if m == nil {
		return
	}
	m.plans.WithLabelValues(label(token)).Inc()
	if shortfall != nil && shortfall.Sign() > 0 {
		m.shortfalls.WithLabelValues(label(token)).Inc()
	}
}

func (m *SiloMetrics) ObserveApplied(token string) {
	if m == nil {
		return
	}
	m.applied.WithLabelValues(label(token)).Inc()
}

func (m *SiloMetrics) ObserveStalePlan() {
	if m == nil {
		return
	}
	m.stalePlans.Inc()
}

func (m *SiloMetrics) ObserveConvert(from, to string) {
	if m == nil {
		return
	}
	m.converts.WithLabelValues(label(from), label(to)).Inc()
}

// SetGameday publishes the active gameday.
func (m *SiloMetrics) SetGameday(gameday uint64) {
	if m == nil {
		return
	}
	m.gameday.Set(float64(gameday))
}

// SetCrates publishes the number of open crates for token.
func (m *SiloMetrics) SetCrates(token string, count int) {
	if m == nil {
		return
	}
	m.crates.WithLabelValues(label(token)).Set(float64(count))
}

// ObserveCatchUp records gamedays skipped by a late sunrise.
func (m *SiloMetrics) ObserveCatchUp(skipped uint64) {
	if m == nil || skipped == 0 {
		return
	}
	m.sunriseLags.Add(float64(skipped))
}
