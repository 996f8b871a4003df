package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"lendpool/core/events"
)

// LendingMetrics exposes pool activity counters keyed by event type. Assets
// are not used as labels; the ledger can list arbitrary tokens and the
// per-asset breakdown lives in the event stream instead.
type LendingMetrics struct {
	operations   *prometheus.CounterVec
	liquidations prometheus.Counter
	flashLoans   prometheus.Counter
	paused       prometheus.Gauge
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

// Lending returns the singleton metrics set, registering the collectors on
// first use.
func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_operations_total",
				Help: "Count of completed ledger operations by event type.",
			}, []string{"type"}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lending_liquidations_total",
				Help: "Count of completed liquidations.",
			}),
			flashLoans: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lending_flash_loans_total",
				Help: "Count of completed flash loans.",
			}),
			paused: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lending_pool_paused",
				Help: "1 while the pool is paused, 0 otherwise.",
			}),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.liquidations,
			lendingRegistry.flashLoans,
			lendingRegistry.paused,
		)
	})
	return lendingRegistry
}

// Emit implements events.Emitter so the metrics set can sit in the engine's
// emitter chain.
func (m *LendingMetrics) Emit(ev events.Event) {
	if m == nil || ev == nil {
		return
	}
	m.operations.WithLabelValues(ev.EventType()).Inc()
	switch ev.EventType() {
	case events.TypeLendingLiquidate:
		m.liquidations.Inc()
	case events.TypeLendingFlashLoan:
		m.flashLoans.Inc()
	case events.TypeLendingPaused:
		m.paused.Set(1)
	case events.TypeLendingUnpaused:
		m.paused.Set(0)
	}
}
