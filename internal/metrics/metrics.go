// Package metrics exposes the simulator's prometheus counters and
// gauges for page faults, evictions, OOM events, and scheduler
// dispatches per priority band. Grounded on the pack's cri-resource-manager
// page-migration/demotion control loop, the closest analogue in the
// example set to this simulator's eviction accounting, which pulls in
// the same client library for its own metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the metric collectors this module registers.
// Callers that don't want the default global registry can construct
// one with NewRegistry and pass it to a custom prometheus.Registerer.
type Registry struct {
	PageFaults      *prometheus.CounterVec
	Evictions       prometheus.Counter
	OOMEvents       *prometheus.CounterVec
	SchedDispatches *prometheus.CounterVec
	ResidentPages   prometheus.Gauge
}

// NewRegistry creates a Registry and registers every collector with
// reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		PageFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osvm",
			Name:      "page_faults_total",
			Help:      "Page faults handled by the demand pager, by resolution kind.",
		}, []string{"kind"}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "osvm",
			Name:      "page_evictions_total",
			Help:      "FIFO victim pages evicted to swap.",
		}),
		OOMEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osvm",
			Name:      "oom_events_total",
			Help:      "Operations that failed with OutOfMemory, by originating op.",
		}, []string{"op"}),
		SchedDispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osvm",
			Name:      "sched_dispatches_total",
			Help:      "Scheduler dispatches, by priority band (high, mid, low).",
		}, []string{"prio"}),
		ResidentPages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "osvm",
			Name:      "resident_pages",
			Help:      "Pages currently resident in RAM across all processes.",
		}),
	}

	reg.MustRegister(r.PageFaults, r.Evictions, r.OOMEvents, r.SchedDispatches, r.ResidentPages)
	return r
}

// FaultKind labels the PageFaults counter's "kind" dimension.
type FaultKind string

const (
	FaultFresh   FaultKind = "fresh"
	FaultSwapped FaultKind = "swapped"
)

// ObserveFault records one resolved page fault.
func (r *Registry) ObserveFault(kind FaultKind) {
	r.PageFaults.WithLabelValues(string(kind)).Inc()
}

// ObserveEviction records one FIFO eviction. It does not touch the
// resident-page gauge.
func (r *Registry) ObserveEviction() {
	r.Evictions.Inc()
}

// ObserveOOM records a terminal OutOfMemory failure from op.
func (r *Registry) ObserveOOM(op string) {
	r.OOMEvents.WithLabelValues(op).Inc()
}

// ObserveDispatch records a scheduler dispatch under the band its
// priority falls in: high below 10, mid below 100, low otherwise.
func (r *Registry) ObserveDispatch(prio int) {
	r.SchedDispatches.WithLabelValues(prioLabel(prio)).Inc()
}

func prioLabel(prio int) string {
	switch {
	case prio < 10:
		return "high"
	case prio < 100:
		return "mid"
	default:
		return "low"
	}
}

// SetResident sets the resident-page gauge to n.
func (r *Registry) SetResident(n int) {
	r.ResidentPages.Set(float64(n))
}
