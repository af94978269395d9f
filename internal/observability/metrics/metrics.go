package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ClinicMetrics exposes counters for identity resolution and lifecycle
// transitions. All observe methods are nil-safe so wiring stays optional.
type ClinicMetrics struct {
	resolutionsTotal *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
}

func NewClinicMetrics(reg prometheus.Registerer) *ClinicMetrics {
	m := &ClinicMetrics{
		resolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "identity",
			Name:      "resolutions_total",
			Help:      "Identity resolutions by entity and outcome",
		}, []string{"entity", "outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Attempted lifecycle transitions by entity, edge and outcome",
		}, []string{"entity", "transition", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.resolutionsTotal, m.transitionsTotal)
	return m
}

// ObserveResolution records one identity resolution. Outcome is one of
// "existing", "created" or "conflict_recovered".
func (m *ClinicMetrics) ObserveResolution(entity, outcome string) {
	if m == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues(entity, outcome).Inc()
}

// ObserveTransition records one attempted transition.
func (m *ClinicMetrics) ObserveTransition(entity, from, to string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "invalid"
	}
	m.transitionsTotal.WithLabelValues(entity, fmt.Sprintf("%s->%s", from, to), outcome).Inc()
}
