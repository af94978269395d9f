package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matchesLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchesLabels(metric *dto.Metric, labels map[string]string) bool {
	got := map[string]string{}
	for _, pair := range metric.GetLabel() {
		got[pair.GetName()] = pair.GetValue()
	}
	for k, v := range labels {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestObserveResolution(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClinicMetrics(reg)

	m.ObserveResolution("patient", "created")
	m.ObserveResolution("patient", "created")
	m.ObserveResolution("guardian", "existing")

	got := counterValue(t, reg, "clinic_identity_resolutions_total",
		map[string]string{"entity": "patient", "outcome": "created"})
	if got != 2 {
		t.Fatalf("patient created = %v, want 2", got)
	}
}

func TestObserveTransitionOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClinicMetrics(reg)

	m.ObserveTransition("booking_request", "pending", "confirmed", true)
	m.ObserveTransition("booking_request", "pending", "confirmed", false)

	ok := counterValue(t, reg, "clinic_lifecycle_transitions_total",
		map[string]string{"entity": "booking_request", "transition": "pending->confirmed", "outcome": "ok"})
	invalid := counterValue(t, reg, "clinic_lifecycle_transitions_total",
		map[string]string{"entity": "booking_request", "transition": "pending->confirmed", "outcome": "invalid"})
	if ok != 1 || invalid != 1 {
		t.Fatalf("ok = %v, invalid = %v, want 1 and 1", ok, invalid)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *ClinicMetrics
	m.ObserveResolution("patient", "created")
	m.ObserveTransition("appointment", "confirmed", "completed", true)
}
