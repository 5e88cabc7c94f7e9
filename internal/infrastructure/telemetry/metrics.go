// Package telemetry wires Prometheus metrics and OpenTelemetry tracing.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"invoicenum/internal/core/numerator"
	"invoicenum/internal/domain/numbering"
)

const subsystem = "numbering"

// NumberingMetrics implements numbering.Metrics with Prometheus collectors.
type NumberingMetrics struct {
	NumbersGenerated    *prometheus.CounterVec
	NumberPreviews      prometheus.Counter
	CounterHeals        *prometheus.CounterVec
	SchemeActivations   *prometheus.CounterVec
	ActivationConflicts prometheus.Counter
	CounterDriftGauge   *prometheus.GaugeVec
}

// NewNumberingMetrics registers the numbering collectors with reg.
func NewNumberingMetrics(reg prometheus.Registerer, namespace string) *NumberingMetrics {
	factory := promauto.With(reg)
	return &NumberingMetrics{
		NumbersGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "numbers_generated_total",
			Help:      "Invoice numbers reserved, by reset period.",
		}, []string{"reset_period"}),
		NumberPreviews: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "number_previews_total",
			Help:      "Side-effect free next-number previews.",
		}),
		CounterHeals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "counter_heals_total",
			Help:      "Counters raised to the highest persisted sequence.",
		}, []string{"tenant_id"}),
		SchemeActivations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheme_activations_total",
			Help:      "Scheme activation requests by outcome.",
		}, []string{"outcome"}),
		ActivationConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheme_activation_conflicts_total",
			Help:      "Activation attempts that hit a uniqueness collision.",
		}),
		CounterDriftGauge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "counter_drift",
			Help:      "Stored counter value minus highest persisted sequence.",
		}, []string{"tenant_id", "period_key"}),
	}
}

func (m *NumberingMetrics) NumberGenerated(rp numerator.ResetPeriod) {
	m.NumbersGenerated.WithLabelValues(string(rp)).Inc()
}

func (m *NumberingMetrics) NumberPreviewed() { m.NumberPreviews.Inc() }

func (m *NumberingMetrics) CounterHealed(tenantID string) {
	m.CounterHeals.WithLabelValues(tenantID).Inc()
}

func (m *NumberingMetrics) SchemeActivated(outcome string) {
	m.SchemeActivations.WithLabelValues(outcome).Inc()
}

func (m *NumberingMetrics) ActivationConflict() { m.ActivationConflicts.Inc() }

func (m *NumberingMetrics) CounterDrift(tenantID, periodKey string, drift int64) {
	m.CounterDriftGauge.WithLabelValues(tenantID, periodKey).Set(float64(drift))
}

var _ numbering.Metrics = (*NumberingMetrics)(nil)
