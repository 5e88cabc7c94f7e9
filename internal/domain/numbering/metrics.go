package numbering

import "invoicenum/internal/core/numerator"

// Activation outcomes reported to Metrics.
const (
	OutcomeActivated = "activated"
	OutcomeConflict  = "conflict"
	OutcomeFailed    = "failed"
)

// Metrics receives numbering events. The Prometheus implementation lives in
// infrastructure/telemetry.
type Metrics interface {
	NumberGenerated(rp numerator.ResetPeriod)
	NumberPreviewed()
	CounterHealed(tenantID string)
	SchemeActivated(outcome string)
	ActivationConflict()
	CounterDrift(tenantID, periodKey string, drift int64)
}

// NopMetrics discards all events.
type NopMetrics struct{}

func (NopMetrics) NumberGenerated(numerator.ResetPeriod) {}
func (NopMetrics) NumberPreviewed()                      {}
func (NopMetrics) CounterHealed(string)                  {}
func (NopMetrics) SchemeActivated(string)                {}
func (NopMetrics) ActivationConflict()                   {}
func (NopMetrics) CounterDrift(string, string, int64)    {}

var _ Metrics = NopMetrics{}
