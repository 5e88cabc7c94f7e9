package numbering

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"invoicenum/internal/core/apperror"
	"invoicenum/internal/core/id"
	"invoicenum/internal/core/numerator"
	"invoicenum/pkg/logger"
)

// CounterStatus describes one counter against the invoices it numbered.
type CounterStatus struct {
	TenantID          string                `json:"tenantId"`
	ResetPeriod       numerator.ResetPeriod `json:"resetPeriod"`
	PeriodKey         string                `json:"periodKey"`
	PeriodYear        int                   `json:"periodYear"`
	PeriodMonth       int                   `json:"periodMonth"`
	StoredValue       int64                 `json:"storedValue"`
	ExpectedValue     int64                 `json:"expectedValue"`
	HasDrift          bool                  `json:"hasDrift"`
	InvoiceCount      int64                 `json:"invoiceCount"`
	MaxSequence       *int64                `json:"maxSequence,omitempty"`
	LastInvoiceNumber string                `json:"lastInvoiceNumber,omitempty"`
	UpdatedAt         time.Time             `json:"updatedAt"`

	// Malformed is set when PeriodKey does not parse for ResetPeriod. Such a
	// row has no invoice period, so its expected value is unknown.
	Malformed bool `json:"malformed,omitempty"`
}

// Scope returns the counter scope this status describes.
func (c CounterStatus) Scope() numerator.Scope {
	return numerator.Scope{
		TenantID:    c.TenantID,
		ResetPeriod: c.ResetPeriod,
		PeriodKey:   c.PeriodKey,
		Period:      numerator.PeriodComponents{Year: c.PeriodYear, Month: c.PeriodMonth},
	}
}

// Behind reports whether the counter is lower than persisted invoices, the
// only drift direction that healing corrects. Malformed rows are never behind.
func (c CounterStatus) Behind() bool {
	return !c.Malformed && c.StoredValue < c.ExpectedValue
}

// CounterReport is the per-tenant observability listing.
type CounterReport struct {
	TenantID          string          `json:"tenantId"`
	CurrentSchemeID   *id.ID          `json:"currentSchemeId,omitempty"`
	CurrentTemplate   string          `json:"currentTemplate"`
	Counters          []CounterStatus `json:"counters"`
	TotalCounters     int             `json:"totalCounters"`
	DriftedCounters   int             `json:"driftedCounters"`
	MalformedCounters int             `json:"malformedCounters"`
	GeneratedAt       time.Time       `json:"generatedAt"`
}

// Observer builds read-only counter reports. It never mutates state.
type Observer struct {
	counters numerator.CounterRepository
	ledger   InvoiceLedger
	resolver *Resolver
	metrics  Metrics
	now      func() time.Time
}

// NewObserver creates an observer.
func NewObserver(counters numerator.CounterRepository, ledger InvoiceLedger, resolver *Resolver, metrics Metrics) *Observer {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Observer{counters: counters, ledger: ledger, resolver: resolver, metrics: metrics, now: time.Now}
}

// ListCounters reports every counter of the tenant, ordered by reset period,
// then period key descending. Expected value is the highest persisted
// sequence of the counter's period, 0 when it has no invoices.
func (o *Observer) ListCounters(ctx context.Context, tenantID string) (*CounterReport, error) {
	counters, err := o.counters.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}

	now := o.now()
	report := &CounterReport{TenantID: tenantID, GeneratedAt: now.UTC()}

	current, err := o.resolver.Resolve(ctx, tenantID, now)
	switch {
	case err == nil:
		report.CurrentTemplate = current.Template
		report.CurrentSchemeID = &current.ID
	case apperror.IsNotConfigured(err):
	default:
		return nil, err
	}

	report.Counters = make([]CounterStatus, 0, len(counters))
	for _, c := range counters {
		status, err := o.status(ctx, c)
		if err != nil {
			return nil, err
		}
		report.Counters = append(report.Counters, status)
	}

	report.TotalCounters = len(report.Counters)
	report.DriftedCounters = lo.CountBy(report.Counters, func(c CounterStatus) bool { return c.HasDrift })
	report.MalformedCounters = lo.CountBy(report.Counters, func(c CounterStatus) bool { return c.Malformed })
	return report, nil
}

func (o *Observer) status(ctx context.Context, c numerator.Counter) (CounterStatus, error) {
	st := CounterStatus{
		TenantID:    c.TenantID,
		ResetPeriod: c.ResetPeriod,
		PeriodKey:   c.PeriodKey,
		StoredValue: c.LastValue,
		UpdatedAt:   c.UpdatedAt,
	}

	period, err := numerator.ParsePeriodKey(c.ResetPeriod, c.PeriodKey)
	if err != nil {
		// Skip the ledger: period (0,0) would match NEVER-scope invoices.
		st.Malformed = true
		logger.Warn(ctx, "malformed counter period key",
			"tenant_id", c.TenantID,
			"reset_period", c.ResetPeriod,
			"period_key", c.PeriodKey,
			"stored_value", c.LastValue,
			"error", err,
		)
		return st, nil
	}
	st.PeriodYear = period.Year
	st.PeriodMonth = period.Month

	maxSeq, ok, err := o.ledger.FindMaxSequenceNumber(ctx, c.TenantID, period)
	if err != nil {
		return st, fmt.Errorf("max persisted sequence: %w", err)
	}
	if ok {
		st.MaxSequence = &maxSeq
		st.ExpectedValue = maxSeq
		last, found, err := o.ledger.FindLastDisplayNumber(ctx, c.TenantID, period)
		if err != nil {
			return st, fmt.Errorf("last display number: %w", err)
		}
		if found {
			st.LastInvoiceNumber = last
		}
	}

	st.InvoiceCount, err = o.ledger.CountByPeriod(ctx, c.TenantID, period)
	if err != nil {
		return st, fmt.Errorf("count invoices: %w", err)
	}

	st.HasDrift = st.StoredValue != st.ExpectedValue
	o.metrics.CounterDrift(c.TenantID, c.PeriodKey, st.StoredValue-st.ExpectedValue)
	if st.HasDrift {
		logger.Warn(ctx, "counter drift detected",
			"tenant_id", c.TenantID,
			"reset_period", c.ResetPeriod,
			"period_key", c.PeriodKey,
			"stored_value", st.StoredValue,
			"expected_value", st.ExpectedValue,
		)
	}
	return st, nil
}
