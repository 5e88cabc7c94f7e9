package numbering_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicenum/internal/core/numerator"
	"invoicenum/internal/core/tenant"
	"invoicenum/internal/domain/numbering"
)

func TestListCounters_ReportsDrift(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.activate(t, "t1", "INV-{YYYY}{MM}-{SEQ:3}", numerator.ResetMonthly, date(2026, 1, 1))

	for i := 0; i < 3; i++ {
		n, err := e.generator.Generate(ctx, "t1", date(2026, 1, 10), nil)
		require.NoError(t, err)
		e.recordInvoice(t, "t1", date(2026, 1, 10), n)
	}
	n, err := e.generator.Generate(ctx, "t1", date(2026, 2, 10), nil)
	require.NoError(t, err)
	e.recordInvoice(t, "t1", date(2026, 2, 10), n)

	jan, _ := numerator.ScopeFor("t1", numerator.ResetMonthly, date(2026, 1, 10))
	e.store.Counters().Set(jan, 1)

	obs := numbering.NewObserver(e.store.Counters(), e.store.Invoices(), e.resolver, e.metrics)
	report, err := obs.ListCounters(ctx, "t1")
	require.NoError(t, err)

	assert.Equal(t, s.Template, report.CurrentTemplate)
	require.NotNil(t, report.CurrentSchemeID)
	assert.Equal(t, s.ID, *report.CurrentSchemeID)
	assert.Equal(t, 2, report.TotalCounters)
	assert.Equal(t, 1, report.DriftedCounters)

	feb, janRow := report.Counters[0], report.Counters[1]
	assert.Equal(t, "2026-02", feb.PeriodKey)
	assert.False(t, feb.HasDrift)
	assert.Equal(t, "INV-202602-001", feb.LastInvoiceNumber)

	assert.Equal(t, "2026-01", janRow.PeriodKey)
	assert.Equal(t, 2026, janRow.PeriodYear)
	assert.Equal(t, 1, janRow.PeriodMonth)
	assert.Equal(t, int64(1), janRow.StoredValue)
	assert.Equal(t, int64(3), janRow.ExpectedValue)
	assert.Equal(t, int64(3), janRow.InvoiceCount)
	assert.True(t, janRow.HasDrift)
	assert.True(t, janRow.Behind())
	assert.Equal(t, int64(-2), e.metrics.drift["2026-01"])

	// Listing is read-only.
	current, _ := e.store.Counters().Current(ctx, jan)
	assert.Equal(t, int64(1), current)
}

func TestListCounters_GapIsDriftButNotBehind(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.activate(t, "t1", "INV-{SEQ:4}", numerator.ResetNever, date(2026, 1, 1))

	_, err := e.generator.Generate(ctx, "t1", date(2026, 1, 10), nil)
	require.NoError(t, err)

	report, err := numbering.NewObserver(e.store.Counters(), e.store.Invoices(), e.resolver, nil).ListCounters(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, report.Counters, 1)

	row := report.Counters[0]
	assert.Equal(t, "NEVER", row.PeriodKey)
	assert.Equal(t, int64(0), row.ExpectedValue)
	assert.Nil(t, row.MaxSequence)
	assert.True(t, row.HasDrift)
	assert.False(t, row.Behind())
}

func TestListCounters_NoScheme(t *testing.T) {
	e := newEnv(t)
	report, err := numbering.NewObserver(e.store.Counters(), e.store.Invoices(), e.resolver, nil).ListCounters(context.Background(), "t1")
	require.NoError(t, err)
	assert.Empty(t, report.CurrentTemplate)
	assert.Nil(t, report.CurrentSchemeID)
	assert.Empty(t, report.Counters)
}

func TestReconciler_HealsOnlyLaggingCounters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	reg := e.store.Tenants()
	active := &tenant.Tenant{Slug: "acme", DisplayName: "Acme"}
	require.NoError(t, reg.Create(ctx, active))
	suspended := &tenant.Tenant{Slug: "dormant", DisplayName: "Dormant", Status: tenant.StatusSuspended}
	require.NoError(t, reg.Create(ctx, suspended))

	e.activate(t, active.ID, "INV-{SEQ:4}", numerator.ResetYearly, date(2026, 1, 1))
	for i := 0; i < 4; i++ {
		n, err := e.generator.Generate(ctx, active.ID, date(2026, 5, 1), nil)
		require.NoError(t, err)
		e.recordInvoice(t, active.ID, date(2026, 5, 1), n)
	}
	scope, _ := numerator.ScopeFor(active.ID, numerator.ResetYearly, date(2026, 5, 1))
	e.store.Counters().Set(scope, 2)

	obs := numbering.NewObserver(e.store.Counters(), e.store.Invoices(), e.resolver, nil)

	reportOnly := numbering.NewReconciler(reg, obs, e.counters, false, 2)
	results, err := reportOnly.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Drifted)
	assert.Equal(t, 0, results[0].Healed)

	healing := numbering.NewReconciler(reg, obs, e.counters, true, 2)
	results, err = healing.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, active.ID, results[0].TenantID)
	assert.Equal(t, 1, results[0].Healed)

	current, _ := e.store.Counters().Current(ctx, scope)
	assert.Equal(t, int64(4), current)

	n, err := e.generator.Generate(ctx, active.ID, date(2026, 5, 2), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n.SequenceNumber)
}

func TestReconciler_SkipsMalformedPeriodKey(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	reg := e.store.Tenants()
	acme := &tenant.Tenant{Slug: "acme", DisplayName: "Acme"}
	require.NoError(t, reg.Create(ctx, acme))

	e.activate(t, acme.ID, "INV-{SEQ:4}", numerator.ResetNever, date(2026, 1, 1))
	for i := 0; i < 5; i++ {
		n, err := e.generator.Generate(ctx, acme.ID, date(2026, 7, 1), nil)
		require.NoError(t, err)
		e.recordInvoice(t, acme.ID, date(2026, 7, 1), n)
	}

	broken := numerator.Scope{TenantID: acme.ID, ResetPeriod: numerator.ResetMonthly, PeriodKey: "2026/07"}
	e.store.Counters().Set(broken, 0)

	obs := numbering.NewObserver(e.store.Counters(), e.store.Invoices(), e.resolver, nil)
	report, err := obs.ListCounters(ctx, acme.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalCounters)
	assert.Equal(t, 1, report.MalformedCounters)
	assert.Equal(t, 0, report.DriftedCounters)

	var row numbering.CounterStatus
	for _, c := range report.Counters {
		if c.PeriodKey == "2026/07" {
			row = c
		}
	}
	assert.True(t, row.Malformed)
	assert.Equal(t, int64(0), row.ExpectedValue)
	assert.Equal(t, int64(0), row.InvoiceCount)
	assert.Nil(t, row.MaxSequence)
	assert.False(t, row.HasDrift)
	assert.False(t, row.Behind())

	results, err := numbering.NewReconciler(reg, obs, e.counters, true, 1).Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Malformed)
	assert.Equal(t, 0, results[0].Healed)

	current, err := e.store.Counters().Current(ctx, broken)
	require.NoError(t, err)
	assert.Equal(t, int64(0), current)
}

type failingLedger struct {
	numbering.InvoiceLedger
	tenantID string
}

func (l failingLedger) FindMaxSequenceNumber(ctx context.Context, tenantID string, p numerator.PeriodComponents) (int64, bool, error) {
	if tenantID == l.tenantID {
		return 0, false, errors.New("connection reset")
	}
	return l.InvoiceLedger.FindMaxSequenceNumber(ctx, tenantID, p)
}

func TestReconciler_KeepsResultsOfHealthyTenants(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	reg := e.store.Tenants()
	good := &tenant.Tenant{Slug: "good", DisplayName: "Good"}
	bad := &tenant.Tenant{Slug: "bad", DisplayName: "Bad"}
	require.NoError(t, reg.Create(ctx, good))
	require.NoError(t, reg.Create(ctx, bad))

	for _, tn := range []*tenant.Tenant{good, bad} {
		e.activate(t, tn.ID, "INV-{SEQ:4}", numerator.ResetNever, date(2026, 1, 1))
		_, err := e.generator.Generate(ctx, tn.ID, date(2026, 3, 1), nil)
		require.NoError(t, err)
	}

	ledger := failingLedger{InvoiceLedger: e.store.Invoices(), tenantID: bad.ID}
	obs := numbering.NewObserver(e.store.Counters(), ledger, e.resolver, nil)

	results, err := numbering.NewReconciler(reg, obs, e.counters, false, 2).Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad.ID)
	require.Len(t, results, 1)
	assert.Equal(t, good.ID, results[0].TenantID)
	assert.Equal(t, 1, results[0].Counters)
	assert.Equal(t, 1, results[0].Drifted)
}
