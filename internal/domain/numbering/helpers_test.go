package numbering_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"invoicenum/internal/core/id"
	"invoicenum/internal/core/numerator"
	"invoicenum/internal/domain/numbering"
	"invoicenum/internal/infrastructure/storage/memory"
)

type env struct {
	store     *memory.Store
	metrics   *recordingMetrics
	resolver  *numbering.Resolver
	counters  *numbering.CounterService
	generator *numbering.Generator
	schemes   *numbering.SchemeService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s := memory.New(time.Hour)
	m := &recordingMetrics{}
	resolver := numbering.NewResolver(s.Schemes())
	counters := numbering.NewCounterService(s.Counters(), s.Invoices(), s, m)
	return &env{
		store:     s,
		metrics:   m,
		resolver:  resolver,
		counters:  counters,
		generator: numbering.NewGenerator(resolver, counters, s, m),
		schemes:   numbering.NewSchemeService(s.Schemes(), s, s.Audit(), numbering.ServiceConfig{Metrics: m}),
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// seedScheme inserts a scheme directly, bypassing activation.
func (e *env) seedScheme(t *testing.T, tenantID, template string, rp numerator.ResetPeriod, eff time.Time, version int, status numbering.SchemeStatus) *numbering.NumberingScheme {
	t.Helper()
	s := &numbering.NumberingScheme{
		ID:            id.New(),
		TenantID:      tenantID,
		Template:      template,
		ResetPeriod:   rp,
		EffectiveFrom: eff,
		Version:       version,
		Status:        status,
		CreatedAt:     time.Now().UTC(),
		CreatedBy:     "test",
	}
	require.NoError(t, e.store.Schemes().Insert(context.Background(), s))
	return s
}

func (e *env) activate(t *testing.T, tenantID, template string, rp numerator.ResetPeriod, eff time.Time) *numbering.NumberingScheme {
	t.Helper()
	s, err := e.schemes.CreateScheme(context.Background(), numbering.CreateSchemeInput{
		TenantID: tenantID, Template: template, ResetPeriod: rp, EffectiveFrom: eff,
	})
	require.NoError(t, err)
	return s
}

// recordInvoice persists a generated number the way a caller would.
func (e *env) recordInvoice(t *testing.T, tenantID string, issue time.Time, n *numbering.GeneratedNumber) {
	t.Helper()
	require.NoError(t, e.store.Invoices().Record(context.Background(), n.Invoice(tenantID, issue)))
}

type recordingMetrics struct {
	mu          sync.Mutex
	generated   int
	previewed   int
	healed      int
	conflicts   int
	activations map[string]int
	drift       map[string]int64
}

func (m *recordingMetrics) NumberGenerated(numerator.ResetPeriod) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generated++
}

func (m *recordingMetrics) NumberPreviewed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.previewed++
}

func (m *recordingMetrics) CounterHealed(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healed++
}

func (m *recordingMetrics) SchemeActivated(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activations == nil {
		m.activations = map[string]int{}
	}
	m.activations[outcome]++
}

func (m *recordingMetrics) ActivationConflict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}

func (m *recordingMetrics) CounterDrift(_ string, periodKey string, drift int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.drift == nil {
		m.drift = map[string]int64{}
	}
	m.drift[periodKey] = drift
}
