// Package memory is a process-local storage backend for development and
// tests. A single mutex serializes transactions; a failed transaction
// restores the snapshot taken when it began, so rollback semantics match
// the PostgreSQL backend.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"invoicenum/internal/core/id"
	"invoicenum/internal/core/idempotency"
	"invoicenum/internal/core/numerator"
	"invoicenum/internal/core/tenant"
	"invoicenum/internal/domain/audit"
	"invoicenum/internal/domain/numbering"
)

type counterKey struct {
	tenantID    string
	resetPeriod numerator.ResetPeriod
	periodKey   string
}

type idemKey struct {
	tenantID string
	key      string
}

type state struct {
	tenants     map[string]tenant.Tenant
	schemes     map[id.ID]numbering.NumberingScheme
	counters    map[counterKey]numerator.Counter
	invoices    []numbering.IssuedInvoice
	departments map[id.ID]numerator.Department
	audit       []audit.Entry
	idem        map[idemKey]idempotency.Record
}

func newState() state {
	return state{
		tenants:     make(map[string]tenant.Tenant),
		schemes:     make(map[id.ID]numbering.NumberingScheme),
		counters:    make(map[counterKey]numerator.Counter),
		departments: make(map[id.ID]numerator.Department),
		idem:        make(map[idemKey]idempotency.Record),
	}
}

// clone copies every collection. Stored values are never mutated in place,
// so a shallow copy of each container is a full snapshot.
func (s state) clone() state {
	return state{
		tenants:     maps.Clone(s.tenants),
		schemes:     maps.Clone(s.schemes),
		counters:    maps.Clone(s.counters),
		invoices:    slices.Clone(s.invoices),
		departments: maps.Clone(s.departments),
		audit:       slices.Clone(s.audit),
		idem:        maps.Clone(s.idem),
	}
}

// Store holds all entities and implements every repository contract.
type Store struct {
	mu  sync.Mutex
	st  state
	now func() time.Time
	ttl time.Duration
}

// New creates an empty store. idempotencyTTL bounds how long replay records live.
func New(idempotencyTTL time.Duration) *Store {
	if idempotencyTTL <= 0 {
		idempotencyTTL = 24 * time.Hour
	}
	return &Store{st: newState(), now: time.Now, ttl: idempotencyTTL}
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// RunInTransaction implements tx.Manager. Nested calls join the outer
// transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// ReadOnly implements tx.ReadOnlyManager.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransaction(ctx, fn)
}

// do runs fn under the store lock unless ctx already holds it.
func (s *Store) do(ctx context.Context, fn func() error) error {
	if s.inTx(ctx) {
		return fn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// Schemes returns the scheme repository view.
func (s *Store) Schemes() *SchemeRepo { return &SchemeRepo{s: s} }

// Counters returns the counter repository view.
func (s *Store) Counters() *CounterRepo { return &CounterRepo{s: s} }

// Invoices returns the invoice ledger view.
func (s *Store) Invoices() *InvoiceRepo { return &InvoiceRepo{s: s} }

// Departments returns the department directory view.
func (s *Store) Departments() *DepartmentRepo { return &DepartmentRepo{s: s} }

// Tenants returns the tenant registry view.
func (s *Store) Tenants() *TenantRegistry { return &TenantRegistry{s: s} }

// Audit returns the audit log view.
func (s *Store) Audit() *AuditLog { return &AuditLog{s: s} }

// Idempotency returns the idempotency store view.
func (s *Store) Idempotency() *IdempotencyStore { return &IdempotencyStore{s: s} }
