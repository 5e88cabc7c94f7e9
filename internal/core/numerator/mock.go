package numerator

import (
	"context"
)

// MockCounterRepository is a test implementation of CounterRepository.
// Unset funcs behave like an empty store.
type MockCounterRepository struct {
	CurrentFunc      func(ctx context.Context, scope Scope) (int64, error)
	RaiseToFunc      func(ctx context.Context, scope Scope, floor int64) (int64, error)
	IncrementFunc    func(ctx context.Context, scope Scope) (int64, error)
	ListByTenantFunc func(ctx context.Context, tenantID string) ([]Counter, error)
}

// Current implements CounterRepository.
func (m *MockCounterRepository) Current(ctx context.Context, scope Scope) (int64, error) {
	if m.CurrentFunc != nil {
		return m.CurrentFunc(ctx, scope)
	}
	return 0, nil
}

// RaiseTo implements CounterRepository.
func (m *MockCounterRepository) RaiseTo(ctx context.Context, scope Scope, floor int64) (int64, error) {
	if m.RaiseToFunc != nil {
		return m.RaiseToFunc(ctx, scope, floor)
	}
	return floor, nil
}

// Increment implements CounterRepository.
func (m *MockCounterRepository) Increment(ctx context.Context, scope Scope) (int64, error) {
	if m.IncrementFunc != nil {
		return m.IncrementFunc(ctx, scope)
	}
	return 1, nil
}

// ListByTenant implements CounterRepository.
func (m *MockCounterRepository) ListByTenant(ctx context.Context, tenantID string) ([]Counter, error) {
	if m.ListByTenantFunc != nil {
		return m.ListByTenantFunc(ctx, tenantID)
	}
	return nil, nil
}

// MockSequenceLedger is a test implementation of SequenceLedger.
type MockSequenceLedger struct {
	FindMaxSequenceNumberFunc func(ctx context.Context, tenantID string, period PeriodComponents) (int64, bool, error)
}

// FindMaxSequenceNumber implements SequenceLedger.
func (m *MockSequenceLedger) FindMaxSequenceNumber(ctx context.Context, tenantID string, period PeriodComponents) (int64, bool, error) {
	if m.FindMaxSequenceNumberFunc != nil {
		return m.FindMaxSequenceNumberFunc(ctx, tenantID, period)
	}
	return 0, false, nil
}

// Ensure compile-time interface compliance.
var (
	_ CounterRepository = (*MockCounterRepository)(nil)
	_ SequenceLedger    = (*MockSequenceLedger)(nil)
)
