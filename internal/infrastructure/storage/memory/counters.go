package memory

import (
	"context"
	"slices"
	"strings"

	"invoicenum/internal/core/numerator"
)

// CounterRepo implements numerator.CounterRepository.
type CounterRepo struct{ s *Store }

func keyOf(scope numerator.Scope) counterKey {
	return counterKey{tenantID: scope.TenantID, resetPeriod: scope.ResetPeriod, periodKey: scope.PeriodKey}
}

func (r *CounterRepo) Current(ctx context.Context, scope numerator.Scope) (int64, error) {
	var v int64
	err := r.s.do(ctx, func() error {
		v = r.s.st.counters[keyOf(scope)].LastValue
		return nil
	})
	return v, err
}

func (r *CounterRepo) RaiseTo(ctx context.Context, scope numerator.Scope, floor int64) (int64, error) {
	var v int64
	err := r.s.do(ctx, func() error {
		c := r.row(scope)
		c.LastValue = max(c.LastValue, floor)
		c.UpdatedAt = r.s.now().UTC()
		r.s.st.counters[keyOf(scope)] = c
		v = c.LastValue
		return nil
	})
	return v, err
}

func (r *CounterRepo) Increment(ctx context.Context, scope numerator.Scope) (int64, error) {
	var v int64
	err := r.s.do(ctx, func() error {
		c := r.row(scope)
		c.LastValue++
		c.UpdatedAt = r.s.now().UTC()
		r.s.st.counters[keyOf(scope)] = c
		v = c.LastValue
		return nil
	})
	return v, err
}

func (r *CounterRepo) row(scope numerator.Scope) numerator.Counter {
	c, ok := r.s.st.counters[keyOf(scope)]
	if !ok {
		c = numerator.Counter{TenantID: scope.TenantID, ResetPeriod: scope.ResetPeriod, PeriodKey: scope.PeriodKey}
	}
	return c
}

func (r *CounterRepo) ListByTenant(ctx context.Context, tenantID string) ([]numerator.Counter, error) {
	var out []numerator.Counter
	err := r.s.do(ctx, func() error {
		for _, c := range r.s.st.counters {
			if c.TenantID == tenantID {
				out = append(out, c)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b numerator.Counter) int {
		if c := strings.Compare(string(a.ResetPeriod), string(b.ResetPeriod)); c != 0 {
			return c
		}
		return strings.Compare(b.PeriodKey, a.PeriodKey)
	})
	return out, err
}

// Set overwrites a counter value, bypassing the never-lower rule. It exists
// for tests and fixtures that simulate drift.
func (r *CounterRepo) Set(scope numerator.Scope, value int64) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.row(scope)
	c.LastValue = value
	c.UpdatedAt = r.s.now().UTC()
	r.s.st.counters[keyOf(scope)] = c
}

var _ numerator.CounterRepository = (*CounterRepo)(nil)
