package numerator

import (
	"context"
	"time"
)

// Counter is the stored state of one scope.
type Counter struct {
	TenantID    string      `db:"tenant_id"`
	ResetPeriod ResetPeriod `db:"reset_period"`
	PeriodKey   string      `db:"period_key"`
	LastValue   int64       `db:"last_value"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

// CounterRepository is the storage primitive set behind the self-healing
// counter. Every method participates in the transaction carried by ctx.
//
// Implementations must make RaiseTo and Increment atomic single-statement
// operations: RaiseTo never lowers a value, and Increment creates the row on
// first use and returns the new value with no read-then-write window.
type CounterRepository interface {
	// Current returns the stored value, or 0 when the scope has no row yet.
	Current(ctx context.Context, scope Scope) (int64, error)

	// RaiseTo sets the stored value to max(stored, floor) and returns the result.
	RaiseTo(ctx context.Context, scope Scope, floor int64) (int64, error)

	// Increment bumps the stored value by one and returns it.
	Increment(ctx context.Context, scope Scope) (int64, error)

	// ListByTenant returns every counter of a tenant ordered by reset period,
	// then period key descending.
	ListByTenant(ctx context.Context, tenantID string) ([]Counter, error)
}

// SequenceLedger exposes the ground truth recorded on persisted invoices.
type SequenceLedger interface {
	// FindMaxSequenceNumber returns the highest sequence number stored for the
	// period; ok is false when no invoice exists in it.
	FindMaxSequenceNumber(ctx context.Context, tenantID string, period PeriodComponents) (max int64, ok bool, err error)
}
