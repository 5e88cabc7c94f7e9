// Package tx provides transaction management abstractions.
// Domain services depend on Manager; implementations live in
// infrastructure/storage (PostgreSQL and in-memory).
package tx

import (
	"context"
)

// Manager runs a unit of work atomically.
//
// If fn returns an error, every write made through ctx is rolled back.
// Nested calls reuse the transaction already carried by ctx, so a caller may
// wrap number generation into its own invoice-creation transaction.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
// Used by previews and observability, which must never mutate state.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

// ManagerFunc adapts a plain function to Manager.
type ManagerFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// RunInTransaction implements Manager.
func (f ManagerFunc) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// Passthrough runs fn directly with no transaction. Useful in unit tests of
// services whose storage fakes are already atomic.
var Passthrough Manager = ManagerFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})
