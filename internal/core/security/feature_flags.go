// Package security provides feature switches for operational surfaces.
package security

import (
	"context"
	"sync"
)

// FeatureFlagProvider provides feature flag evaluation.
type FeatureFlagProvider interface {
	// IsEnabled checks if feature is enabled for context
	IsEnabled(ctx context.Context, flag string) bool
}

// Feature flag names
const (
	// FlagCounterObservability exposes the per-tenant counter drift report.
	FlagCounterObservability = "counter_observability"

	// FlagIdempotentGeneration makes number generation honour idempotency keys.
	FlagIdempotentGeneration = "idempotent_generation"
)

// InMemoryFlags is a simple in-memory feature flag provider, seeded from config.
type InMemoryFlags struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewInMemoryFlags creates an in-memory flag provider.
func NewInMemoryFlags(initial map[string]bool) *InMemoryFlags {
	flags := make(map[string]bool, len(initial))
	for k, v := range initial {
		flags[k] = v
	}
	return &InMemoryFlags{flags: flags}
}

func (f *InMemoryFlags) IsEnabled(_ context.Context, flag string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.flags[flag]
}

// SetFlag sets a boolean flag (for testing/admin).
func (f *InMemoryFlags) SetFlag(flag string, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags[flag] = enabled
}

var _ FeatureFlagProvider = (*InMemoryFlags)(nil)
