package numbering

import (
	"context"
	"fmt"

	"invoicenum/internal/core/numerator"
	"invoicenum/internal/core/tx"
	"invoicenum/pkg/logger"
)

// CounterService is the per-scope atomic counter with self-healing.
//
// Counters and invoice rows are separate state; migrations, manual edits or
// rolled-back writes can leave a counter behind the invoices already issued.
// Every Next first raises the counter to the highest persisted sequence of
// its period, then increments, both in one transaction.
type CounterService struct {
	counters numerator.CounterRepository
	ledger   numerator.SequenceLedger
	txm      tx.Manager
	metrics  Metrics
}

// NewCounterService creates a counter service.
func NewCounterService(counters numerator.CounterRepository, ledger numerator.SequenceLedger, txm tx.Manager, metrics Metrics) *CounterService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &CounterService{counters: counters, ledger: ledger, txm: txm, metrics: metrics}
}

// Next reserves the next sequence number of scope.
func (c *CounterService) Next(ctx context.Context, scope numerator.Scope) (int64, error) {
	var next int64
	err := c.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := c.heal(ctx, scope); err != nil {
			return err
		}
		v, err := c.counters.Increment(ctx, scope)
		if err != nil {
			return fmt.Errorf("increment counter %s: %w", scope, err)
		}
		next = v
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Peek returns the value Next would return if the counter is not drifted.
// It neither reserves nor heals.
func (c *CounterService) Peek(ctx context.Context, scope numerator.Scope) (int64, error) {
	current, err := c.counters.Current(ctx, scope)
	if err != nil {
		return 0, fmt.Errorf("read counter %s: %w", scope, err)
	}
	return current + 1, nil
}

// Heal raises the counter of scope to the highest persisted sequence without
// reserving a number. It reports whether the counter moved.
func (c *CounterService) Heal(ctx context.Context, scope numerator.Scope) (bool, error) {
	var healed bool
	err := c.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		healed, err = c.heal(ctx, scope)
		return err
	})
	return healed, err
}

func (c *CounterService) heal(ctx context.Context, scope numerator.Scope) (bool, error) {
	observed, ok, err := c.ledger.FindMaxSequenceNumber(ctx, scope.TenantID, scope.Period)
	if err != nil {
		return false, fmt.Errorf("max persisted sequence %s: %w", scope, err)
	}
	if !ok {
		return false, nil
	}

	current, err := c.counters.Current(ctx, scope)
	if err != nil {
		return false, fmt.Errorf("read counter %s: %w", scope, err)
	}
	if observed <= current {
		return false, nil
	}

	logger.Warn(ctx, "counter drift detected",
		"tenant_id", scope.TenantID,
		"reset_period", scope.ResetPeriod,
		"period_key", scope.PeriodKey,
		"stored_value", current,
		"max_persisted_sequence", observed,
	)
	if _, err := c.counters.RaiseTo(ctx, scope, observed); err != nil {
		return false, fmt.Errorf("heal counter %s: %w", scope, err)
	}
	c.metrics.CounterHealed(scope.TenantID)
	return true, nil
}
