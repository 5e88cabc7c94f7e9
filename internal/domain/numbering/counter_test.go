package numbering

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicenum/internal/core/numerator"
	"invoicenum/internal/core/tx"
)

func yearlyScope(t *testing.T) numerator.Scope {
	t.Helper()
	s, err := numerator.NewScope("t1", numerator.ResetYearly, numerator.PeriodComponents{Year: 2026})
	require.NoError(t, err)
	return s
}

func TestCounterService_NextHealsThenIncrements(t *testing.T) {
	var calls []string
	stored := int64(1)
	repo := &numerator.MockCounterRepository{
		CurrentFunc: func(context.Context, numerator.Scope) (int64, error) {
			calls = append(calls, "current")
			return stored, nil
		},
		RaiseToFunc: func(_ context.Context, _ numerator.Scope, floor int64) (int64, error) {
			calls = append(calls, "raise")
			stored = max(stored, floor)
			return stored, nil
		},
		IncrementFunc: func(context.Context, numerator.Scope) (int64, error) {
			calls = append(calls, "increment")
			stored++
			return stored, nil
		},
	}
	ledger := &numerator.MockSequenceLedger{
		FindMaxSequenceNumberFunc: func(_ context.Context, tenantID string, p numerator.PeriodComponents) (int64, bool, error) {
			assert.Equal(t, "t1", tenantID)
			assert.Equal(t, numerator.PeriodComponents{Year: 2026}, p)
			return 10, true, nil
		},
	}

	svc := NewCounterService(repo, ledger, tx.Passthrough, nil)
	got, err := svc.Next(context.Background(), yearlyScope(t))
	require.NoError(t, err)
	assert.Equal(t, int64(11), got)
	assert.Equal(t, []string{"current", "raise", "increment"}, calls)
}

func TestCounterService_NoInvoicesSkipsHeal(t *testing.T) {
	repo := &numerator.MockCounterRepository{
		RaiseToFunc: func(context.Context, numerator.Scope, int64) (int64, error) {
			t.Fatal("RaiseTo must not run without persisted invoices")
			return 0, nil
		},
		IncrementFunc: func(context.Context, numerator.Scope) (int64, error) { return 1, nil },
	}
	svc := NewCounterService(repo, &numerator.MockSequenceLedger{}, tx.Passthrough, nil)

	got, err := svc.Next(context.Background(), yearlyScope(t))
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestCounterService_CounterAheadIsLeftAlone(t *testing.T) {
	repo := &numerator.MockCounterRepository{
		CurrentFunc: func(context.Context, numerator.Scope) (int64, error) { return 20, nil },
		RaiseToFunc: func(context.Context, numerator.Scope, int64) (int64, error) {
			t.Fatal("counter ahead of invoices is a gap, not drift to heal")
			return 0, nil
		},
	}
	ledger := &numerator.MockSequenceLedger{
		FindMaxSequenceNumberFunc: func(context.Context, string, numerator.PeriodComponents) (int64, bool, error) {
			return 12, true, nil
		},
	}
	healed, err := NewCounterService(repo, ledger, tx.Passthrough, nil).Heal(context.Background(), yearlyScope(t))
	require.NoError(t, err)
	assert.False(t, healed)
}

func TestCounterService_PropagatesLedgerError(t *testing.T) {
	boom := errors.New("ledger down")
	ledger := &numerator.MockSequenceLedger{
		FindMaxSequenceNumberFunc: func(context.Context, string, numerator.PeriodComponents) (int64, bool, error) {
			return 0, false, boom
		},
	}
	_, err := NewCounterService(&numerator.MockCounterRepository{}, ledger, tx.Passthrough, nil).
		Next(context.Background(), yearlyScope(t))
	assert.ErrorIs(t, err, boom)
}

func TestCounterService_PeekDoesNotHeal(t *testing.T) {
	repo := &numerator.MockCounterRepository{
		CurrentFunc: func(context.Context, numerator.Scope) (int64, error) { return 4, nil },
	}
	ledger := &numerator.MockSequenceLedger{
		FindMaxSequenceNumberFunc: func(context.Context, string, numerator.PeriodComponents) (int64, bool, error) {
			t.Fatal("peek must not consult the ledger")
			return 0, false, nil
		},
	}
	got, err := NewCounterService(repo, ledger, tx.Passthrough, nil).Peek(context.Background(), yearlyScope(t))
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)
}
