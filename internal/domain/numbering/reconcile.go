package numbering

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"invoicenum/internal/core/tenant"
	"invoicenum/pkg/logger"
)

// TenantReconciliation summarizes one tenant's drift scan.
type TenantReconciliation struct {
	TenantID  string
	Counters  int
	Drifted   int
	Malformed int
	Healed    int
}

// Reconciler scans every active tenant for counter drift and optionally heals
// counters that fell behind persisted invoices. Counters ahead of invoices
// (gaps) are reported only; lowering a counter could reissue a number.
type Reconciler struct {
	tenants     tenant.Registry
	observer    *Observer
	counters    *CounterService
	heal        bool
	concurrency int
}

// NewReconciler creates a reconciler. heal enables raising lagging counters.
func NewReconciler(tenants tenant.Registry, observer *Observer, counters *CounterService, heal bool, concurrency int) *Reconciler {
	if concurrency < 1 {
		concurrency = 4
	}
	return &Reconciler{tenants: tenants, observer: observer, counters: counters, heal: heal, concurrency: concurrency}
}

// Run reconciles all active tenants. A failing tenant does not stop the
// others: results of the tenants that succeeded are returned alongside the
// joined errors of those that failed.
func (r *Reconciler) Run(ctx context.Context) ([]TenantReconciliation, error) {
	tenants, err := r.tenants.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}

	p := pool.NewWithResults[TenantReconciliation]().
		WithContext(ctx).
		WithMaxGoroutines(r.concurrency)
	for _, t := range tenants {
		tenantID := t.ID
		p.Go(func(ctx context.Context) (TenantReconciliation, error) {
			res, err := r.ReconcileTenant(ctx, tenantID)
			if err != nil {
				return res, fmt.Errorf("tenant %s: %w", tenantID, err)
			}
			return res, nil
		})
	}
	return p.Wait()
}

// ReconcileTenant scans one tenant.
func (r *Reconciler) ReconcileTenant(ctx context.Context, tenantID string) (TenantReconciliation, error) {
	res := TenantReconciliation{TenantID: tenantID}

	report, err := r.observer.ListCounters(ctx, tenantID)
	if err != nil {
		return res, err
	}
	res.Counters = report.TotalCounters
	res.Drifted = report.DriftedCounters
	res.Malformed = report.MalformedCounters

	if !r.heal {
		return res, nil
	}
	for _, c := range report.Counters {
		if !c.Behind() {
			continue
		}
		healed, err := r.counters.Heal(ctx, c.Scope())
		if err != nil {
			return res, err
		}
		if healed {
			res.Healed++
		}
	}

	if res.Healed > 0 {
		logger.Info(ctx, "counters healed by reconciliation", "tenant_id", tenantID, "healed", res.Healed)
	}
	return res, nil
}
