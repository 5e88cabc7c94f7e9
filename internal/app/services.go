package app

import (
	"invoicenum/internal/config"
	"invoicenum/internal/domain/numbering"
)

// Services are the domain services every entry point needs.
type Services struct {
	Resolver    *numbering.Resolver
	Counters    *numbering.CounterService
	Generator   *numbering.Generator
	Schemes     *numbering.SchemeService
	Departments *numbering.Departments
	Ledger      *numbering.Ledger
	Observer    *numbering.Observer
}

// NewServices wires domain services over st. A nil metrics sink discards events.
func NewServices(st *Storage, cfg *config.Config, metrics numbering.Metrics) *Services {
	if metrics == nil {
		metrics = numbering.NopMetrics{}
	}
	resolver := numbering.NewResolver(st.Schemes)
	counters := numbering.NewCounterService(st.Counters, st.Invoices, st.Tx, metrics)
	return &Services{
		Resolver:  resolver,
		Counters:  counters,
		Generator: numbering.NewGenerator(resolver, counters, st.Tx, metrics),
		Schemes: numbering.NewSchemeService(st.Schemes, st.Tx, st.Audit, numbering.ServiceConfig{
			ActivationRetries: cfg.Numbering.ActivationRetries,
			Metrics:           metrics,
		}),
		Departments: numbering.NewDepartments(st.Departments),
		Ledger:      numbering.NewLedger(st.Invoices),
		Observer:    numbering.NewObserver(st.Counters, st.Invoices, resolver, metrics),
	}
}

// Reconciler builds the drift reconciler for the worker.
func (s *Services) Reconciler(st *Storage, cfg *config.Config) *numbering.Reconciler {
	return numbering.NewReconciler(st.Tenants, s.Observer, s.Counters, cfg.Reconcile.Heal, cfg.Reconcile.Concurrency)
}
