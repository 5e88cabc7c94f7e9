package memory

import (
	"context"

	"invoicenum/internal/core/numerator"
	"invoicenum/internal/domain/numbering"
)

// InvoiceRepo implements numbering.InvoiceLedger.
type InvoiceRepo struct{ s *Store }

func inPeriod(inv numbering.IssuedInvoice, tenantID string, p numerator.PeriodComponents) bool {
	return inv.TenantID == tenantID && inv.PeriodYear == p.Year && inv.PeriodMonth == p.Month
}

// highest returns the invoice with the largest sequence in the period.
func (r *InvoiceRepo) highest(tenantID string, p numerator.PeriodComponents) (numbering.IssuedInvoice, bool) {
	var best numbering.IssuedInvoice
	found := false
	for _, inv := range r.s.st.invoices {
		if inPeriod(inv, tenantID, p) && (!found || inv.SequenceNumber > best.SequenceNumber) {
			best, found = inv, true
		}
	}
	return best, found
}

func (r *InvoiceRepo) FindMaxSequenceNumber(ctx context.Context, tenantID string, p numerator.PeriodComponents) (int64, bool, error) {
	var (
		v  int64
		ok bool
	)
	err := r.s.do(ctx, func() error {
		var inv numbering.IssuedInvoice
		inv, ok = r.highest(tenantID, p)
		v = inv.SequenceNumber
		return nil
	})
	return v, ok, err
}

func (r *InvoiceRepo) CountByPeriod(ctx context.Context, tenantID string, p numerator.PeriodComponents) (int64, error) {
	var n int64
	err := r.s.do(ctx, func() error {
		for _, inv := range r.s.st.invoices {
			if inPeriod(inv, tenantID, p) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *InvoiceRepo) FindLastDisplayNumber(ctx context.Context, tenantID string, p numerator.PeriodComponents) (string, bool, error) {
	var (
		v  string
		ok bool
	)
	err := r.s.do(ctx, func() error {
		var inv numbering.IssuedInvoice
		inv, ok = r.highest(tenantID, p)
		v = inv.DisplayNumber
		return nil
	})
	return v, ok, err
}

// Record enforces uniqueness of (tenant, period_year, period_month, sequence_number).
func (r *InvoiceRepo) Record(ctx context.Context, inv *numbering.IssuedInvoice) error {
	return r.s.do(ctx, func() error {
		for _, existing := range r.s.st.invoices {
			if inPeriod(existing, inv.TenantID, inv.Period()) && existing.SequenceNumber == inv.SequenceNumber {
				return numbering.ErrDuplicateInvoice
			}
		}
		r.s.st.invoices = append(r.s.st.invoices, *inv)
		return nil
	})
}

var _ numbering.InvoiceLedger = (*InvoiceRepo)(nil)
