package numbering_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"invoicenum/internal/core/numerator"
	"invoicenum/internal/domain/numbering"
	"invoicenum/internal/infrastructure/storage/postgres"
)

const (
	invoicesTable             = "invoices"
	constraintInvoiceSequence = "uq_invoices_sequence"
)

// InvoiceRepo implements numbering.InvoiceLedger.
type InvoiceRepo struct {
	txm *postgres.TxManager
}

// NewInvoiceRepo creates an invoice ledger.
func NewInvoiceRepo(txm *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{txm: txm}
}

func periodFilter(tenantID string, p numerator.PeriodComponents) squirrel.Eq {
	return squirrel.Eq{"tenant_id": tenantID, "period_year": p.Year, "period_month": p.Month}
}

func maxSequenceQuery(tenantID string, p numerator.PeriodComponents) squirrel.SelectBuilder {
	return builder().Select("MAX(sequence_number)").From(invoicesTable).Where(periodFilter(tenantID, p))
}

// FindMaxSequenceNumber is the ground truth for counter healing.
func (r *InvoiceRepo) FindMaxSequenceNumber(ctx context.Context, tenantID string, p numerator.PeriodComponents) (int64, bool, error) {
	sql, args, err := maxSequenceQuery(tenantID, p).ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build query: %w", err)
	}
	var v *int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		return 0, false, err
	}
	if v == nil {
		return 0, false, nil
	}
	return *v, true, nil
}

func (r *InvoiceRepo) CountByPeriod(ctx context.Context, tenantID string, p numerator.PeriodComponents) (int64, error) {
	sql, args, err := builder().Select("COUNT(*)").From(invoicesTable).Where(periodFilter(tenantID, p)).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var n int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *InvoiceRepo) FindLastDisplayNumber(ctx context.Context, tenantID string, p numerator.PeriodComponents) (string, bool, error) {
	sql, args, err := builder().Select("display_number").From(invoicesTable).
		Where(periodFilter(tenantID, p)).
		OrderBy("sequence_number DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build query: %w", err)
	}
	var display string
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &display, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return display, true, nil
}

func (r *InvoiceRepo) Record(ctx context.Context, inv *numbering.IssuedInvoice) error {
	sql, args, err := builder().Insert(invoicesTable).SetMap(postgres.StructToMap(inv)).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if c, ok := postgres.UniqueViolation(err); ok && c == constraintInvoiceSequence {
			return fmt.Errorf("%w: %s", numbering.ErrDuplicateInvoice, c)
		}
		return err
	}
	return nil
}

var _ numbering.InvoiceLedger = (*InvoiceRepo)(nil)
