package numbering

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"invoicenum/internal/core/apperror"
	"invoicenum/internal/core/id"
	"invoicenum/internal/core/numerator"
)

// RecordInvoiceInput is the persisted tuple of a generated number.
type RecordInvoiceInput struct {
	SequenceNumber int64
	PeriodYear     int
	PeriodMonth    int
	DisplayNumber  string
	SchemeID       *id.ID
	IssueDate      time.Time
}

// Ledger writes issued invoices for callers that persist through this service.
type Ledger struct {
	invoices InvoiceLedger
}

// NewLedger creates the ledger service.
func NewLedger(invoices InvoiceLedger) *Ledger {
	return &Ledger{invoices: invoices}
}

// Record stores an issued invoice. The unique key on (tenant, period,
// sequence) rejects duplicates even if a caller bypasses Generate.
func (l *Ledger) Record(ctx context.Context, tenantID string, in RecordInvoiceInput) (*IssuedInvoice, error) {
	switch {
	case in.SequenceNumber < 1:
		return nil, apperror.NewValidation("sequence number must be positive").WithDetail("field", "sequenceNumber")
	case in.PeriodMonth < 0 || in.PeriodMonth > 12:
		return nil, apperror.NewValidation("period month must be 0..12").WithDetail("field", "periodMonth")
	case in.PeriodYear < 0:
		return nil, apperror.NewValidation("period year must not be negative").WithDetail("field", "periodYear")
	case strings.TrimSpace(in.DisplayNumber) == "":
		return nil, apperror.NewValidation("display number is required").WithDetail("field", "displayNumber")
	case in.IssueDate.IsZero():
		return nil, apperror.NewValidation("issue date is required").WithDetail("field", "issueDate")
	}

	inv := &IssuedInvoice{
		ID:             id.New(),
		TenantID:       tenantID,
		SequenceNumber: in.SequenceNumber,
		PeriodYear:     in.PeriodYear,
		PeriodMonth:    in.PeriodMonth,
		DisplayNumber:  in.DisplayNumber,
		SchemeID:       in.SchemeID,
		IssueDate:      numerator.DateOf(in.IssueDate),
		CreatedAt:      time.Now().UTC(),
	}
	if err := l.invoices.Record(ctx, inv); err != nil {
		if errors.Is(err, ErrDuplicateInvoice) {
			return nil, apperror.NewConflict("invoice sequence number already recorded").
				WithDetail("sequenceNumber", in.SequenceNumber).
				WithDetail("periodYear", in.PeriodYear).
				WithDetail("periodMonth", in.PeriodMonth)
		}
		return nil, fmt.Errorf("record invoice: %w", err)
	}
	return inv, nil
}
