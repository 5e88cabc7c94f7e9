package numbering

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"invoicenum/internal/core/apperror"
	"invoicenum/internal/core/id"
	"invoicenum/internal/core/numerator"
	"invoicenum/internal/core/tx"
	"invoicenum/pkg/logger"
)

var tracer = otel.Tracer("invoicenum/numbering")

// GeneratedNumber is handed to the caller, who persists it on the invoice.
// PeriodMonth is the counter sentinel (0 for YEARLY and NEVER), not a
// display value. SchemeID is always set.
type GeneratedNumber struct {
	SequenceNumber int64                 `json:"sequenceNumber"`
	PeriodYear     int                   `json:"periodYear"`
	PeriodMonth    int                   `json:"periodMonth"`
	DisplayNumber  string                `json:"displayNumber"`
	SchemeID       id.ID                 `json:"schemeId"`
	ResetPeriod    numerator.ResetPeriod `json:"resetPeriod"`
	PeriodKey      string                `json:"periodKey"`
}

// Invoice builds the ledger row for this number.
func (g *GeneratedNumber) Invoice(tenantID string, issueDate time.Time) *IssuedInvoice {
	schemeID := g.SchemeID
	return &IssuedInvoice{
		ID:             id.New(),
		TenantID:       tenantID,
		SequenceNumber: g.SequenceNumber,
		PeriodYear:     g.PeriodYear,
		PeriodMonth:    g.PeriodMonth,
		DisplayNumber:  g.DisplayNumber,
		SchemeID:       &schemeID,
		IssueDate:      numerator.DateOf(issueDate),
		CreatedAt:      time.Now().UTC(),
	}
}

// Generator orchestrates scheme resolution, counters and rendering.
type Generator struct {
	resolver *Resolver
	counters *CounterService
	txm      tx.Manager
	metrics  Metrics
}

// NewGenerator creates a generator.
func NewGenerator(resolver *Resolver, counters *CounterService, txm tx.Manager, metrics Metrics) *Generator {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Generator{resolver: resolver, counters: counters, txm: txm, metrics: metrics}
}

// Generate reserves and returns the invoice number for issueDate. Call it
// once per invoice. If the caller aborts after this returns, the reserved
// number becomes a gap; numbers are never handed out twice.
func (g *Generator) Generate(ctx context.Context, tenantID string, issueDate time.Time, dept *numerator.Department) (*GeneratedNumber, error) {
	ctx, span := tracer.Start(ctx, "numbering.Generate", trace.WithAttributes(attribute.String("tenant_id", tenantID)))
	defer span.End()

	var out *GeneratedNumber
	err := g.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.build(ctx, tenantID, issueDate, dept, g.counters.Next)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	g.metrics.NumberGenerated(out.ResetPeriod)
	span.SetAttributes(
		attribute.String("period_key", out.PeriodKey),
		attribute.Int64("sequence", out.SequenceNumber),
	)
	logger.Debug(ctx, "invoice number generated",
		"tenant_id", tenantID,
		"display_number", out.DisplayNumber,
		"sequence", out.SequenceNumber,
		"period_key", out.PeriodKey,
		"scheme_id", out.SchemeID,
	)
	return out, nil
}

// PeekNext previews the number Generate would return now. Side-effect free.
func (g *Generator) PeekNext(ctx context.Context, tenantID string, issueDate time.Time, dept *numerator.Department) (*GeneratedNumber, error) {
	ctx, span := tracer.Start(ctx, "numbering.PeekNext", trace.WithAttributes(attribute.String("tenant_id", tenantID)))
	defer span.End()

	out, err := g.build(ctx, tenantID, issueDate, dept, g.counters.Peek)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	g.metrics.NumberPreviewed()
	return out, nil
}

type sequenceSource func(ctx context.Context, scope numerator.Scope) (int64, error)

func (g *Generator) build(ctx context.Context, tenantID string, issueDate time.Time, dept *numerator.Department, seq sequenceSource) (*GeneratedNumber, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperror.NewValidation("tenant is required").WithDetail("field", "tenantId")
	}
	if issueDate.IsZero() {
		return nil, apperror.NewValidation("issue date is required").WithDetail("field", "issueDate")
	}
	date := numerator.DateOf(issueDate)

	scheme, err := g.resolver.Resolve(ctx, tenantID, date)
	if err != nil {
		return nil, err
	}

	scope, err := numerator.ScopeFor(tenantID, scheme.ResetPeriod, date)
	if err != nil {
		return nil, err
	}

	n, err := seq(ctx, scope)
	if err != nil {
		return nil, err
	}

	display, err := numerator.Render(scheme.Template, numerator.TemplateContext{
		Sequence:   n,
		Year:       date.Year(),
		Month:      int(date.Month()),
		Department: dept,
	})
	if err != nil {
		return nil, err
	}

	return &GeneratedNumber{
		SequenceNumber: n,
		PeriodYear:     scope.Period.Year,
		PeriodMonth:    scope.Period.Month,
		DisplayNumber:  display,
		SchemeID:       scheme.ID,
		ResetPeriod:    scheme.ResetPeriod,
		PeriodKey:      scope.PeriodKey,
	}, nil
}
