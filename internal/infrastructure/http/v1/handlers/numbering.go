package handlers

import (
	"github.com/gin-gonic/gin"

	"invoicenum/internal/core/apperror"
	"invoicenum/internal/core/numerator"
	"invoicenum/internal/domain/numbering"
	"invoicenum/internal/infrastructure/http/v1/dto"
	"invoicenum/internal/infrastructure/http/v1/middleware"
)

const defaultHistoryLimit = 50

// NumberingHandler serves scheme administration and number generation.
type NumberingHandler struct {
	*BaseHandler
	schemes     *numbering.SchemeService
	generator   *numbering.Generator
	departments *numbering.Departments
	ledger      *numbering.Ledger
}

// NewNumberingHandler creates the handler.
func NewNumberingHandler(
	base *BaseHandler,
	schemes *numbering.SchemeService,
	generator *numbering.Generator,
	departments *numbering.Departments,
	ledger *numbering.Ledger,
) *NumberingHandler {
	return &NumberingHandler{
		BaseHandler: base,
		schemes:     schemes,
		generator:   generator,
		departments: departments,
		ledger:      ledger,
	}
}

// CreateScheme activates a new scheme.
// POST /numbering/schemes
func (h *NumberingHandler) CreateScheme(c *gin.Context) {
	var req dto.CreateSchemeRequest
	if !h.BindJSON(c, &req) {
		return
	}

	effectiveFrom, err := numerator.ParseDate("effectiveFrom", req.EffectiveFrom)
	if err != nil {
		h.Error(c, err)
		return
	}

	scheme, err := h.schemes.CreateScheme(c.Request.Context(), numbering.CreateSchemeInput{
		TenantID:      h.GetTenantID(c),
		Template:      req.Template,
		ResetPeriod:   numerator.ResetPeriod(req.ResetPeriod),
		EffectiveFrom: effectiveFrom,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	middleware.AnnotateRequest(c, "scheme_id", scheme.ID, "scheme_version", scheme.Version)
	h.Created(c, dto.FromScheme(scheme))
}

// ListSchemes returns a tenant's schemes, newest first.
// GET /numbering/schemes
func (h *NumberingHandler) ListSchemes(c *gin.Context) {
	var q dto.ListSchemesQuery
	if !h.BindQuery(c, &q) {
		return
	}

	list, err := h.schemes.ListSchemes(c.Request.Context(), h.GetTenantID(c), q.ActiveOnly)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(dto.FromSchemes(list)))
}

// GetScheme returns one scheme.
// GET /numbering/schemes/:id
func (h *NumberingHandler) GetScheme(c *gin.Context) {
	schemeID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	scheme, err := h.schemes.GetScheme(c.Request.Context(), h.GetTenantID(c), schemeID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromScheme(scheme))
}

// ArchiveScheme archives a scheme.
// POST /numbering/schemes/:id/archive
func (h *NumberingHandler) ArchiveScheme(c *gin.Context) {
	schemeID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	middleware.AnnotateRequest(c, "scheme_id", schemeID)
	scheme, err := h.schemes.ArchiveScheme(c.Request.Context(), h.GetTenantID(c), schemeID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromScheme(scheme))
}

// SchemeAudit returns a scheme's lifecycle history.
// GET /numbering/schemes/:id/audit
func (h *NumberingHandler) SchemeAudit(c *gin.Context) {
	schemeID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	limit := h.ParseIntQuery(c, "limit", defaultHistoryLimit)

	entries, err := h.schemes.History(c.Request.Context(), h.GetTenantID(c), schemeID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(dto.FromAuditEntries(entries)))
}

// PreviewTemplate renders a sample number without touching storage.
// POST /numbering/templates/preview
func (h *NumberingHandler) PreviewTemplate(c *gin.Context) {
	var req dto.PreviewTemplateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	preview, err := h.schemes.PreviewTemplate(req.Template)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.PreviewTemplateResponse{Template: req.Template, Preview: preview})
}

// GenerateNumber reserves the next invoice number.
// POST /numbering/numbers
func (h *NumberingHandler) GenerateNumber(c *gin.Context) {
	var req dto.GenerateNumberRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	tenantID := h.GetTenantID(c)

	issueDate, err := numerator.ParseDate("issueDate", req.IssueDate)
	if err != nil {
		h.Error(c, err)
		return
	}
	dept, err := h.departments.Lookup(ctx, tenantID, req.DepartmentCode)
	if err != nil {
		h.Error(c, err)
		return
	}

	generated, err := h.generator.Generate(ctx, tenantID, issueDate, dept)
	if err != nil {
		h.Error(c, err)
		return
	}
	middleware.AnnotateRequest(c,
		"scheme_id", generated.SchemeID,
		"period_key", generated.PeriodKey,
		"sequence_number", generated.SequenceNumber,
	)

	h.Created(c, dto.FromGenerated(generated))
}

// NextNumber previews the next number without reserving it.
// GET /numbering/numbers/next
func (h *NumberingHandler) NextNumber(c *gin.Context) {
	var q dto.NextNumberQuery
	if !h.BindQuery(c, &q) {
		return
	}

	ctx := c.Request.Context()
	tenantID := h.GetTenantID(c)

	issueDate, err := numerator.ParseDate("issueDate", q.IssueDate)
	if err != nil {
		h.Error(c, err)
		return
	}
	dept, err := h.departments.Lookup(ctx, tenantID, q.DepartmentCode)
	if err != nil {
		h.Error(c, err)
		return
	}

	next, err := h.generator.PeekNext(ctx, tenantID, issueDate, dept)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromGenerated(next))
}

// RecordInvoice stores an issued number in the ledger.
// POST /numbering/invoices
func (h *NumberingHandler) RecordInvoice(c *gin.Context) {
	var req dto.RecordInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in, err := req.ToInput()
	if err != nil {
		if _, ok := apperror.AsAppError(err); !ok {
			err = apperror.NewValidation("invalid scheme id").WithDetail("field", "schemeId")
		}
		h.Error(c, err)
		return
	}

	inv, err := h.ledger.Record(c.Request.Context(), h.GetTenantID(c), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromInvoice(inv))
}
