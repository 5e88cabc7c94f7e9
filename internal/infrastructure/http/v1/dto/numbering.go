package dto

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"

	"invoicenum/internal/core/id"
	"invoicenum/internal/core/numerator"
	"invoicenum/internal/domain/audit"
	"invoicenum/internal/domain/numbering"
)

// --- Schemes ---

// CreateSchemeRequest introduces a new scheme.
type CreateSchemeRequest struct {
	Template      string `json:"template" binding:"required,numbering_template"`
	ResetPeriod   string `json:"resetPeriod" binding:"required,reset_period"`
	EffectiveFrom string `json:"effectiveFrom" binding:"required"`
}

// ListSchemesQuery filters the scheme list.
type ListSchemesQuery struct {
	ActiveOnly bool `form:"activeOnly"`
}

// SchemeResponse is the wire view of a scheme.
type SchemeResponse struct {
	ID            string     `json:"id"`
	Template      string     `json:"template"`
	ResetPeriod   string     `json:"resetPeriod"`
	EffectiveFrom string     `json:"effectiveFrom"`
	Version       int        `json:"version"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	CreatedBy     string     `json:"createdBy"`
	ArchivedAt    *time.Time `json:"archivedAt,omitempty"`
}

// FromScheme converts a domain scheme.
func FromScheme(s *numbering.NumberingScheme) SchemeResponse {
	return SchemeResponse{
		ID:            s.ID.String(),
		Template:      s.Template,
		ResetPeriod:   string(s.ResetPeriod),
		EffectiveFrom: s.EffectiveFrom.Format(numerator.DateLayout),
		Version:       s.Version,
		Status:        string(s.Status),
		CreatedAt:     s.CreatedAt,
		CreatedBy:     s.CreatedBy,
		ArchivedAt:    s.ArchivedAt,
	}
}

// FromSchemes converts a scheme list.
func FromSchemes(list []*numbering.NumberingScheme) []SchemeResponse {
	return lo.Map(list, func(s *numbering.NumberingScheme, _ int) SchemeResponse {
		return FromScheme(s)
	})
}

// AuditEntryResponse is one scheme history record.
type AuditEntryResponse struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	UserID    string          `json:"userId"`
	Changes   json.RawMessage `json:"changes,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// FromAuditEntries converts audit history.
func FromAuditEntries(entries []audit.Entry) []AuditEntryResponse {
	return lo.Map(entries, func(e audit.Entry, _ int) AuditEntryResponse {
		return AuditEntryResponse{
			ID:        e.ID.String(),
			Action:    string(e.Action),
			UserID:    e.UserID,
			Changes:   e.Changes,
			CreatedAt: e.CreatedAt,
		}
	})
}

// --- Templates ---

// PreviewTemplateRequest asks for a sample rendering.
type PreviewTemplateRequest struct {
	Template string `json:"template" binding:"required"`
}

// PreviewTemplateResponse carries the rendering.
type PreviewTemplateResponse struct {
	Template string `json:"template"`
	Preview  string `json:"preview"`
}

// --- Numbers ---

// GenerateNumberRequest reserves the next number.
type GenerateNumberRequest struct {
	IssueDate      string `json:"issueDate" binding:"required"`
	DepartmentCode string `json:"departmentCode" binding:"omitempty,max=10"`
}

// NextNumberQuery previews the next number.
type NextNumberQuery struct {
	IssueDate      string `form:"issueDate" binding:"required"`
	DepartmentCode string `form:"departmentCode" binding:"omitempty,max=10"`
}

// NumberResponse is a generated or previewed number.
type NumberResponse struct {
	SequenceNumber int64  `json:"sequenceNumber"`
	PeriodYear     int    `json:"periodYear"`
	PeriodMonth    int    `json:"periodMonth"`
	DisplayNumber  string `json:"displayNumber"`
	SchemeID       string `json:"schemeId"`
	ResetPeriod    string `json:"resetPeriod"`
	PeriodKey      string `json:"periodKey"`
}

// FromGenerated converts a generated number.
func FromGenerated(g *numbering.GeneratedNumber) NumberResponse {
	return NumberResponse{
		SequenceNumber: g.SequenceNumber,
		PeriodYear:     g.PeriodYear,
		PeriodMonth:    g.PeriodMonth,
		DisplayNumber:  g.DisplayNumber,
		SchemeID:       g.SchemeID.String(),
		ResetPeriod:    string(g.ResetPeriod),
		PeriodKey:      g.PeriodKey,
	}
}

// --- Invoices ---

// RecordInvoiceRequest persists an issued number in the ledger.
type RecordInvoiceRequest struct {
	SequenceNumber int64  `json:"sequenceNumber" binding:"required,min=1"`
	PeriodYear     int    `json:"periodYear" binding:"min=0"`
	PeriodMonth    int    `json:"periodMonth" binding:"min=0,max=12"`
	DisplayNumber  string `json:"displayNumber" binding:"required"`
	SchemeID       string `json:"schemeId" binding:"omitempty,uuid"`
	IssueDate      string `json:"issueDate" binding:"required"`
}

// ToInput converts the request to the domain input.
func (r *RecordInvoiceRequest) ToInput() (numbering.RecordInvoiceInput, error) {
	issueDate, err := numerator.ParseDate("issueDate", r.IssueDate)
	if err != nil {
		return numbering.RecordInvoiceInput{}, err
	}
	schemeID, err := id.ParseOptional(r.SchemeID)
	if err != nil {
		return numbering.RecordInvoiceInput{}, err
	}
	return numbering.RecordInvoiceInput{
		SequenceNumber: r.SequenceNumber,
		PeriodYear:     r.PeriodYear,
		PeriodMonth:    r.PeriodMonth,
		DisplayNumber:  r.DisplayNumber,
		SchemeID:       schemeID,
		IssueDate:      issueDate,
	}, nil
}

// InvoiceResponse is a recorded ledger row.
type InvoiceResponse struct {
	ID             string  `json:"id"`
	SequenceNumber int64   `json:"sequenceNumber"`
	PeriodYear     int     `json:"periodYear"`
	PeriodMonth    int     `json:"periodMonth"`
	DisplayNumber  string  `json:"displayNumber"`
	SchemeID       *string `json:"schemeId"`
	IssueDate      string  `json:"issueDate"`
}

// FromInvoice converts a ledger row.
func FromInvoice(inv *numbering.IssuedInvoice) InvoiceResponse {
	var schemeID *string
	if inv.SchemeID != nil {
		schemeID = lo.ToPtr(inv.SchemeID.String())
	}
	return InvoiceResponse{
		ID:             inv.ID.String(),
		SequenceNumber: inv.SequenceNumber,
		PeriodYear:     inv.PeriodYear,
		PeriodMonth:    inv.PeriodMonth,
		DisplayNumber:  inv.DisplayNumber,
		SchemeID:       schemeID,
		IssueDate:      inv.IssueDate.Format(numerator.DateLayout),
	}
}

// --- Departments ---

// CreateDepartmentRequest adds a department.
type CreateDepartmentRequest struct {
	Code string `json:"code" binding:"required,max=10"`
	Name string `json:"name" binding:"required,max=100"`
}

// DepartmentResponse is the wire view of a department.
type DepartmentResponse struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// FromDepartments converts a department list.
func FromDepartments(list []*numerator.Department) []DepartmentResponse {
	return lo.Map(list, func(d *numerator.Department, _ int) DepartmentResponse {
		return FromDepartment(d)
	})
}

// FromDepartment converts a department.
func FromDepartment(d *numerator.Department) DepartmentResponse {
	return DepartmentResponse{ID: d.ID.String(), Code: d.Code, Name: d.Name, Active: d.Active}
}
