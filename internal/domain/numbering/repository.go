package numbering

import (
	"context"
	"errors"
	"time"

	"invoicenum/internal/core/id"
	"invoicenum/internal/core/numerator"
)

var (
	// ErrSchemeCollision is wrapped by repositories when an insert hits
	// the (tenant, effective_from, version) or one-active-per-tenant
	// uniqueness constraint. Activation retries on it.
	ErrSchemeCollision = errors.New("numbering scheme uniqueness collision")

	// ErrDuplicateInvoice is wrapped when a sequence number is recorded twice
	// for the same period.
	ErrDuplicateInvoice = errors.New("invoice sequence number already recorded")

	// ErrDuplicateDepartment is wrapped when a department code is reused within a tenant.
	ErrDuplicateDepartment = errors.New("department code already exists")
)

// SchemeRepository persists schemes. All methods participate in the
// transaction carried by ctx.
type SchemeRepository interface {
	// FindEffective returns the scheme governing date, or nil when none does.
	FindEffective(ctx context.Context, tenantID string, date time.Time) (*NumberingScheme, error)

	// FindActiveForUpdate returns the ACTIVE scheme with the given
	// effective date and locks it until the transaction ends; nil if absent.
	FindActiveForUpdate(ctx context.Context, tenantID string, effectiveFrom time.Time) (*NumberingScheme, error)

	// ArchiveActive archives every remaining ACTIVE scheme of the tenant and
	// returns their ids.
	ArchiveActive(ctx context.Context, tenantID string, at time.Time) ([]id.ID, error)

	// MaxVersion returns the highest version for (tenant, effectiveFrom), 0 if none.
	MaxVersion(ctx context.Context, tenantID string, effectiveFrom time.Time) (int, error)

	// Insert stores a new scheme; uniqueness violations wrap ErrSchemeCollision.
	Insert(ctx context.Context, s *NumberingScheme) error

	// GetByID returns a tenant's scheme; apperror not-found when absent.
	// forUpdate locks the row until the transaction ends.
	GetByID(ctx context.Context, tenantID string, schemeID id.ID, forUpdate bool) (*NumberingScheme, error)

	// UpdateStatus persists Status and ArchivedAt.
	UpdateStatus(ctx context.Context, s *NumberingScheme) error

	// List returns a tenant's schemes ordered by effective date, then version, newest first.
	List(ctx context.Context, tenantID string, activeOnly bool) ([]*NumberingScheme, error)
}

// IssuedInvoice is the slice of an invoice row that numbering relies on.
// SchemeID is nil on rows written before schemes were tracked.
type IssuedInvoice struct {
	ID             id.ID     `db:"id" json:"id"`
	TenantID       string    `db:"tenant_id" json:"tenantId"`
	SequenceNumber int64     `db:"sequence_number" json:"sequenceNumber"`
	PeriodYear     int       `db:"period_year" json:"periodYear"`
	PeriodMonth    int       `db:"period_month" json:"periodMonth"`
	DisplayNumber  string    `db:"display_number" json:"displayNumber"`
	SchemeID       *id.ID    `db:"scheme_id" json:"schemeId,omitempty"`
	IssueDate      time.Time `db:"issue_date" json:"issueDate"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// Period returns the counter scope components the invoice was numbered in.
func (i *IssuedInvoice) Period() numerator.PeriodComponents {
	return numerator.PeriodComponents{Year: i.PeriodYear, Month: i.PeriodMonth}
}

// InvoiceLedger is the invoice persistence collaborator: ground truth for
// healing and the data behind the observability report.
type InvoiceLedger interface {
	numerator.SequenceLedger

	// CountByPeriod returns how many invoices were numbered in the period.
	CountByPeriod(ctx context.Context, tenantID string, period numerator.PeriodComponents) (int64, error)

	// FindLastDisplayNumber returns the display number of the invoice with the
	// highest sequence in the period.
	FindLastDisplayNumber(ctx context.Context, tenantID string, period numerator.PeriodComponents) (string, bool, error)

	// Record stores an issued invoice; duplicates wrap ErrDuplicateInvoice.
	Record(ctx context.Context, inv *IssuedInvoice) error
}

// DepartmentDirectory resolves departments for {DEPT} tokens.
type DepartmentDirectory interface {
	// FindByCode returns nil when the tenant has no department with code.
	FindByCode(ctx context.Context, tenantID, code string) (*numerator.Department, error)
	Create(ctx context.Context, d *numerator.Department) error
	List(ctx context.Context, tenantID string) ([]*numerator.Department, error)
}
