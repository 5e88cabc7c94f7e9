package numerator

import (
	"strings"
	"time"
	"unicode/utf8"

	"invoicenum/internal/core/apperror"
	"invoicenum/internal/core/id"
)

const (
	MaxDepartmentCodeLength = 10
	MaxDepartmentNameLength = 100
)

// Department feeds the {DEPT} and {DEPT_NAME} tokens.
type Department struct {
	ID        id.ID     `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenantId"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewDepartment builds an active department with an upper-cased code.
func NewDepartment(tenantID, code, name string) (*Department, error) {
	d := &Department{
		ID:        id.New(),
		TenantID:  tenantID,
		Code:      NormalizeDepartmentCode(code),
		Name:      strings.TrimSpace(name),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// NormalizeDepartmentCode trims and upper-cases a department code.
func NormalizeDepartmentCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks field limits. Codes are embedded into invoice numbers,
// so braces are rejected to keep rendered output free of token syntax.
func (d *Department) Validate() error {
	switch {
	case d.Code == "":
		return apperror.NewValidation("department code is required").WithDetail("field", "code")
	case utf8.RuneCountInString(d.Code) > MaxDepartmentCodeLength:
		return apperror.NewValidation("department code is too long").
			WithDetail("field", "code").
			WithDetail("max", MaxDepartmentCodeLength)
	case strings.ContainsAny(d.Code, "{}"):
		return apperror.NewValidation("department code must not contain braces").WithDetail("field", "code")
	case d.Name == "":
		return apperror.NewValidation("department name is required").WithDetail("field", "name")
	case utf8.RuneCountInString(d.Name) > MaxDepartmentNameLength:
		return apperror.NewValidation("department name is too long").
			WithDetail("field", "name").
			WithDetail("max", MaxDepartmentNameLength)
	}
	return nil
}
