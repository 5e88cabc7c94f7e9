// Package tenant provides the tenant registry contract. Tenants ("sellers")
// are the top-level scope of numbering schemes and counters; all tenants share
// one database and rows carry tenant_id.
package tenant

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Status represents tenant lifecycle state.
type Status string

const (
	// StatusActive - tenant can issue invoice numbers
	StatusActive Status = "active"

	// StatusSuspended - tenant is temporarily disabled (e.g., payment issues)
	StatusSuspended Status = "suspended"

	// StatusDeleted - tenant is marked for deletion
	StatusDeleted Status = "deleted"
)

// Tenant represents a row of the tenants table.
type Tenant struct {
	ID          string    `db:"id"`
	Slug        string    `db:"slug"`         // URL-safe identifier
	DisplayName string    `db:"display_name"` // Human-readable name
	Status      Status    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// IsActive returns true if tenant can accept requests.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// CreateTenantInput contains data for creating a new tenant.
type CreateTenantInput struct {
	Slug        string
	DisplayName string
}

// Validate normalizes and checks the input.
func (i *CreateTenantInput) Validate() error {
	i.Slug = strings.ToLower(strings.TrimSpace(i.Slug))
	i.DisplayName = strings.TrimSpace(i.DisplayName)
	if i.Slug == "" {
		return fmt.Errorf("slug is required")
	}
	if len(i.Slug) > 63 {
		return fmt.Errorf("slug must be 63 characters or less")
	}
	if !slugPattern.MatchString(i.Slug) {
		return fmt.Errorf("slug may contain only lowercase letters, digits and dashes")
	}
	if i.DisplayName == "" {
		return fmt.Errorf("display_name is required")
	}
	return nil
}

// ToTenant builds an active tenant from validated input.
func (i *CreateTenantInput) ToTenant() *Tenant {
	return &Tenant{Slug: i.Slug, DisplayName: i.DisplayName, Status: StatusActive}
}
