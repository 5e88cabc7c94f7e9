package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRegistry struct {
	Registry
	tenants map[string]*Tenant
}

func (s stubRegistry) GetByID(_ context.Context, tenantID string) (*Tenant, error) {
	if t, ok := s.tenants[tenantID]; ok {
		return t, nil
	}
	return nil, ErrTenantNotFound
}

func TestCreateTenantInput_Validate(t *testing.T) {
	in := CreateTenantInput{Slug: " ACME-Corp ", DisplayName: " ACME "}
	require.NoError(t, in.Validate())
	assert.Equal(t, "acme-corp", in.Slug)
	assert.Equal(t, "ACME", in.DisplayName)
	assert.Equal(t, StatusActive, in.ToTenant().Status)

	for _, bad := range []CreateTenantInput{
		{Slug: "", DisplayName: "x"},
		{Slug: "acme corp", DisplayName: "x"},
		{Slug: "-acme", DisplayName: "x"},
		{Slug: "acme", DisplayName: " "},
	} {
		assert.Error(t, bad.Validate(), bad.Slug)
	}
}

func TestResolve(t *testing.T) {
	reg := stubRegistry{tenants: map[string]*Tenant{
		"a": {ID: "a", Status: StatusActive},
		"s": {ID: "s", Status: StatusSuspended},
	}}
	ctx := context.Background()

	got, err := Resolve(ctx, reg, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	_, err = Resolve(ctx, reg, "s")
	assert.ErrorIs(t, err, ErrTenantNotActive)

	_, err = Resolve(ctx, reg, "missing")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestContext(t *testing.T) {
	ctx := WithTenant(context.Background(), &Tenant{ID: "a"})
	assert.Equal(t, "a", GetTenantID(ctx))
	assert.Equal(t, "", GetTenantID(context.Background()))
}

func TestListTenantsQuery(t *testing.T) {
	sql, args, err := listTenantsQuery(true).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, slug, display_name, status, created_at, updated_at FROM tenants WHERE status = $1 ORDER BY slug", sql)
	assert.Equal(t, []any{StatusActive}, args)

	sql, args, err = listTenantsQuery(false).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "WHERE")
	assert.Empty(t, args)
}

func TestInsertAndUpdateTenantQueries(t *testing.T) {
	sql, args, err := insertTenantQuery(&Tenant{Slug: "acme", DisplayName: "ACME", Status: StatusActive}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO tenants (slug,display_name,status) VALUES ($1,$2,$3) RETURNING id, created_at, updated_at", sql)
	assert.Equal(t, []any{"acme", "ACME", StatusActive}, args)

	sql, args, err = updateStatusQuery("0190c6a4-0000-7000-8000-000000000001", StatusSuspended).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE tenants SET status = $1, updated_at = now() WHERE id = $2", sql)
	assert.Equal(t, []any{StatusSuspended, "0190c6a4-0000-7000-8000-000000000001"}, args)
}

func TestPostgresRegistry_MalformedIDIsNotFound(t *testing.T) {
	r := NewPostgresRegistry(nil)

	_, err := r.GetByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	err = r.UpdateStatusByID(context.Background(), "not-a-uuid", StatusSuspended)
	assert.ErrorIs(t, err, ErrTenantNotFound)
}
