package numbering_repo

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicenum/internal/core/numerator"
	"invoicenum/internal/domain/numbering"
)

func TestEffectiveQuery(t *testing.T) {
	date := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	sql, args, err := effectiveQuery("t1", date).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "SELECT id, tenant_id, template, reset_period, effective_from, version, status, created_at, created_by, archived_at FROM numbering_schemes"))
	assert.Contains(t, sql, "tenant_id = $1")
	assert.Contains(t, sql, "effective_from <= $2")
	assert.Contains(t, sql, "status IN ($3,$4)")
	assert.Contains(t, sql, "ORDER BY CASE WHEN status = 'ACTIVE' THEN 0 ELSE 1 END, effective_from DESC, version DESC LIMIT 1")
	assert.Equal(t, []any{"t1", date, numbering.StatusActive, numbering.StatusArchived}, args)
}

func TestListQuery(t *testing.T) {
	sql, args, err := listQuery("t1", true).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE tenant_id = $1 AND status = $2")
	assert.True(t, strings.HasSuffix(sql, "ORDER BY effective_from DESC, version DESC"))
	assert.Equal(t, []any{"t1", numbering.StatusActive}, args)

	sql, _, err = listQuery("t1", false).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "status =")
}

func TestMaxSequenceQuery(t *testing.T) {
	sql, args, err := maxSequenceQuery("t1", numerator.PeriodComponents{Year: 2026}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT MAX(sequence_number) FROM invoices WHERE period_month = $1 AND period_year = $2 AND tenant_id = $3", sql)
	assert.Equal(t, []any{0, 2026, "t1"}, args)
}

func TestClassifySchemeError(t *testing.T) {
	for _, c := range []string{constraintSchemeVersion, constraintOneActive} {
		err := classifySchemeError(&pgconn.PgError{Code: "23505", ConstraintName: c})
		assert.ErrorIs(t, err, numbering.ErrSchemeCollision, c)
	}

	other := &pgconn.PgError{Code: "23505", ConstraintName: "some_other_index"}
	assert.False(t, errors.Is(classifySchemeError(other), numbering.ErrSchemeCollision))

	plain := fmt.Errorf("conn closed")
	assert.Equal(t, plain, classifySchemeError(plain))
}
