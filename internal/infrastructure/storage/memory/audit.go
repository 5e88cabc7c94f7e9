package memory

import (
	"context"

	"invoicenum/internal/core/id"
	"invoicenum/internal/domain/audit"
)

// AuditLog implements audit.Log.
type AuditLog struct{ s *Store }

func (l *AuditLog) Record(ctx context.Context, entry audit.Entry) error {
	return l.s.do(ctx, func() error {
		l.s.st.audit = append(l.s.st.audit, entry)
		return nil
	})
}

// History returns entries newest first.
func (l *AuditLog) History(ctx context.Context, tenantID, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	var out []audit.Entry
	err := l.s.do(ctx, func() error {
		for i := len(l.s.st.audit) - 1; i >= 0 && len(out) < limit; i-- {
			e := l.s.st.audit[i]
			if e.TenantID == tenantID && e.EntityType == entityType && e.EntityID == entityID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

var _ audit.Log = (*AuditLog)(nil)
