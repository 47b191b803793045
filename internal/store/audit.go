package store

import (
	"fmt"
	"time"
)

// AuditEntry is the write-side shape for CreateAuditLog; pointer fields
// are optional per spec.md §3.
type AuditEntry struct {
	TenantID     *string
	Actor        string
	Action       string
	ResourceType *string
	ResourceID   *string
	Meta         *string
	IPAddress    *string
	UserAgent    *string
}

// CreateAuditLog appends an audit row. Append-only, per spec.md §3.
func (s *Store) CreateAuditLog(id string, e AuditEntry) error {
	_, err := s.DB.Exec(`INSERT INTO audit_logs
		(id, tenant_id, actor, action, resource_type, resource_id, meta, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, e.TenantID, e.Actor, e.Action, e.ResourceType, e.ResourceID, e.Meta, e.IPAddress, e.UserAgent, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store: create audit log: %w", err)
	}
	return nil
}

// AuditQuery filters the admin audit-log read endpoint.
type AuditQuery struct {
	TenantID string
	Action   string
	Since    int64
	Limit    int
}

// ListAuditLogs is the supplemented read path for the write-only audit
// log described in spec.md §3 (SPEC_FULL.md §3).
func (s *Store) ListAuditLogs(q AuditQuery) ([]AuditLogRow, error) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	query := `SELECT * FROM audit_logs WHERE created_at >= ?`
	args := []any{q.Since}
	if q.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, q.TenantID)
	}
	if q.Action != "" {
		query += ` AND action = ?`
		args = append(args, q.Action)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	var rows []AuditLogRow
	if err := s.DB.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("store: list audit logs: %w", err)
	}
	return rows, nil
}
