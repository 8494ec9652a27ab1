// Package postgres persists audit records to the audit_records table.
//
// The table is append-only at the application level: this store only ever
// INSERTs. Duplicate appends (e.g. a retried write) are idempotent via
// ON CONFLICT DO NOTHING on the record ID.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "taxgate/pkg/domain"
	audit "taxgate/pkg/platform/audit"
	txcontext "taxgate/pkg/platform/tx"
)

// Store implements audit.Store on PostgreSQL via database/sql.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execer joins an ambient transaction when the caller opened one, so an audit
// record and the mutation it describes can commit atomically.
func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, rec audit.Record) error {
	query := `
		INSERT INTO audit_records (
			id, timestamp, principal_id, role, action,
			resource_type, resource_id, org_id, outcome, reason,
			request_id, client_ip, user_agent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`

	var principalID *uuid.UUID
	if !rec.PrincipalID.IsNil() {
		pid := uuid.UUID(rec.PrincipalID)
		principalID = &pid
	}
	var orgID *uuid.UUID
	if !rec.OrgID.IsNil() {
		oid := uuid.UUID(rec.OrgID)
		orgID = &oid
	}

	_, err := s.execer(ctx).ExecContext(ctx, query,
		rec.ID,
		rec.Timestamp,
		principalID,
		rec.Role,
		rec.Action,
		rec.ResourceType,
		rec.ResourceID,
		orgID,
		string(rec.Outcome),
		rec.Reason,
		rec.RequestID,
		rec.ClientIP,
		rec.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Record, error) {
	query := selectColumns + `
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *Store) ListByPrincipal(ctx context.Context, principalID id.UserID) ([]audit.Record, error) {
	query := selectColumns + `
		WHERE principal_id = $1
		ORDER BY timestamp DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(principalID))
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

const selectColumns = `
	SELECT id, timestamp, principal_id, role, action,
		   resource_type, resource_id, org_id, outcome, reason,
		   request_id, client_ip, user_agent
	FROM audit_records
`

func scanRecords(rows *sql.Rows) ([]audit.Record, error) {
	var records []audit.Record

	for rows.Next() {
		var (
			rec         audit.Record
			outcome     string
			principalID *uuid.UUID
			orgID       *uuid.UUID
		)

		err := rows.Scan(
			&rec.ID,
			&rec.Timestamp,
			&principalID,
			&rec.Role,
			&rec.Action,
			&rec.ResourceType,
			&rec.ResourceID,
			&orgID,
			&outcome,
			&rec.Reason,
			&rec.RequestID,
			&rec.ClientIP,
			&rec.UserAgent,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}

		rec.Outcome = audit.Outcome(outcome)
		if principalID != nil {
			rec.PrincipalID = id.UserID(*principalID)
		}
		if orgID != nil {
			rec.OrgID = id.OrgID(*orgID)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}
