package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"taxgate/internal/organization/models"
	id "taxgate/pkg/domain"
	"taxgate/pkg/platform/sentinel"
	txcontext "taxgate/pkg/platform/tx"
)

// PostgresStore persists organizations via database/sql.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const orgColumns = `id, name, kind, active, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, org models.Organization) error {
	query := `
		INSERT INTO organizations (` + orgColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(org.ID),
		org.Name,
		string(org.Kind),
		org.Active,
		org.CreatedAt,
		org.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, orgID id.OrgID) (models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE id = $1`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(orgID))
	return scanOrganization(row.Scan)
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations ORDER BY created_at`
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query organizations: %w", err)
	}
	defer rows.Close()

	var orgs []models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows.Scan)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate organizations: %w", err)
	}
	return orgs, nil
}

func (s *PostgresStore) Update(ctx context.Context, org models.Organization) error {
	query := `
		UPDATE organizations
		SET name = $2, kind = $3, active = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(org.ID),
		org.Name,
		string(org.Kind),
		org.Active,
		org.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanOrganization(scan func(...any) error) (models.Organization, error) {
	var (
		org   models.Organization
		orgID uuid.UUID
		kind  string
	)
	err := scan(&orgID, &org.Name, &kind, &org.Active, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Organization{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Organization{}, fmt.Errorf("scan organization: %w", err)
	}
	org.ID = id.OrgID(orgID)
	org.Kind = models.Kind(kind)
	return org, nil
}
