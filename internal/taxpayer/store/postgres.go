package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"taxgate/internal/taxpayer/models"
	id "taxgate/pkg/domain"
	"taxgate/pkg/platform/sentinel"
	txcontext "taxgate/pkg/platform/tx"
)

// PostgresStore persists taxpayers via database/sql. Soft-deleted rows stay in
// the table; every read filters on deleted_at IS NULL.
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

const taxpayerColumns = `
	id, org_id, tin, first_name, last_name, email, status,
	verified_at, verified_by, created_at, updated_at, deleted_at
`

const insertTaxpayer = `
	INSERT INTO taxpayers (` + taxpayerColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

func (s *PostgresStore) Create(ctx context.Context, tp models.Taxpayer) error {
	_, err := s.execer(ctx).ExecContext(ctx, insertTaxpayer, insertArgs(tp)...)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert taxpayer: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, taxpayerID id.TaxpayerID) (models.Taxpayer, error) {
	query := `SELECT ` + taxpayerColumns + ` FROM taxpayers WHERE id = $1 AND deleted_at IS NULL`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(taxpayerID))
	return scanTaxpayer(row.Scan)
}

func (s *PostgresStore) FindByTIN(ctx context.Context, orgID id.OrgID, tin string) (models.Taxpayer, error) {
	query := `SELECT ` + taxpayerColumns + ` FROM taxpayers WHERE org_id = $1 AND tin = $2 AND deleted_at IS NULL`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(orgID), tin)
	return scanTaxpayer(row.Scan)
}

func (s *PostgresStore) ListByOrg(ctx context.Context, orgID id.OrgID, filter models.ListFilter) ([]models.Taxpayer, error) {
	query := `SELECT ` + taxpayerColumns + `
		FROM taxpayers
		WHERE org_id = $1 AND deleted_at IS NULL
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at
		LIMIT $3 OFFSET $4
	`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(orgID), string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("query taxpayers: %w", err)
	}
	defer rows.Close()

	var out []models.Taxpayer
	for rows.Next() {
		tp, err := scanTaxpayer(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate taxpayers: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, tp models.Taxpayer) error {
	query := `
		UPDATE taxpayers
		SET first_name = $2, last_name = $3, email = $4, status = $5,
			verified_at = $6, verified_by = $7, updated_at = $8
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(tp.ID),
		tp.FirstName,
		tp.LastName,
		tp.Email,
		string(tp.Status),
		tp.VerifiedAt,
		nullableUserID(tp.VerifiedBy),
		tp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update taxpayer: %w", err)
	}
	return requireAffected(result, "update taxpayer")
}

func (s *PostgresStore) SoftDelete(ctx context.Context, taxpayerID id.TaxpayerID, at time.Time) error {
	query := `
		UPDATE taxpayers
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(taxpayerID), at)
	if err != nil {
		return fmt.Errorf("soft-delete taxpayer: %w", err)
	}
	return requireAffected(result, "soft-delete taxpayer")
}

func (s *PostgresStore) CountByOrg(ctx context.Context, orgID id.OrgID) (int, error) {
	query := `SELECT count(*) FROM taxpayers WHERE org_id = $1 AND deleted_at IS NULL`
	var count int
	if err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(orgID)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count taxpayers: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountByOrgAndStatus(ctx context.Context, orgID id.OrgID, status models.Status) (int, error) {
	query := `SELECT count(*) FROM taxpayers WHERE org_id = $1 AND status = $2 AND deleted_at IS NULL`
	var count int
	if err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(orgID), string(status)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count taxpayers by status: %w", err)
	}
	return count, nil
}

func insertArgs(tp models.Taxpayer) []any {
	return []any{
		uuid.UUID(tp.ID),
		uuid.UUID(tp.OrgID),
		tp.TIN,
		tp.FirstName,
		tp.LastName,
		tp.Email,
		string(tp.Status),
		tp.VerifiedAt,
		nullableUserID(tp.VerifiedBy),
		tp.CreatedAt,
		tp.UpdatedAt,
		tp.DeletedAt,
	}
}

func scanTaxpayer(scan func(...any) error) (models.Taxpayer, error) {
	var (
		tp         models.Taxpayer
		taxpayerID uuid.UUID
		orgID      uuid.UUID
		status     string
		verifiedBy *uuid.UUID
	)
	err := scan(
		&taxpayerID,
		&orgID,
		&tp.TIN,
		&tp.FirstName,
		&tp.LastName,
		&tp.Email,
		&status,
		&tp.VerifiedAt,
		&verifiedBy,
		&tp.CreatedAt,
		&tp.UpdatedAt,
		&tp.DeletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Taxpayer{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Taxpayer{}, fmt.Errorf("scan taxpayer: %w", err)
	}
	tp.ID = id.TaxpayerID(taxpayerID)
	tp.OrgID = id.OrgID(orgID)
	tp.Status = models.Status(status)
	if verifiedBy != nil {
		tp.VerifiedBy = id.UserID(*verifiedBy)
	}
	return tp, nil
}

func requireAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullableUserID(userID id.UserID) *uuid.UUID {
	if userID.IsNil() {
		return nil
	}
	uid := uuid.UUID(userID)
	return &uid
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
}
