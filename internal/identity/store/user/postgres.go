package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"taxgate/internal/authz"
	"taxgate/internal/identity/models"
	id "taxgate/pkg/domain"
	"taxgate/pkg/platform/sentinel"
	txcontext "taxgate/pkg/platform/tx"
)

// PostgresStore persists users via database/sql.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const userColumns = `
	id, email, password_hash, full_name, role, org_id,
	active, verified, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, user models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(user.ID),
		user.Email,
		user.PasswordHash,
		user.FullName,
		string(user.Role),
		nullableOrgID(user.OrgID),
		user.Active,
		user.Verified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanUser(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(userID)))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = lower($1)`
	return s.scanUser(s.execer(ctx).QueryRowContext(ctx, query, email))
}

func (s *PostgresStore) Update(ctx context.Context, user models.User) error {
	query := `
		UPDATE users
		SET full_name = $2, role = $3, org_id = $4,
			active = $5, verified = $6, updated_at = $7
		WHERE id = $1
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(user.ID),
		user.FullName,
		string(user.Role),
		nullableOrgID(user.OrgID),
		user.Active,
		user.Verified,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) scanUser(row *sql.Row) (models.User, error) {
	var (
		user   models.User
		userID uuid.UUID
		role   string
		orgID  *uuid.UUID
	)
	err := row.Scan(
		&userID,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&role,
		&orgID,
		&user.Active,
		&user.Verified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	user.ID = id.UserID(userID)
	user.Role = authz.Role(role)
	if orgID != nil {
		user.OrgID = id.OrgID(*orgID)
	}
	return user, nil
}

func nullableOrgID(orgID id.OrgID) *uuid.UUID {
	if orgID.IsNil() {
		return nil
	}
	oid := uuid.UUID(orgID)
	return &oid
}
