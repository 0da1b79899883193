package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/auth-gate/internal/domain"
)

// IdentityRepository is read by the authenticator and written by sign-up.
type IdentityRepository interface {
	FindBySubjectID(ctx context.Context, subjectID string) (*domain.Identity, error)
	ExistsBySubjectID(ctx context.Context, subjectID string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, identity *domain.Identity) error
}

// DBTX is the subset of *pgxpool.Pool the repository needs.
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

type postgresIdentityRepository struct {
	db DBTX
}

// NewPostgresIdentityRepository returns a Postgres-backed implementation.
func NewPostgresIdentityRepository(db DBTX) IdentityRepository {
	return &postgresIdentityRepository{db: db}
}

func (r *postgresIdentityRepository) FindBySubjectID(ctx context.Context, subjectID string) (*domain.Identity, error) {
	const query = `
        SELECT u.id, u.username, u.email, u.password_hash, u.created_at,
               COALESCE(array_agg(r.name ORDER BY r.name) FILTER (WHERE r.name IS NOT NULL), '{}')
        FROM users u
        LEFT JOIN user_roles ur ON ur.user_id = u.id
        LEFT JOIN roles r ON r.id = ur.role_id
        WHERE u.username=$1
        GROUP BY u.id`

	var (
		identity domain.Identity
		roles    []string
	)
	if err := r.db.QueryRow(ctx, query, subjectID).Scan(
		&identity.ID,
		&identity.Username,
		&identity.Email,
		&identity.PasswordHash,
		&identity.CreatedAt,
		&roles,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, err
	}

	identity.Roles = make([]domain.RoleName, 0, len(roles))
	for _, role := range roles {
		identity.Roles = append(identity.Roles, domain.RoleName(role))
	}
	return &identity, nil
}

func (r *postgresIdentityRepository) ExistsBySubjectID(ctx context.Context, subjectID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE username=$1)`

	var exists bool
	err := r.db.QueryRow(ctx, query, subjectID).Scan(&exists)
	return exists, err
}

func (r *postgresIdentityRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE email=$1)`

	var exists bool
	err := r.db.QueryRow(ctx, query, email).Scan(&exists)
	return exists, err
}

// Create inserts the user and its role links in one transaction. Roles must
// already exist in the roles table.
func (r *postgresIdentityRepository) Create(ctx context.Context, identity *domain.Identity) (err error) {
	const insertUser = `
        INSERT INTO users (username, email, password_hash)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`
	const linkRoles = `
        INSERT INTO user_roles (user_id, role_id)
        SELECT $1, id FROM roles WHERE name = ANY($2)`

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = tx.QueryRow(ctx, insertUser,
		identity.Username,
		identity.Email,
		identity.PasswordHash,
	).Scan(&identity.ID, &identity.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			err = fmt.Errorf("%w: %s", domain.ErrIdentityExists, pgErr.ConstraintName)
		}
		return err
	}

	names := make([]string, 0, len(identity.Roles))
	for _, role := range identity.Roles {
		names = append(names, string(role))
	}
	cmd, err := tx.Exec(ctx, linkRoles, identity.ID, names)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() != int64(len(names)) {
		err = fmt.Errorf("linked %d of %d roles", cmd.RowsAffected(), len(names))
		return err
	}

	return tx.Commit(ctx)
}
