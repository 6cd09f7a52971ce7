package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/auth"
)

const (
	getUserByIDSQL = `SELECT id, name, email, phone, role, is_active FROM users WHERE id = $1`

	upsertUserSQL = `INSERT INTO users (id, name, email, phone, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone,
			role = EXCLUDED.role, is_active = EXCLUDED.is_active`
)

var _ auth.Repository = (*UserRepository)(nil)

// UserRepository provides user lookups backed by PostgreSQL.
type UserRepository struct {
	db dbtx
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: pool}
}

// FindUser returns auth.ErrUserNotFound when the id is unknown.
func (r *UserRepository) FindUser(ctx context.Context, id string) (*auth.User, error) {
	rows, err := r.db.Query(ctx, getUserByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding user %q: %w", id, err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (auth.User, error) {
		var (
			u    auth.User
			role string
		)
		err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &role, &u.Active)
		u.Role = auth.Role(role)
		return u, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("finding user %q: %w", id, err)
	}
	return &u, nil
}

// UpsertUser creates or replaces a user record.
func (r *UserRepository) UpsertUser(ctx context.Context, u auth.User) error {
	if _, err := r.db.Exec(ctx, upsertUserSQL, u.ID, u.Name, u.Email, u.Phone, string(u.Role), u.Active); err != nil {
		return fmt.Errorf("upserting user %q: %w", u.ID, err)
	}
	return nil
}
