package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"identity-service/internal/model"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, email, password_hash, roles, provider, is_blocked, created_at, updated_at`

// FindByIDOrEmail resolves key either as a user id or as an email address.
func (r *UserRepository) FindByIDOrEmail(ctx context.Context, key string) (model.User, error) {
	key = strings.TrimSpace(key)

	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users WHERE id = $1 OR lower(email) = lower($1)`, key)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by id or email: %w", err)
	}
	return u, nil
}

// Upsert creates the user if the email is unknown and otherwise applies the
// provided fields, preserving stored values where the upsert leaves a field
// nil. New users always start with the USER role.
func (r *UserRepository) Upsert(ctx context.Context, u model.UserUpsert) (model.User, error) {
	now := time.Now().UTC()

	var roles []string
	if u.Roles != nil {
		roles = rolesToStrings(u.Roles)
	}

	var provider *string
	if u.Provider != nil {
		p := string(*u.Provider)
		provider = &p
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, password_hash, roles, provider, is_blocked, created_at, updated_at)
		 VALUES ($1, lower($2), $3,
		         COALESCE($4::text[], ARRAY['USER']),
		         COALESCE($5, 'LOCAL'),
		         COALESCE($6, FALSE),
		         $7, $7)
		 ON CONFLICT (lower(email)) DO UPDATE SET
		         password_hash = COALESCE($3, users.password_hash),
		         roles         = COALESCE($4::text[], users.roles),
		         provider      = COALESCE($5, users.provider),
		         is_blocked    = COALESCE($6, users.is_blocked),
		         updated_at    = $7
		 RETURNING `+userColumns,
		uuid.NewString(), strings.TrimSpace(u.Email), u.PasswordHash, roles, provider, u.IsBlocked, now)

	saved, err := scanUser(row)
	if err != nil {
		return model.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return saved, nil
}

// Delete removes the user and returns the deleted record's email so the
// caller can invalidate both cache keys.
func (r *UserRepository) Delete(ctx context.Context, id string) (string, error) {
	var email string
	err := r.pool.QueryRow(ctx,
		`DELETE FROM users WHERE id = $1 RETURNING email`, id).Scan(&email)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", model.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("delete user: %w", err)
	}
	return email, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u     model.User
		roles []string
	)

	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &roles, &u.Provider,
		&u.IsBlocked, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}

	u.Roles = make([]model.Role, len(roles))
	for i, role := range roles {
		u.Roles[i] = model.Role(role)
	}
	return u, nil
}

func rolesToStrings(roles []model.Role) []string {
	out := make([]string, len(roles))
	for i, role := range roles {
		out[i] = string(role)
	}
	return out
}
