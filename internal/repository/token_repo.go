package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"identity-service/internal/model"
)

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// Upsert stores the refresh record, replacing any prior record for the same
// (user_id, user_agent) device slot.
func (r *TokenRepository) Upsert(ctx context.Context, rt model.RefreshToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (token, user_id, user_agent, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT ON CONSTRAINT refresh_tokens_device_key DO UPDATE SET
		         token      = $1,
		         created_at = $4,
		         expires_at = $5`,
		rt.Token, rt.UserID, rt.UserAgent, rt.CreatedAt, rt.ExpiresAt)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// Consume deletes the record for token and returns it. The delete-returning
// is a single statement, so exactly one caller can consume a given token.
func (r *TokenRepository) Consume(ctx context.Context, token string) (model.RefreshToken, error) {
	rt := model.RefreshToken{Token: token}
	err := r.pool.QueryRow(ctx,
		`DELETE FROM refresh_tokens WHERE token = $1
		 RETURNING user_id, user_agent, created_at, expires_at`, token).
		Scan(&rt.UserID, &rt.UserAgent, &rt.CreatedAt, &rt.ExpiresAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("consume refresh token: %w", err)
	}
	return rt, nil
}

// Delete removes the record if present; deleting an absent token is a no-op.
func (r *TokenRepository) Delete(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user refresh tokens: %w", err)
	}
	return nil
}

func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
