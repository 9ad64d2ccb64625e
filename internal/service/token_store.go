package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"identity-service/internal/model"
)

// TokenRecordStore is the persistence collaborator for refresh records.
type TokenRecordStore interface {
	Upsert(ctx context.Context, rt model.RefreshToken) error
	Consume(ctx context.Context, token string) (model.RefreshToken, error)
	Delete(ctx context.Context, token string) error
	DeleteAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// RefreshTokenStore owns the refresh-record lifecycle: one live record per
// (user, device agent), rotated on every refresh.
type RefreshTokenStore struct {
	store TokenRecordStore
	ttl   time.Duration
}

func NewRefreshTokenStore(store TokenRecordStore, ttl time.Duration) *RefreshTokenStore {
	return &RefreshTokenStore{store: store, ttl: ttl}
}

// Issue mints a fresh opaque token for the device slot, overwriting any
// record the slot already holds.
func (s *RefreshTokenStore) Issue(ctx context.Context, userID string, userAgent string) (model.RefreshToken, error) {
	now := time.Now().UTC()
	rt := model.RefreshToken{
		Token:     uuid.NewString(),
		UserID:    userID,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.store.Upsert(ctx, rt); err != nil {
		return model.RefreshToken{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return rt, nil
}

// Rotate consumes the presented token and issues a replacement for the same
// device slot. The consume happens first and is unconditional, so a
// presented token is dead after Rotate returns regardless of outcome, and
// two concurrent rotations of the same token cannot both succeed.
func (s *RefreshTokenStore) Rotate(ctx context.Context, presented string, userAgent string) (model.RefreshToken, error) {
	rt, err := s.store.Consume(ctx, presented)
	if err != nil {
		return model.RefreshToken{}, err
	}

	if time.Now().After(rt.ExpiresAt) {
		return model.RefreshToken{}, model.ErrTokenExpired
	}

	if rt.UserAgent != userAgent {
		return model.RefreshToken{}, model.ErrDeviceMismatch
	}

	return s.Issue(ctx, rt.UserID, rt.UserAgent)
}

// Revoke deletes the record for token; revoking an unknown token is a no-op.
func (s *RefreshTokenStore) Revoke(ctx context.Context, token string) error {
	return s.store.Delete(ctx, token)
}

// RevokeAllForUser drops every live session of the user, across devices.
func (s *RefreshTokenStore) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.store.DeleteAllForUser(ctx, userID)
}

// SweepExpired removes records whose expiry has passed and reports how many
// were dropped.
func (s *RefreshTokenStore) SweepExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx)
}
