package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"identity-service/internal/model"
)

// UserStore is the durable persistence collaborator for user records.
type UserStore interface {
	FindByIDOrEmail(ctx context.Context, key string) (model.User, error)
	Upsert(ctx context.Context, u model.UserUpsert) (model.User, error)
	Delete(ctx context.Context, id string) (email string, err error)
}

// UserCache is the TTL key/value collaborator fronting the user store.
type UserCache interface {
	Get(ctx context.Context, key string) (model.User, bool, error)
	Set(ctx context.Context, key string, u model.User, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Directory wraps the user store with a read-through cache. Cache failures
// are never fatal: a broken cache degrades to plain persistence reads.
type Directory struct {
	store UserStore
	cache UserCache
	ttl   time.Duration
}

func NewDirectory(store UserStore, cache UserCache, ttl time.Duration) *Directory {
	return &Directory{store: store, cache: cache, ttl: ttl}
}

// FindByIDOrEmail returns the user for an id or email key. With
// forceRefresh the cache entry for the key is dropped first, guaranteeing a
// persistence read. Absent users are not cached: a negative entry would
// hide a registration completed within the TTL window.
func (d *Directory) FindByIDOrEmail(ctx context.Context, key string, forceRefresh bool) (model.User, error) {
	key = normalizeKey(key)

	if forceRefresh {
		if err := d.cache.Del(ctx, key); err != nil {
			slog.Warn("cache invalidation failed", "key", key, "error", err)
		}
	} else {
		cached, ok, err := d.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("cache read failed, falling back to store", "key", key, "error", err)
		}
		if ok {
			return cached, nil
		}
	}

	u, err := d.store.FindByIDOrEmail(ctx, key)
	if err != nil {
		return model.User{}, err
	}

	if err := d.cache.Set(ctx, key, u, d.ttl); err != nil {
		slog.Warn("cache populate failed", "key", key, "error", err)
	}
	return u, nil
}

// Upsert writes through to the store and refreshes the cache under both the
// id and the email key so either lookup observes the same record version.
func (d *Directory) Upsert(ctx context.Context, u model.UserUpsert) (model.User, error) {
	u.Email = normalizeKey(u.Email)

	saved, err := d.store.Upsert(ctx, u)
	if err != nil {
		return model.User{}, err
	}

	for _, key := range []string{saved.ID, saved.Email} {
		if err := d.cache.Set(ctx, key, saved, d.ttl); err != nil {
			slog.Warn("cache populate failed after upsert", "key", key, "error", err)
		}
	}
	return saved, nil
}

// Delete removes the user identified by id. Allowed for the user themself
// and for admins; anyone else gets ErrForbidden. Both cache keys are
// invalidated together.
func (d *Directory) Delete(ctx context.Context, id string, requester model.AccessClaims) (string, error) {
	if requester.UserID != id && !requester.HasRole(model.RoleAdmin) {
		return "", model.ErrForbidden
	}

	email, err := d.store.Delete(ctx, id)
	if err != nil {
		return "", err
	}

	if err := d.cache.Del(ctx, id, email); err != nil {
		slog.Warn("cache invalidation failed after delete", "id", id, "error", err)
	}
	return id, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
