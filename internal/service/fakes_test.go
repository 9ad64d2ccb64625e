package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"identity-service/internal/model"
)

// fakeUserStore mirrors the persistence collaborator's contract in memory.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]model.User // keyed by id
	finds int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]model.User{}}
}

func (s *fakeUserStore) FindByIDOrEmail(_ context.Context, key string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finds++
	key = strings.ToLower(key)
	for _, u := range s.users {
		if u.ID == key || strings.ToLower(u.Email) == key {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *fakeUserStore) Upsert(_ context.Context, u model.UserUpsert) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	now := time.Now().UTC()

	for id, existing := range s.users {
		if strings.ToLower(existing.Email) != email {
			continue
		}
		if u.PasswordHash != nil {
			existing.PasswordHash = u.PasswordHash
		}
		if u.Roles != nil {
			existing.Roles = u.Roles
		}
		if u.Provider != nil {
			existing.Provider = *u.Provider
		}
		if u.IsBlocked != nil {
			existing.IsBlocked = *u.IsBlocked
		}
		existing.UpdatedAt = now
		s.users[id] = existing
		return existing, nil
	}

	created := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: u.PasswordHash,
		Roles:        []model.Role{model.RoleUser},
		Provider:     model.ProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if u.Roles != nil {
		created.Roles = u.Roles
	}
	if u.Provider != nil {
		created.Provider = *u.Provider
	}
	if u.IsBlocked != nil {
		created.IsBlocked = *u.IsBlocked
	}
	s.users[created.ID] = created
	return created, nil
}

func (s *fakeUserStore) Delete(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return "", model.ErrUserNotFound
	}
	delete(s.users, id)
	return u.Email, nil
}

func (s *fakeUserStore) findCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds
}

// fakeTokenStore keeps refresh records in memory with the same
// one-record-per-device-slot behavior as the Postgres repository.
type fakeTokenStore struct {
	mu     sync.Mutex
	tokens map[string]model.RefreshToken // keyed by token value
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: map[string]model.RefreshToken{}}
}

func (s *fakeTokenStore) Upsert(_ context.Context, rt model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, existing := range s.tokens {
		if existing.UserID == rt.UserID && existing.UserAgent == rt.UserAgent {
			delete(s.tokens, token)
		}
	}
	s.tokens[rt.Token] = rt
	return nil
}

func (s *fakeTokenStore) Consume(_ context.Context, token string) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.tokens[token]
	if !ok {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	delete(s.tokens, token)
	return rt, nil
}

func (s *fakeTokenStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, token)
	return nil
}

func (s *fakeTokenStore) DeleteAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, rt := range s.tokens {
		if rt.UserID == userID {
			delete(s.tokens, token)
		}
	}
	return nil
}

func (s *fakeTokenStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	now := time.Now()
	for token, rt := range s.tokens {
		if !rt.ExpiresAt.After(now) {
			delete(s.tokens, token)
			removed++
		}
	}
	return removed, nil
}

func (s *fakeTokenStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

func (s *fakeTokenStore) seed(rt model.RefreshToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[rt.Token] = rt
}
