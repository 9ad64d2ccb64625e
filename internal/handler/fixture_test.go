package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"identity-service/internal/cache"
	"identity-service/internal/config"
	"identity-service/internal/handler"
	"identity-service/internal/middleware"
	"identity-service/internal/model"
	"identity-service/internal/provider"
	"identity-service/internal/router"
	"identity-service/internal/service"
)

// memUserStore stands in for the Postgres repository: one user per email,
// nil upsert fields preserve the stored value.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]model.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: map[string]model.User{}}
}

func (s *memUserStore) FindByIDOrEmail(_ context.Context, key string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = strings.ToLower(key)
	for _, u := range s.users {
		if u.ID == key || strings.ToLower(u.Email) == key {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *memUserStore) Upsert(_ context.Context, u model.UserUpsert) (model.User, error) {
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

func (s *memUserStore) Delete(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return "", model.ErrUserNotFound
	}
	delete(s.users, id)
	return u.Email, nil
}

// memTokenStore keeps one refresh record per (user, agent) slot.
type memTokenStore struct {
	mu     sync.Mutex
	tokens map[string]model.RefreshToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: map[string]model.RefreshToken{}}
}

func (s *memTokenStore) Upsert(_ context.Context, rt model.RefreshToken) error {
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

func (s *memTokenStore) Consume(_ context.Context, token string) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.tokens[token]
	if !ok {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	delete(s.tokens, token)
	return rt, nil
}

func (s *memTokenStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

func (s *memTokenStore) DeleteAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, rt := range s.tokens {
		if rt.UserID == userID {
			delete(s.tokens, token)
		}
	}
	return nil
}

func (s *memTokenStore) DeleteExpired(_ context.Context) (int64, error) {
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

// stubProvider answers the federated flow with canned values, standing in
// for the real Google/Yandex round trips.
type stubProvider struct {
	name        model.Provider
	email       string
	exchangeErr error
	resolveErr  error
}

func (p *stubProvider) Name() model.Provider { return p.name }

func (p *stubProvider) AuthCodeURL(state string) string {
	return "https://provider.example/authorize?state=" + state
}

func (p *stubProvider) Exchange(_ context.Context, _ string) (string, error) {
	if p.exchangeErr != nil {
		return "", p.exchangeErr
	}
	return "provider-access-token", nil
}

func (p *stubProvider) ResolveEmail(_ context.Context, _ string) (string, error) {
	if p.resolveErr != nil {
		return "", p.resolveErr
	}
	return p.email, nil
}

type serverFixture struct {
	srv       *httptest.Server
	users     *memUserStore
	tokens    *memTokenStore
	directory *service.Directory
	google    *stubProvider
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	users := newMemUserStore()
	tokens := newMemTokenStore()

	directory := service.NewDirectory(users, cache.NewUserCache(client), time.Minute)
	tokenStore := service.NewRefreshTokenStore(tokens, time.Hour)
	issuer := service.NewTokenIssuer("test-secret", time.Minute)
	hasher := service.NewPasswordHasher(bcrypt.MinCost)
	authService := service.NewAuthService(directory, tokenStore, issuer, hasher)

	google := &stubProvider{name: model.ProviderGoogle, email: "alice@example.com"}
	providers := provider.NewRegistry(google)

	cfg := &config.Config{
		Env:              "test",
		RequestTimeout:   5 * time.Second,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     10000,
		AuthRateLimitRPM: 10000,
	}

	authHandler := handler.NewAuthHandler(authService, providers, time.Minute, false)
	userHandler := handler.NewUserHandler(directory, tokenStore)
	authMiddleware := middleware.NewAuthMiddleware(issuer)

	srv := httptest.NewServer(router.New(cfg, authMiddleware, authHandler, userHandler))
	t.Cleanup(srv.Close)

	return &serverFixture{
		srv:       srv,
		users:     users,
		tokens:    tokens,
		directory: directory,
		google:    google,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
}

// do sends a JSON request with an explicit User-Agent and optional cookies,
// cookies are managed by hand so a test can replay a stale one.
func (f *serverFixture) do(t *testing.T, method string, path string, body any, userAgent string, cookies ...*http.Cookie) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp, env
}

func (f *serverFixture) doAuthed(t *testing.T, method string, path string, body any, accessToken string) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp, env
}

func refreshCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == "refreshtoken" {
			return c
		}
	}
	t.Fatal("refreshtoken cookie not set")
	return nil
}

func accessTokenFrom(t *testing.T, env envelope) string {
	t.Helper()
	var payload model.AccessTokenResponse
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.NotEmpty(t, payload.AccessToken)
	return payload.AccessToken
}
