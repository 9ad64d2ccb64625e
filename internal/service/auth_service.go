package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"identity-service/internal/model"
)

// AuthService orchestrates the session lifecycle: register, login, refresh,
// provider auth and logout. Per device a session moves through
// anonymous -> authenticated -> rotated -> revoked.
type AuthService struct {
	directory *Directory
	tokens    *RefreshTokenStore
	issuer    *TokenIssuer
	hasher    *PasswordHasher
}

func NewAuthService(directory *Directory, tokens *RefreshTokenStore, issuer *TokenIssuer, hasher *PasswordHasher) *AuthService {
	return &AuthService{
		directory: directory,
		tokens:    tokens,
		issuer:    issuer,
		hasher:    hasher,
	}
}

// Register creates a local account. An email already held by a local
// account is a conflict; a provider-only account gains a password instead,
// keeping one user per email.
//
// The conflict check and the upsert are separate statements, so two
// concurrent registrations of one email can both pass the check and the
// later write wins. The row itself stays consistent (the upsert is a single
// atomic statement against the unique email index) and the loser can no
// longer log in; the same lost-update window is accepted for refresh
// rotation.
func (s *AuthService) Register(ctx context.Context, email string, password string) (model.User, error) {
	existing, err := s.directory.FindByIDOrEmail(ctx, email, true)
	if err != nil && !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, fmt.Errorf("check existing user: %w", err)
	}
	if err == nil && existing.Provider == model.ProviderLocal {
		return model.User{}, model.ErrUserAlreadyExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return model.User{}, err
	}

	provider := model.ProviderLocal
	user, err := s.directory.Upsert(ctx, model.UserUpsert{
		Email:        email,
		PasswordHash: &hash,
		Provider:     &provider,
	})
	if err != nil {
		return model.User{}, fmt.Errorf("register user: %w", err)
	}

	slog.Info("user registered", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// Login verifies the credentials and issues a token pair bound to the
// presenting device agent. Absent users, blocked users, provider-only
// accounts and bad passwords all collapse to ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email string, password string, userAgent string) (model.Tokens, error) {
	user, err := s.directory.FindByIDOrEmail(ctx, email, true)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.Tokens{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.Tokens{}, fmt.Errorf("load user for login: %w", err)
	}

	if user.IsBlocked {
		return model.Tokens{}, model.ErrUserBlocked
	}

	if user.PasswordHash == nil || !s.hasher.Verify(password, *user.PasswordHash) {
		return model.Tokens{}, model.ErrInvalidCredentials
	}

	return s.issueTokens(ctx, user, userAgent)
}

// Refresh rotates the presented refresh token and mints a new access token
// from a fresh user read, so role changes take effect on the next refresh.
func (s *AuthService) Refresh(ctx context.Context, presented string, userAgent string) (model.Tokens, error) {
	rotated, err := s.tokens.Rotate(ctx, presented, userAgent)
	if err != nil {
		return model.Tokens{}, err
	}

	user, err := s.directory.FindByIDOrEmail(ctx, rotated.UserID, true)
	if err != nil {
		return model.Tokens{}, fmt.Errorf("load user for refresh: %w", err)
	}

	if user.IsBlocked {
		return model.Tokens{}, model.ErrUserBlocked
	}

	access, err := s.issuer.SignAccess(claimsFor(user))
	if err != nil {
		return model.Tokens{}, err
	}

	return model.Tokens{AccessToken: access, RefreshToken: rotated}, nil
}

// ProviderAuth completes a federated login for an email the provider has
// already vouched for. The account is created on first login, without a
// password.
func (s *AuthService) ProviderAuth(ctx context.Context, email string, userAgent string, provider model.Provider) (model.Tokens, error) {
	user, err := s.directory.Upsert(ctx, model.UserUpsert{
		Email:    email,
		Provider: &provider,
	})
	if err != nil {
		return model.Tokens{}, fmt.Errorf("upsert provider user: %w", err)
	}

	if user.IsBlocked {
		return model.Tokens{}, model.ErrUserBlocked
	}

	slog.Info("provider login", "user_id", user.ID, "provider", provider)
	return s.issueTokens(ctx, user, userAgent)
}

// Logout revokes the refresh record. An unknown or already-revoked token is
// treated as an accomplished logout, not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.tokens.Revoke(ctx, refreshToken)
}

func (s *AuthService) issueTokens(ctx context.Context, user model.User, userAgent string) (model.Tokens, error) {
	access, err := s.issuer.SignAccess(claimsFor(user))
	if err != nil {
		return model.Tokens{}, err
	}

	// The refresh record is persisted before the pair leaves the service:
	// an access token is never handed out without its refresh counterpart.
	refresh, err := s.tokens.Issue(ctx, user.ID, userAgent)
	if err != nil {
		return model.Tokens{}, err
	}

	return model.Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

func claimsFor(user model.User) model.AccessClaims {
	return model.AccessClaims{
		UserID: user.ID,
		Email:  user.Email,
		Roles:  user.Roles,
	}
}
