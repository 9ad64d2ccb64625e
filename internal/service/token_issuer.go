package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"identity-service/internal/model"
)

const accessTokenType = "access"

type accessClaims struct {
	jwt.RegisteredClaims
	Email     string       `json:"email"`
	Roles     []model.Role `json:"roles"`
	TokenType string       `json:"typ"`
}

// TokenIssuer signs and verifies stateless access tokens with symmetric
// HMAC. Refresh tokens are opaque server-side records and never pass
// through here.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

func (i *TokenIssuer) AccessTTL() time.Duration {
	return i.ttl
}

func (i *TokenIssuer) SignAccess(claims model.AccessClaims) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Email:     claims.Email,
		Roles:     claims.Roles,
		TokenType: accessTokenType,
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccess validates signature, expiry and token type, and returns the
// embedded claims. Every failure maps to ErrUnauthorized: callers never
// learn why a token was rejected.
func (i *TokenIssuer) VerifyAccess(tokenString string) (model.AccessClaims, error) {
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return model.AccessClaims{}, model.ErrUnauthorized
	}
	if claims.TokenType != accessTokenType || claims.Subject == "" {
		return model.AccessClaims{}, model.ErrUnauthorized
	}

	return model.AccessClaims{
		UserID: claims.Subject,
		Email:  claims.Email,
		Roles:  claims.Roles,
	}, nil
}
