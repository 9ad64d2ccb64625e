package model

import "time"

// RefreshToken is the server-side record backing a long-lived session.
// At most one live record exists per (UserID, UserAgent) pair.
type RefreshToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AccessClaims is the identity carried by a verified access token.
type AccessClaims struct {
	UserID string `json:"sub"`
	Email  string `json:"email"`
	Roles  []Role `json:"roles"`
}

func (c AccessClaims) HasRole(role Role) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Tokens is the result of every successful authentication: a stateless
// access token paired with its persisted refresh record.
type Tokens struct {
	AccessToken  string
	RefreshToken RefreshToken
}
