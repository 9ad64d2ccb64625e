package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type Provider string

const (
	ProviderLocal  Provider = "LOCAL"
	ProviderGoogle Provider = "GOOGLE"
	ProviderYandex Provider = "YANDEX"
)

// User is the durable account record. PasswordHash is nil for accounts
// created through a federated provider.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash *string   `json:"password_hash"`
	Roles        []Role    `json:"roles"`
	Provider     Provider  `json:"provider"`
	IsBlocked    bool      `json:"is_blocked"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// UserUpsert carries a partial user write. Nil optional fields preserve the
// stored value on update and fall back to defaults on create.
type UserUpsert struct {
	Email        string
	PasswordHash *string
	Roles        []Role
	Provider     *Provider
	IsBlocked    *bool
}

// UserResponse is the API projection of a user; it never exposes the
// password hash.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Roles     []Role    `json:"roles"`
	Provider  Provider  `json:"provider"`
	IsBlocked bool      `json:"is_blocked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewUserResponse(u User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Roles:     u.Roles,
		Provider:  u.Provider,
		IsBlocked: u.IsBlocked,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
