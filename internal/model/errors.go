package model

import "errors"

var (
	// User related errors
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserBlocked       = errors.New("user is blocked")

	// Credential related errors
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token related errors
	ErrTokenNotFound  = errors.New("refresh token not found")
	ErrTokenExpired   = errors.New("refresh token expired")
	ErrDeviceMismatch = errors.New("refresh token device mismatch")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Provider related errors
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	ErrUnknownProvider     = errors.New("unknown identity provider")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
