package session

import "errors"

var (
	// ErrInvalidCredentials is returned when the auth service rejects a
	// login or registration attempt.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNoRefreshToken is returned when a refresh is attempted without a
	// stored refresh token.
	ErrNoRefreshToken = errors.New("no refresh token")

	// ErrRefreshRejected is returned when the auth service rejects the
	// stored refresh token. The manager has already logged out locally.
	ErrRefreshRejected = errors.New("refresh rejected")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
