package authkit

import "errors"

var (
	// ErrUserNotFound indicates no user matched the supplied identifier.
	ErrUserNotFound = errors.New("auth.user_not_found")
	// ErrUserExists indicates a user with the same email or username already exists.
	ErrUserExists = errors.New("auth.user_exists")
	// ErrInvalidCredentials indicates the password did not match the stored hash.
	ErrInvalidCredentials = errors.New("auth.invalid_credentials")
	// ErrUnauthorized covers missing, invalid, expired, and mismatched session tokens.
	ErrUnauthorized = errors.New("auth.unauthorized")
	// ErrTokenInvalid indicates a malformed token or a bad signature.
	ErrTokenInvalid = errors.New("auth.token_invalid")
	// ErrTokenExpired indicates a well-signed token whose expiry has passed.
	ErrTokenExpired = errors.New("auth.token_expired")
)
