package authkit

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind selects which signing secret and lifetime a token uses.
type TokenKind string

const (
	// TokenKindAccess marks short-lived tokens presented on ordinary requests.
	TokenKindAccess TokenKind = "access"
	// TokenKindRefresh marks long-lived tokens exchanged for a new pair.
	TokenKindRefresh TokenKind = "refresh"
)

var (
	errMissingAccessSecret  = errors.New("token_codec.missing_access_secret")
	errMissingRefreshSecret = errors.New("token_codec.missing_refresh_secret")
	errSharedSecrets        = errors.New("token_codec.secrets_must_differ")
	errInvalidAccessTTL     = errors.New("token_codec.invalid_access_ttl")
	errInvalidRefreshTTL    = errors.New("token_codec.invalid_refresh_ttl")
	errUnknownTokenKind     = errors.New("token_codec.unknown_kind")
	errEmptySubject         = errors.New("token_codec.empty_subject")
)

// TokenConfig carries the signing material for both token kinds. Access and
// refresh secrets must differ so one kind can never mint or pass for the other.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Clock         Clock
}

// TokenCodec mints and validates signed session tokens.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	clock         Clock
}

type sessionClaims struct {
	TokenKind string `json:"token_kind"`
	jwt.RegisteredClaims
}

// NewTokenCodec validates the configuration and constructs a codec.
func NewTokenCodec(configuration TokenConfig) (*TokenCodec, error) {
	if len(configuration.AccessSecret) == 0 {
		return nil, fmt.Errorf("token_codec.new: %w", errMissingAccessSecret)
	}
	if len(configuration.RefreshSecret) == 0 {
		return nil, fmt.Errorf("token_codec.new: %w", errMissingRefreshSecret)
	}
	if bytes.Equal(configuration.AccessSecret, configuration.RefreshSecret) {
		return nil, fmt.Errorf("token_codec.new: %w", errSharedSecrets)
	}
	if configuration.AccessTTL <= 0 {
		return nil, fmt.Errorf("token_codec.new: %w", errInvalidAccessTTL)
	}
	if configuration.RefreshTTL <= 0 {
		return nil, fmt.Errorf("token_codec.new: %w", errInvalidRefreshTTL)
	}
	clock := configuration.Clock
	if clock == nil {
		clock = NewSystemClock()
	}
	return &TokenCodec{
		accessSecret:  configuration.AccessSecret,
		refreshSecret: configuration.RefreshSecret,
		accessTTL:     configuration.AccessTTL,
		refreshTTL:    configuration.RefreshTTL,
		issuer:        configuration.Issuer,
		clock:         clock,
	}, nil
}

// IssueAccess mints a short-lived access token for the user.
func (codec *TokenCodec) IssueAccess(userID string) (string, time.Time, error) {
	return codec.issue(userID, TokenKindAccess)
}

// IssueRefresh mints a long-lived refresh token for the user.
func (codec *TokenCodec) IssueRefresh(userID string) (string, time.Time, error) {
	return codec.issue(userID, TokenKindRefresh)
}

func (codec *TokenCodec) issue(userID string, kind TokenKind) (string, time.Time, error) {
	if strings.TrimSpace(userID) == "" {
		return "", time.Time{}, fmt.Errorf("token_codec.issue: %w", errEmptySubject)
	}
	secret, ttl, kindErr := codec.materialFor(kind)
	if kindErr != nil {
		return "", time.Time{}, kindErr
	}
	issuedAt := codec.clock.Now()
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		TokenKind: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    codec.issuer,
			Subject:   userID,
			// The jti makes two tokens minted within the same second distinct.
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, signErr := token.SignedString(secret)
	if signErr != nil {
		return "", time.Time{}, fmt.Errorf("token_codec.issue.%s: %w", kind, signErr)
	}
	return signed, expiresAt, nil
}

// Validate verifies the token against the secret for the given kind and
// returns the embedded user id. Expired and forged tokens fail differently so
// callers can prompt re-authentication instead of treating expiry as abuse.
func (codec *TokenCodec) Validate(tokenString string, kind TokenKind) (string, error) {
	if strings.TrimSpace(tokenString) == "" {
		return "", fmt.Errorf("token_codec.validate: %w", ErrTokenInvalid)
	}
	secret, _, kindErr := codec.materialFor(kind)
	if kindErr != nil {
		return "", kindErr
	}
	parsedToken, parseErr := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(parsed *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time {
		return codec.clock.Now()
	}))
	if parseErr != nil {
		if errors.Is(parseErr, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("token_codec.validate.%s: %w", kind, ErrTokenExpired)
		}
		return "", fmt.Errorf("token_codec.validate.%s: %w", kind, ErrTokenInvalid)
	}
	claims, ok := parsedToken.Claims.(*sessionClaims)
	if !ok || !parsedToken.Valid {
		return "", fmt.Errorf("token_codec.validate.%s: %w", kind, ErrTokenInvalid)
	}
	if claims.Issuer != codec.issuer || claims.TokenKind != string(kind) {
		return "", fmt.Errorf("token_codec.validate.%s: %w", kind, ErrTokenInvalid)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("token_codec.validate.%s: %w", kind, ErrTokenInvalid)
	}
	return claims.Subject, nil
}

func (codec *TokenCodec) materialFor(kind TokenKind) ([]byte, time.Duration, error) {
	switch kind {
	case TokenKindAccess:
		return codec.accessSecret, codec.accessTTL, nil
	case TokenKindRefresh:
		return codec.refreshSecret, codec.refreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("token_codec.kind.%s: %w", kind, errUnknownTokenKind)
	}
}
