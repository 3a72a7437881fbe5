package authkit

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TokenPair bundles a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Tokens TokenPair
	User   UserView
}

// SessionManager owns the login, refresh, and logout protocol. It is the only
// component with business rules: everything it touches sits behind the
// UserDirectory, SessionStore, and TokenCodec seams.
type SessionManager struct {
	directory UserDirectory
	sessions  SessionStore
	codec     *TokenCodec
	logger    *zap.Logger
	metrics   MetricsRecorder
}

// NewSessionManager wires the manager's collaborators. A nil logger or metrics
// recorder is replaced with a no-op implementation.
func NewSessionManager(directory UserDirectory, sessions SessionStore, codec *TokenCodec, logger *zap.Logger, metrics MetricsRecorder) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewCounterMetrics()
	}
	return &SessionManager{
		directory: directory,
		sessions:  sessions,
		codec:     codec,
		logger:    logger,
		metrics:   metrics,
	}
}

// Login verifies the password for the user matching identifier (email or
// username), issues a fresh token pair, and stores the new refresh token,
// superseding any previously issued one.
func (manager *SessionManager) Login(ctx context.Context, identifier string, password string) (LoginResult, error) {
	user, findErr := manager.directory.FindByIdentifier(ctx, identifier)
	if findErr != nil {
		manager.metrics.Increment(MetricLoginRejected)
		if errors.Is(findErr, ErrUserNotFound) {
			return LoginResult{}, fmt.Errorf("session.login: %w", ErrUserNotFound)
		}
		return LoginResult{}, fmt.Errorf("session.login.lookup: %w", findErr)
	}

	if !VerifyPassword(password, user.PasswordHash) {
		manager.metrics.Increment(MetricLoginRejected)
		manager.logger.Info("login rejected",
			zap.String("code", "session.login.bad_password"),
			zap.String("user_id", user.ID))
		return LoginResult{}, fmt.Errorf("session.login: %w", ErrInvalidCredentials)
	}

	pair, issueErr := manager.issuePair(ctx, user.ID)
	if issueErr != nil {
		return LoginResult{}, issueErr
	}

	manager.metrics.Increment(MetricLoginSuccess)
	manager.logger.Info("login succeeded",
		zap.String("code", "session.login.ok"),
		zap.String("user_id", user.ID))
	return LoginResult{Tokens: pair, User: user.View()}, nil
}

// Refresh rotates the session: the presented refresh token must validate and
// be byte-equal to the single stored value for its user. On success the stored
// token is overwritten with a fresh one, making the presented token unusable
// for any future renewal.
func (manager *SessionManager) Refresh(ctx context.Context, incomingRefreshToken string) (TokenPair, error) {
	if strings.TrimSpace(incomingRefreshToken) == "" {
		manager.metrics.Increment(MetricRefreshRejected)
		return TokenPair{}, fmt.Errorf("session.refresh.missing_token: %w", ErrUnauthorized)
	}

	userID, validateErr := manager.codec.Validate(incomingRefreshToken, TokenKindRefresh)
	if validateErr != nil {
		manager.metrics.Increment(MetricRefreshRejected)
		return TokenPair{}, fmt.Errorf("session.refresh.validate: %w", ErrUnauthorized)
	}

	if _, findErr := manager.directory.FindByID(ctx, userID); findErr != nil {
		manager.metrics.Increment(MetricRefreshRejected)
		if errors.Is(findErr, ErrUserNotFound) {
			return TokenPair{}, fmt.Errorf("session.refresh.unknown_user: %w", ErrUnauthorized)
		}
		return TokenPair{}, fmt.Errorf("session.refresh.lookup: %w", findErr)
	}

	storedToken, storedErr := manager.sessions.GetRefreshToken(ctx, userID)
	if storedErr != nil {
		manager.metrics.Increment(MetricRefreshRejected)
		return TokenPair{}, fmt.Errorf("session.refresh.stored_token: %w", storedErr)
	}
	if storedToken == "" || subtle.ConstantTimeCompare([]byte(storedToken), []byte(incomingRefreshToken)) != 1 {
		manager.metrics.Increment(MetricRefreshRejected)
		manager.logger.Info("refresh rejected on stored-token mismatch",
			zap.String("code", "session.refresh.superseded"),
			zap.String("user_id", userID))
		return TokenPair{}, fmt.Errorf("session.refresh.superseded: %w", ErrUnauthorized)
	}

	pair, issueErr := manager.issuePair(ctx, userID)
	if issueErr != nil {
		return TokenPair{}, issueErr
	}

	manager.metrics.Increment(MetricRefreshRotated)
	return pair, nil
}

// Logout clears the stored refresh token unconditionally. Callers reach this
// only through requests already carrying a verified access token.
func (manager *SessionManager) Logout(ctx context.Context, userID string) error {
	if clearErr := manager.sessions.SetRefreshToken(ctx, userID, ""); clearErr != nil {
		return fmt.Errorf("session.logout: %w", clearErr)
	}
	manager.metrics.Increment(MetricLogout)
	manager.logger.Info("logout",
		zap.String("code", "session.logout.ok"),
		zap.String("user_id", userID))
	return nil
}

// issuePair mints both tokens before any persistence so a signing failure
// never leaves a half-updated session, then overwrites the stored refresh
// token.
func (manager *SessionManager) issuePair(ctx context.Context, userID string) (TokenPair, error) {
	accessToken, accessExpiresAt, accessErr := manager.codec.IssueAccess(userID)
	if accessErr != nil {
		return TokenPair{}, fmt.Errorf("session.issue.access: %w", accessErr)
	}
	refreshToken, refreshExpiresAt, refreshErr := manager.codec.IssueRefresh(userID)
	if refreshErr != nil {
		return TokenPair{}, fmt.Errorf("session.issue.refresh: %w", refreshErr)
	}
	if persistErr := manager.sessions.SetRefreshToken(ctx, userID, refreshToken); persistErr != nil {
		return TokenPair{}, fmt.Errorf("session.issue.persist: %w", persistErr)
	}
	return TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}
