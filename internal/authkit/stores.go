package authkit

import (
	"context"
	"time"
)

// User is the directory's record of an account. PasswordHash is read only by
// the credential verifier and RefreshToken only by the session store; neither
// field ever leaves the process.
type User struct {
	ID            string
	UserName      string
	Email         string
	FullName      string
	AvatarURL     string
	CoverImageURL string
	PasswordHash  string
	RefreshToken  string
	CreatedAt     time.Time
}

// UserView is the outward-facing projection of a User, stripped of the
// credential hash and the stored refresh token.
type UserView struct {
	ID            string    `json:"id"`
	UserName      string    `json:"userName"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar,omitempty"`
	CoverImageURL string    `json:"coverImage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// View strips credential and session fields from the user record.
func (user User) View() UserView {
	return UserView{
		ID:            user.ID,
		UserName:      user.UserName,
		Email:         user.Email,
		FullName:      user.FullName,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		CreatedAt:     user.CreatedAt,
	}
}

// UserDirectory persists and retrieves application users. Implementations must
// return ErrUserNotFound for missing users and ErrUserExists on duplicate
// email or username, and must apply SetRefreshToken as a single atomic
// per-user write.
type UserDirectory interface {
	Create(ctx context.Context, user User) (User, error)
	FindByIdentifier(ctx context.Context, identifier string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	UpdateProfile(ctx context.Context, id string, fullName string, email string) (User, error)
	SetAvatarURL(ctx context.Context, id string, avatarURL string) (User, error)
	SetCoverImageURL(ctx context.Context, id string, coverImageURL string) (User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	SetRefreshToken(ctx context.Context, id string, token string) error
}

// SessionStore reads and writes the single active refresh token for a user.
// An empty token clears the stored value.
type SessionStore interface {
	SetRefreshToken(ctx context.Context, userID string, token string) error
	GetRefreshToken(ctx context.Context, userID string) (string, error)
}

type directorySessionStore struct {
	directory UserDirectory
}

// NewDirectorySessionStore adapts a UserDirectory into a SessionStore.
func NewDirectorySessionStore(directory UserDirectory) SessionStore {
	return &directorySessionStore{directory: directory}
}

func (store *directorySessionStore) SetRefreshToken(ctx context.Context, userID string, token string) error {
	return store.directory.SetRefreshToken(ctx, userID, token)
}

func (store *directorySessionStore) GetRefreshToken(ctx context.Context, userID string) (string, error) {
	user, findErr := store.directory.FindByID(ctx, userID)
	if findErr != nil {
		return "", findErr
	}
	return user.RefreshToken, nil
}
