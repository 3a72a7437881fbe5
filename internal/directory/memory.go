package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tyemirov/vtube/internal/authkit"
)

// MemoryDirectory is a map-backed UserDirectory for tests and local runs.
type MemoryDirectory struct {
	mutex      sync.Mutex
	byID       map[string]authkit.User
	byUserName map[string]string
	byEmail    map[string]string
}

// NewMemoryDirectory constructs an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byID:       make(map[string]authkit.User),
		byUserName: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// Create stores a new user, assigning an id when none is provided.
func (store *MemoryDirectory) Create(ctx context.Context, user authkit.User) (authkit.User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	userNameKey := normalize(user.UserName)
	emailKey := normalize(user.Email)
	if _, taken := store.byUserName[userNameKey]; taken {
		return authkit.User{}, fmt.Errorf("directory.memory.create: %w", authkit.ErrUserExists)
	}
	if _, taken := store.byEmail[emailKey]; taken {
		return authkit.User{}, fmt.Errorf("directory.memory.create: %w", authkit.ErrUserExists)
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.UserName = userNameKey
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	store.byID[user.ID] = user
	store.byUserName[userNameKey] = user.ID
	store.byEmail[emailKey] = user.ID
	return user, nil
}

// FindByIdentifier resolves a user by username or email.
func (store *MemoryDirectory) FindByIdentifier(ctx context.Context, identifier string) (authkit.User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	key := normalize(identifier)
	if id, ok := store.byUserName[key]; ok {
		return store.byID[id], nil
	}
	if id, ok := store.byEmail[key]; ok {
		return store.byID[id], nil
	}
	return authkit.User{}, fmt.Errorf("directory.memory.find_by_identifier: %w", authkit.ErrUserNotFound)
}

// FindByID resolves a user by its opaque id.
func (store *MemoryDirectory) FindByID(ctx context.Context, id string) (authkit.User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	user, ok := store.byID[id]
	if !ok {
		return authkit.User{}, fmt.Errorf("directory.memory.find_by_id: %w", authkit.ErrUserNotFound)
	}
	return user, nil
}

// UpdateProfile replaces the full name and email of an existing user.
func (store *MemoryDirectory) UpdateProfile(ctx context.Context, id string, fullName string, email string) (authkit.User, error) {
	return store.update(id, "update_profile", func(user *authkit.User) error {
		emailKey := normalize(email)
		if existingID, taken := store.byEmail[emailKey]; taken && existingID != id {
			return authkit.ErrUserExists
		}
		delete(store.byEmail, normalize(user.Email))
		store.byEmail[emailKey] = id
		user.FullName = fullName
		user.Email = email
		return nil
	})
}

// SetAvatarURL replaces the avatar URL of an existing user.
func (store *MemoryDirectory) SetAvatarURL(ctx context.Context, id string, avatarURL string) (authkit.User, error) {
	return store.update(id, "set_avatar", func(user *authkit.User) error {
		user.AvatarURL = avatarURL
		return nil
	})
}

// SetCoverImageURL replaces the cover image URL of an existing user.
func (store *MemoryDirectory) SetCoverImageURL(ctx context.Context, id string, coverImageURL string) (authkit.User, error) {
	return store.update(id, "set_cover_image", func(user *authkit.User) error {
		user.CoverImageURL = coverImageURL
		return nil
	})
}

// UpdatePassword replaces the stored credential hash.
func (store *MemoryDirectory) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	_, updateErr := store.update(id, "update_password", func(user *authkit.User) error {
		user.PasswordHash = passwordHash
		return nil
	})
	return updateErr
}

// SetRefreshToken overwrites the single stored refresh token; an empty token
// clears it.
func (store *MemoryDirectory) SetRefreshToken(ctx context.Context, id string, token string) error {
	_, updateErr := store.update(id, "set_refresh_token", func(user *authkit.User) error {
		user.RefreshToken = token
		return nil
	})
	return updateErr
}

func (store *MemoryDirectory) update(id string, operation string, mutate func(user *authkit.User) error) (authkit.User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	user, ok := store.byID[id]
	if !ok {
		return authkit.User{}, fmt.Errorf("directory.memory.%s: %w", operation, authkit.ErrUserNotFound)
	}
	if mutateErr := mutate(&user); mutateErr != nil {
		return authkit.User{}, fmt.Errorf("directory.memory.%s: %w", operation, mutateErr)
	}
	store.byID[id] = user
	return user, nil
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
