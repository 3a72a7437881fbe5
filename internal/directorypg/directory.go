package directorypg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tyemirov/vtube/internal/authkit"
)

const uniqueViolationCode = "23505"

// PgxDirectory persists users in PostgreSQL without an ORM.
type PgxDirectory struct {
	pool *pgxpool.Pool
}

// NewPgxDirectory constructs a Postgres-backed user directory.
func NewPgxDirectory(pool *pgxpool.Pool) *PgxDirectory {
	return &PgxDirectory{pool: pool}
}

const userColumns = "id, user_name, email, full_name, avatar_url, cover_image_url, password_hash, refresh_token, created_at_unix"

// Create inserts a new user row, assigning an id when none is provided.
func (store *PgxDirectory) Create(ctx context.Context, user authkit.User) (authkit.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.UserName = normalize(user.UserName)
	user.Email = normalize(user.Email)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, execErr := store.pool.Exec(ctx, `
INSERT INTO users (id, user_name, email, full_name, avatar_url, cover_image_url, password_hash, refresh_token, created_at_unix)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, user.ID, user.UserName, user.Email, user.FullName, user.AvatarURL, user.CoverImageURL, user.PasswordHash, user.RefreshToken, user.CreatedAt.Unix())
	if execErr != nil {
		var pgErr *pgconn.PgError
		if errors.As(execErr, &pgErr) && pgErr.Code == uniqueViolationCode {
			return authkit.User{}, fmt.Errorf("directory.pg.create: %w", authkit.ErrUserExists)
		}
		return authkit.User{}, fmt.Errorf("directory.pg.create: %w", execErr)
	}
	return user, nil
}

// FindByIdentifier resolves a user by username or email.
func (store *PgxDirectory) FindByIdentifier(ctx context.Context, identifier string) (authkit.User, error) {
	key := normalize(identifier)
	row := store.pool.QueryRow(ctx, `
SELECT `+userColumns+`
FROM users
WHERE user_name = $1 OR email = $1
`, key)
	return store.scanUser(row, "find_by_identifier")
}

// FindByID resolves a user by its opaque id.
func (store *PgxDirectory) FindByID(ctx context.Context, id string) (authkit.User, error) {
	row := store.pool.QueryRow(ctx, `
SELECT `+userColumns+`
FROM users
WHERE id = $1
`, id)
	return store.scanUser(row, "find_by_id")
}

// UpdateProfile replaces the full name and email of an existing user.
func (store *PgxDirectory) UpdateProfile(ctx context.Context, id string, fullName string, email string) (authkit.User, error) {
	if updateErr := store.exec(ctx, "update_profile", `
UPDATE users SET full_name = $2, email = $3 WHERE id = $1
`, id, fullName, normalize(email)); updateErr != nil {
		return authkit.User{}, updateErr
	}
	return store.FindByID(ctx, id)
}

// SetAvatarURL replaces the avatar URL of an existing user.
func (store *PgxDirectory) SetAvatarURL(ctx context.Context, id string, avatarURL string) (authkit.User, error) {
	if updateErr := store.exec(ctx, "set_avatar", `
UPDATE users SET avatar_url = $2 WHERE id = $1
`, id, avatarURL); updateErr != nil {
		return authkit.User{}, updateErr
	}
	return store.FindByID(ctx, id)
}

// SetCoverImageURL replaces the cover image URL of an existing user.
func (store *PgxDirectory) SetCoverImageURL(ctx context.Context, id string, coverImageURL string) (authkit.User, error) {
	if updateErr := store.exec(ctx, "set_cover_image", `
UPDATE users SET cover_image_url = $2 WHERE id = $1
`, id, coverImageURL); updateErr != nil {
		return authkit.User{}, updateErr
	}
	return store.FindByID(ctx, id)
}

// UpdatePassword replaces the stored credential hash.
func (store *PgxDirectory) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	return store.exec(ctx, "update_password", `
UPDATE users SET password_hash = $2 WHERE id = $1
`, id, passwordHash)
}

// SetRefreshToken overwrites the stored refresh token in a single UPDATE so
// concurrent rotations for the same user serialize on the row.
func (store *PgxDirectory) SetRefreshToken(ctx context.Context, id string, token string) error {
	return store.exec(ctx, "set_refresh_token", `
UPDATE users SET refresh_token = $2 WHERE id = $1
`, id, token)
}

func (store *PgxDirectory) exec(ctx context.Context, operation string, query string, arguments ...interface{}) error {
	commandTag, execErr := store.pool.Exec(ctx, query, arguments...)
	if execErr != nil {
		var pgErr *pgconn.PgError
		if errors.As(execErr, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("directory.pg.%s: %w", operation, authkit.ErrUserExists)
		}
		return fmt.Errorf("directory.pg.%s: %w", operation, execErr)
	}
	if commandTag.RowsAffected() == 0 {
		return fmt.Errorf("directory.pg.%s: %w", operation, authkit.ErrUserNotFound)
	}
	return nil
}

func (store *PgxDirectory) scanUser(row pgx.Row, operation string) (authkit.User, error) {
	var user authkit.User
	var createdAtUnix int64
	scanErr := row.Scan(&user.ID, &user.UserName, &user.Email, &user.FullName,
		&user.AvatarURL, &user.CoverImageURL, &user.PasswordHash, &user.RefreshToken, &createdAtUnix)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return authkit.User{}, fmt.Errorf("directory.pg.%s: %w", operation, authkit.ErrUserNotFound)
		}
		return authkit.User{}, fmt.Errorf("directory.pg.%s: %w", operation, scanErr)
	}
	user.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	return user, nil
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
