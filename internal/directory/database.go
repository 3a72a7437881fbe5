package directory

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/tyemirov/vtube/internal/authkit"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("directory.unsupported_dialect")

	errEmptyDatabaseURL    = errors.New("directory.empty_database_url")
	errSQLiteEmptyPath     = errors.New("directory.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("directory.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("directory.unsupported_no_scheme")
)

// DatabaseDirectory persists users using GORM over PostgreSQL or SQLite.
type DatabaseDirectory struct {
	db          *gorm.DB
	driverLabel string
}

type userRecord struct {
	ID            string `gorm:"column:id;primaryKey"`
	UserName      string `gorm:"column:user_name;uniqueIndex;not null"`
	Email         string `gorm:"column:email;uniqueIndex;not null"`
	FullName      string `gorm:"column:full_name;not null"`
	AvatarURL     string `gorm:"column:avatar_url;not null;default:''"`
	CoverImageURL string `gorm:"column:cover_image_url;not null;default:''"`
	PasswordHash  string `gorm:"column:password_hash;not null"`
	RefreshToken  string `gorm:"column:refresh_token;not null;default:''"`
	CreatedAtUnix int64  `gorm:"column:created_at_unix;not null"`
}

func (userRecord) TableName() string {
	return "users"
}

// Driver exposes the selected database driver label.
func (store *DatabaseDirectory) Driver() string {
	return store.driverLabel
}

// NewDatabaseDirectory opens the database behind the URL and migrates the
// users table.
func NewDatabaseDirectory(ctx context.Context, databaseURL string) (*DatabaseDirectory, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("directory.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, dialectErr := resolveDialector(databaseURL)
	if dialectErr != nil {
		return nil, dialectErr
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("directory.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&userRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("directory.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseDirectory{
		db:          gormDB,
		driverLabel: driverLabel,
	}, nil
}

// Create inserts a new user row, assigning an id when none is provided.
func (store *DatabaseDirectory) Create(ctx context.Context, user authkit.User) (authkit.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.UserName = normalize(user.UserName)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	var existing userRecord
	lookupErr := store.db.WithContext(ctx).
		Where("user_name = ? OR email = ?", user.UserName, normalize(user.Email)).
		Take(&existing).Error
	if lookupErr == nil {
		return authkit.User{}, fmt.Errorf("directory.create.%s: %w", store.driverLabel, authkit.ErrUserExists)
	}
	if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		return authkit.User{}, fmt.Errorf("directory.create.%s: %w", store.driverLabel, lookupErr)
	}
	record := toRecord(user)
	if createErr := store.db.WithContext(ctx).Create(&record).Error; createErr != nil {
		return authkit.User{}, fmt.Errorf("directory.create.%s: %w", store.driverLabel, createErr)
	}
	return fromRecord(record), nil
}

// FindByIdentifier resolves a user by username or email.
func (store *DatabaseDirectory) FindByIdentifier(ctx context.Context, identifier string) (authkit.User, error) {
	key := normalize(identifier)
	var record userRecord
	findErr := store.db.WithContext(ctx).
		Where("user_name = ? OR email = ?", key, key).
		Take(&record).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return authkit.User{}, fmt.Errorf("directory.find_by_identifier.%s: %w", store.driverLabel, authkit.ErrUserNotFound)
		}
		return authkit.User{}, fmt.Errorf("directory.find_by_identifier.%s: %w", store.driverLabel, findErr)
	}
	return fromRecord(record), nil
}

// FindByID resolves a user by its opaque id.
func (store *DatabaseDirectory) FindByID(ctx context.Context, id string) (authkit.User, error) {
	var record userRecord
	findErr := store.db.WithContext(ctx).Where("id = ?", id).Take(&record).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return authkit.User{}, fmt.Errorf("directory.find_by_id.%s: %w", store.driverLabel, authkit.ErrUserNotFound)
		}
		return authkit.User{}, fmt.Errorf("directory.find_by_id.%s: %w", store.driverLabel, findErr)
	}
	return fromRecord(record), nil
}

// UpdateProfile replaces the full name and email of an existing user.
func (store *DatabaseDirectory) UpdateProfile(ctx context.Context, id string, fullName string, email string) (authkit.User, error) {
	return store.updateColumns(ctx, id, "update_profile", map[string]interface{}{
		"full_name": fullName,
		"email":     normalize(email),
	})
}

// SetAvatarURL replaces the avatar URL of an existing user.
func (store *DatabaseDirectory) SetAvatarURL(ctx context.Context, id string, avatarURL string) (authkit.User, error) {
	return store.updateColumns(ctx, id, "set_avatar", map[string]interface{}{
		"avatar_url": avatarURL,
	})
}

// SetCoverImageURL replaces the cover image URL of an existing user.
func (store *DatabaseDirectory) SetCoverImageURL(ctx context.Context, id string, coverImageURL string) (authkit.User, error) {
	return store.updateColumns(ctx, id, "set_cover_image", map[string]interface{}{
		"cover_image_url": coverImageURL,
	})
}

// UpdatePassword replaces the stored credential hash.
func (store *DatabaseDirectory) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	_, updateErr := store.updateColumns(ctx, id, "update_password", map[string]interface{}{
		"password_hash": passwordHash,
	})
	return updateErr
}

// SetRefreshToken overwrites the stored refresh token in a single UPDATE so
// concurrent rotations for the same user serialize on the row.
func (store *DatabaseDirectory) SetRefreshToken(ctx context.Context, id string, token string) error {
	_, updateErr := store.updateColumns(ctx, id, "set_refresh_token", map[string]interface{}{
		"refresh_token": token,
	})
	return updateErr
}

func (store *DatabaseDirectory) updateColumns(ctx context.Context, id string, operation string, columns map[string]interface{}) (authkit.User, error) {
	result := store.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		return authkit.User{}, fmt.Errorf("directory.%s.%s: %w", operation, store.driverLabel, result.Error)
	}
	if result.RowsAffected == 0 {
		return authkit.User{}, fmt.Errorf("directory.%s.%s: %w", operation, store.driverLabel, authkit.ErrUserNotFound)
	}
	return store.FindByID(ctx, id)
}

func toRecord(user authkit.User) userRecord {
	return userRecord{
		ID:            user.ID,
		UserName:      user.UserName,
		Email:         normalize(user.Email),
		FullName:      user.FullName,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		PasswordHash:  user.PasswordHash,
		RefreshToken:  user.RefreshToken,
		CreatedAtUnix: user.CreatedAt.Unix(),
	}
}

func fromRecord(record userRecord) authkit.User {
	return authkit.User{
		ID:            record.ID,
		UserName:      record.UserName,
		Email:         record.Email,
		FullName:      record.FullName,
		AvatarURL:     record.AvatarURL,
		CoverImageURL: record.CoverImageURL,
		PasswordHash:  record.PasswordHash,
		RefreshToken:  record.RefreshToken,
		CreatedAt:     time.Unix(record.CreatedAtUnix, 0).UTC(),
	}
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, parseErr := url.Parse(databaseURL)
	if parseErr != nil {
		return nil, "", fmt.Errorf("directory.parse_url: %w", parseErr)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("directory.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("directory.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("directory.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
