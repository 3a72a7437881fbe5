package web

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/vtube/internal/authkit"
	"github.com/tyemirov/vtube/internal/mediastore"
	"go.uber.org/zap"
)

// AccountHandlers serves registration and profile management around the auth
// core. Media uploads are delegated to the MediaStore.
type AccountHandlers struct {
	directory authkit.UserDirectory
	media     mediastore.MediaStore
	logger    *zap.Logger
}

// NewAccountHandlers wires the account surface.
func NewAccountHandlers(directory authkit.UserDirectory, media mediastore.MediaStore, logger *zap.Logger) *AccountHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountHandlers{
		directory: directory,
		media:     media,
		logger:    logger,
	}
}

// MountAccountRoutes registers /register plus the access-token-gated profile
// endpoints.
func MountAccountRoutes(router gin.IRouter, configuration authkit.ServerConfig, codec *authkit.TokenCodec, handlers *AccountHandlers) {
	router.POST("/register", handlers.HandleRegister)

	gated := router.Group("")
	gated.Use(authkit.RequireAccessToken(configuration, codec))
	gated.GET("/current-user", handlers.HandleCurrentUser)
	gated.POST("/change-password", handlers.HandleChangePassword)
	gated.PATCH("/update-account", handlers.HandleUpdateAccount)
	gated.PATCH("/update-avatar", handlers.HandleUpdateImage("avatar"))
	gated.PATCH("/update-cover-image", handlers.HandleUpdateImage("coverImage"))
}

// HandleRegister creates a user from a multipart form with a required avatar
// and an optional cover image.
func (handlers *AccountHandlers) HandleRegister(contextGin *gin.Context) {
	fullName := strings.TrimSpace(contextGin.PostForm("fullName"))
	email := strings.TrimSpace(contextGin.PostForm("email"))
	userName := strings.TrimSpace(contextGin.PostForm("userName"))
	password := contextGin.PostForm("password")

	if fullName == "" || email == "" || userName == "" || password == "" {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "all_fields_required"})
		return
	}
	if !strings.Contains(email, "@") {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_email"})
		return
	}

	avatarHeader, avatarErr := contextGin.FormFile("avatar")
	if avatarErr != nil || avatarHeader == nil {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "avatar_required"})
		return
	}
	avatarURL, uploadErr := handlers.uploadFormFile(contextGin, avatarHeader)
	if uploadErr != nil {
		handlers.logger.Error("avatar upload failed",
			zap.String("code", "accounts.register.avatar_upload"),
			zap.Error(uploadErr))
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
		return
	}

	coverImageURL := ""
	if coverHeader, coverErr := contextGin.FormFile("coverImage"); coverErr == nil && coverHeader != nil {
		uploadedCoverURL, coverUploadErr := handlers.uploadFormFile(contextGin, coverHeader)
		if coverUploadErr != nil {
			handlers.logger.Error("cover image upload failed",
				zap.String("code", "accounts.register.cover_upload"),
				zap.Error(coverUploadErr))
			contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
			return
		}
		coverImageURL = uploadedCoverURL
	}

	passwordHash, hashErr := authkit.HashPassword(password)
	if hashErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	created, createErr := handlers.directory.Create(contextGin, authkit.User{
		UserName:      userName,
		Email:         email,
		FullName:      fullName,
		AvatarURL:     avatarURL,
		CoverImageURL: coverImageURL,
		PasswordHash:  passwordHash,
	})
	if createErr != nil {
		if errors.Is(createErr, authkit.ErrUserExists) {
			contextGin.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "user_exists"})
			return
		}
		handlers.logger.Error("user creation failed",
			zap.String("code", "accounts.register.create"),
			zap.Error(createErr))
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	contextGin.JSON(http.StatusCreated, gin.H{"user": created.View()})
}

// HandleCurrentUser returns the authenticated user's view.
func (handlers *AccountHandlers) HandleCurrentUser(contextGin *gin.Context) {
	userID, found := authkit.UserIDFromContext(contextGin)
	if !found {
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	user, findErr := handlers.directory.FindByID(contextGin, userID)
	if findErr != nil {
		handlers.respondLookupError(contextGin, "accounts.current_user", findErr)
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{"user": user.View()})
}

// HandleChangePassword verifies the old password before storing a new hash.
func (handlers *AccountHandlers) HandleChangePassword(contextGin *gin.Context) {
	userID, found := authkit.UserIDFromContext(contextGin)
	if !found {
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var inbound struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if bindErr := contextGin.BindJSON(&inbound); bindErr != nil || inbound.OldPassword == "" || inbound.NewPassword == "" {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "old_and_new_password_required"})
		return
	}
	user, findErr := handlers.directory.FindByID(contextGin, userID)
	if findErr != nil {
		handlers.respondLookupError(contextGin, "accounts.change_password", findErr)
		return
	}
	if !authkit.VerifyPassword(inbound.OldPassword, user.PasswordHash) {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_password"})
		return
	}
	newHash, hashErr := authkit.HashPassword(inbound.NewPassword)
	if hashErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	if updateErr := handlers.directory.UpdatePassword(contextGin, userID, newHash); updateErr != nil {
		handlers.respondLookupError(contextGin, "accounts.change_password.update", updateErr)
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{})
}

// HandleUpdateAccount replaces full name and email; both are required.
func (handlers *AccountHandlers) HandleUpdateAccount(contextGin *gin.Context) {
	userID, found := authkit.UserIDFromContext(contextGin)
	if !found {
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var inbound struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
	}
	if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}
	fullName := strings.TrimSpace(inbound.FullName)
	email := strings.TrimSpace(inbound.Email)
	if fullName == "" || email == "" {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "full_name_and_email_required"})
		return
	}
	updated, updateErr := handlers.directory.UpdateProfile(contextGin, userID, fullName, email)
	if updateErr != nil {
		if errors.Is(updateErr, authkit.ErrUserExists) {
			contextGin.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "email_taken"})
			return
		}
		handlers.respondLookupError(contextGin, "accounts.update_account", updateErr)
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{"user": updated.View()})
}

// HandleUpdateImage uploads a replacement avatar or cover image.
func (handlers *AccountHandlers) HandleUpdateImage(field string) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		userID, found := authkit.UserIDFromContext(contextGin)
		if !found {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		fileHeader, fileErr := contextGin.FormFile(field)
		if fileErr != nil || fileHeader == nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "file_required"})
			return
		}
		publicURL, uploadErr := handlers.uploadFormFile(contextGin, fileHeader)
		if uploadErr != nil {
			handlers.logger.Error("image upload failed",
				zap.String("code", "accounts.update_image.upload"),
				zap.String("field", field),
				zap.Error(uploadErr))
			contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
			return
		}

		var updated authkit.User
		var updateErr error
		if field == "avatar" {
			updated, updateErr = handlers.directory.SetAvatarURL(contextGin, userID, publicURL)
		} else {
			updated, updateErr = handlers.directory.SetCoverImageURL(contextGin, userID, publicURL)
		}
		if updateErr != nil {
			handlers.respondLookupError(contextGin, "accounts.update_image", updateErr)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"user": updated.View()})
	}
}

func (handlers *AccountHandlers) uploadFormFile(contextGin *gin.Context, fileHeader *multipart.FileHeader) (string, error) {
	file, openErr := fileHeader.Open()
	if openErr != nil {
		return "", openErr
	}
	defer func() { _ = file.Close() }()
	return handlers.media.Save(contextGin, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
}

func (handlers *AccountHandlers) respondLookupError(contextGin *gin.Context, code string, lookupErr error) {
	if errors.Is(lookupErr, authkit.ErrUserNotFound) {
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
		return
	}
	handlers.logger.Error("directory error",
		zap.String("code", code),
		zap.Error(lookupErr))
	contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal"})
}
