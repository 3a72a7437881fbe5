package authkit

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MountAuthRoutes registers /login, /refresh-token, and /logout.
func MountAuthRoutes(router gin.IRouter, configuration ServerConfig, manager *SessionManager, codec *TokenCodec, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	router.POST("/login", func(contextGin *gin.Context) {
		var inbound struct {
			UserName string `json:"userName"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		identifier := strings.TrimSpace(inbound.UserName)
		if identifier == "" {
			identifier = strings.TrimSpace(inbound.Email)
		}
		if identifier == "" || inbound.Password == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "identifier_and_password_required"})
			return
		}
		if !configuration.AllowInsecureHTTP && !isHTTPS(contextGin.Request) {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "https_required"})
			return
		}

		result, loginErr := manager.Login(contextGin, identifier, inbound.Password)
		if loginErr != nil {
			switch {
			case errors.Is(loginErr, ErrUserNotFound):
				contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
			case errors.Is(loginErr, ErrInvalidCredentials):
				contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
			default:
				logger.Error("login failed",
					zap.String("code", "routes.login.internal"),
					zap.Error(loginErr))
				contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal"})
			}
			return
		}

		writeSessionCookies(contextGin, configuration, result.Tokens)
		contextGin.JSON(http.StatusOK, gin.H{
			"user":         result.User,
			"accessToken":  result.Tokens.AccessToken,
			"refreshToken": result.Tokens.RefreshToken,
		})
	})

	router.POST("/refresh-token", func(contextGin *gin.Context) {
		incomingRefreshToken := refreshTokenFromRequest(contextGin, configuration)

		pair, refreshErr := manager.Refresh(contextGin, incomingRefreshToken)
		if refreshErr != nil {
			if errors.Is(refreshErr, ErrUnauthorized) {
				contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			logger.Error("refresh failed",
				zap.String("code", "routes.refresh.internal"),
				zap.Error(refreshErr))
			contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal"})
			return
		}

		writeSessionCookies(contextGin, configuration, pair)
		contextGin.JSON(http.StatusOK, gin.H{
			"accessToken":  pair.AccessToken,
			"refreshToken": pair.RefreshToken,
		})
	})

	router.POST("/logout", RequireAccessToken(configuration, codec), func(contextGin *gin.Context) {
		userID, found := UserIDFromContext(contextGin)
		if !found {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if logoutErr := manager.Logout(contextGin, userID); logoutErr != nil {
			logger.Error("logout failed",
				zap.String("code", "routes.logout.internal"),
				zap.Error(logoutErr))
			contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal"})
			return
		}
		clearCookie(contextGin, configuration, configuration.AccessCookieName)
		clearCookie(contextGin, configuration, configuration.RefreshCookieName)
		contextGin.JSON(http.StatusOK, gin.H{})
	})
}

// refreshTokenFromRequest prefers the cookie and falls back to the request
// body field of the same name.
func refreshTokenFromRequest(contextGin *gin.Context, configuration ServerConfig) string {
	cookie, cookieErr := contextGin.Request.Cookie(configuration.RefreshCookieName)
	if cookieErr == nil && cookie != nil && strings.TrimSpace(cookie.Value) != "" {
		return cookie.Value
	}
	var inbound struct {
		RefreshToken string `json:"refreshToken"`
	}
	if bindErr := contextGin.ShouldBindJSON(&inbound); bindErr != nil {
		return ""
	}
	return strings.TrimSpace(inbound.RefreshToken)
}

func writeSessionCookies(contextGin *gin.Context, configuration ServerConfig, pair TokenPair) {
	writeCookie(contextGin, configuration, configuration.AccessCookieName, pair.AccessToken, pair.AccessExpiresAt)
	writeCookie(contextGin, configuration, configuration.RefreshCookieName, pair.RefreshToken, pair.RefreshExpiresAt)
}

func writeCookie(contextGin *gin.Context, configuration ServerConfig, name string, value string, expiresAt time.Time) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   configuration.CookieDomain,
		Expires:  expiresAt,
		Secure:   true,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}

func clearCookie(contextGin *gin.Context, configuration ServerConfig, name string) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   configuration.CookieDomain,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}

func isHTTPS(request *http.Request) bool {
	if request.TLS != nil {
		return true
	}
	scheme := request.Header.Get("X-Forwarded-Proto")
	if strings.EqualFold(scheme, "https") {
		return true
	}
	forwarded := request.Header.Get("Forwarded")
	if forwarded != "" && strings.Contains(strings.ToLower(forwarded), "proto=https") {
		return true
	}
	host, _, splitErr := net.SplitHostPort(request.Host)
	if splitErr == nil && host == "localhost" {
		return true
	}
	return false
}
