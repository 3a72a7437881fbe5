package authkit

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextUserIDKey is the gin context key under which RequireAccessToken
// stores the authenticated user id.
const ContextUserIDKey = "auth_user_id"

// RequireAccessToken validates the access token from the cookie or the
// Authorization header and injects the user id into the request context.
func RequireAccessToken(configuration ServerConfig, codec *TokenCodec) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		tokenString := accessTokenFromRequest(contextGin, configuration)
		if tokenString == "" {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		userID, validateErr := codec.Validate(tokenString, TokenKindAccess)
		if validateErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		contextGin.Set(ContextUserIDKey, userID)
		contextGin.Next()
	}
}

// UserIDFromContext returns the user id injected by RequireAccessToken.
func UserIDFromContext(contextGin *gin.Context) (string, bool) {
	value, found := contextGin.Get(ContextUserIDKey)
	if !found {
		return "", false
	}
	userID, ok := value.(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

func accessTokenFromRequest(contextGin *gin.Context, configuration ServerConfig) string {
	cookie, cookieErr := contextGin.Request.Cookie(configuration.AccessCookieName)
	if cookieErr == nil && cookie != nil && strings.TrimSpace(cookie.Value) != "" {
		return cookie.Value
	}
	authorizationHeader := contextGin.GetHeader("Authorization")
	if headerToken, found := strings.CutPrefix(authorizationHeader, "Bearer "); found {
		return strings.TrimSpace(headerToken)
	}
	return ""
}
