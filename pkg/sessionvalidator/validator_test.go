package sessionvalidator

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type fixedClock struct {
	instant time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.instant
}

var (
	testSigningKey = []byte("access-secret")
	testIssuer     = "vtube-auth"
	testInstant    = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	validator, newErr := New(Config{
		SigningKey: testSigningKey,
		Issuer:     testIssuer,
		Clock:      fixedClock{instant: testInstant},
	})
	if newErr != nil {
		t.Fatalf("unexpected constructor error: %v", newErr)
	}
	return validator
}

func mintToken(t *testing.T, mutate func(claims *Claims), signingKey []byte) string {
	t.Helper()
	claims := &Claims{
		TokenKind: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(testInstant),
			NotBefore: jwt.NewNumericDate(testInstant.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(testInstant.Add(15 * time.Minute)),
		},
	}
	if mutate != nil {
		mutate(claims)
	}
	signed, signErr := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if signErr != nil {
		t.Fatalf("unexpected signing error: %v", signErr)
	}
	return signed
}

func TestNewRequiresKeyAndIssuer(t *testing.T) {
	t.Parallel()

	if _, keyErr := New(Config{Issuer: testIssuer}); !errors.Is(keyErr, ErrMissingSigningKey) {
		t.Fatalf("expected ErrMissingSigningKey, got %v", keyErr)
	}
	if _, issuerErr := New(Config{SigningKey: testSigningKey}); !errors.Is(issuerErr, ErrMissingIssuer) {
		t.Fatalf("expected ErrMissingIssuer, got %v", issuerErr)
	}
}

func TestValidateTokenAcceptsWellFormedAccessToken(t *testing.T) {
	t.Parallel()

	validator := newTestValidator(t)
	claims, validateErr := validator.ValidateToken(mintToken(t, nil, testSigningKey))
	if validateErr != nil {
		t.Fatalf("unexpected validation error: %v", validateErr)
	}
	if claims.GetUserID() != "user-1" {
		t.Fatalf("unexpected subject %q", claims.GetUserID())
	}
	if claims.GetExpiresAt() != testInstant.Add(15*time.Minute) {
		t.Fatalf("unexpected expiry %v", claims.GetExpiresAt())
	}
}

func TestValidateTokenRejections(t *testing.T) {
	t.Parallel()

	validator := newTestValidator(t)

	cases := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			name:    "empty token",
			token:   "  ",
			wantErr: ErrMissingToken,
		},
		{
			name: "expired",
			token: mintToken(t, func(claims *Claims) {
				claims.ExpiresAt = jwt.NewNumericDate(testInstant.Add(-time.Minute))
			}, testSigningKey),
			wantErr: ErrTokenExpired,
		},
		{
			name: "wrong issuer",
			token: mintToken(t, func(claims *Claims) {
				claims.Issuer = "someone-else"
			}, testSigningKey),
			wantErr: ErrInvalidIssuer,
		},
		{
			name: "refresh token kind",
			token: mintToken(t, func(claims *Claims) {
				claims.TokenKind = "refresh"
			}, testSigningKey),
			wantErr: ErrWrongTokenKind,
		},
		{
			name: "missing subject",
			token: mintToken(t, func(claims *Claims) {
				claims.Subject = ""
			}, testSigningKey),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "forged signature",
			token:   mintToken(t, nil, []byte("other-key")),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "garbage",
			token:   "not.a.jwt",
			wantErr: ErrInvalidToken,
		},
	}

	for _, testCase := range cases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			if _, validateErr := validator.ValidateToken(testCase.token); !errors.Is(validateErr, testCase.wantErr) {
				t.Fatalf("expected %v, got %v", testCase.wantErr, validateErr)
			}
		})
	}
}

func TestValidateRequestReadsCookieThenBearer(t *testing.T) {
	t.Parallel()

	validator := newTestValidator(t)
	token := mintToken(t, nil, testSigningKey)

	cookieRequest := httptest.NewRequest(http.MethodGet, "/", nil)
	cookieRequest.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: token})
	if _, cookieErr := validator.ValidateRequest(cookieRequest); cookieErr != nil {
		t.Fatalf("unexpected cookie validation error: %v", cookieErr)
	}

	bearerRequest := httptest.NewRequest(http.MethodGet, "/", nil)
	bearerRequest.Header.Set("Authorization", "Bearer "+token)
	if _, bearerErr := validator.ValidateRequest(bearerRequest); bearerErr != nil {
		t.Fatalf("unexpected bearer validation error: %v", bearerErr)
	}

	bareRequest := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, bareErr := validator.ValidateRequest(bareRequest); !errors.Is(bareErr, ErrMissingCookie) {
		t.Fatalf("expected ErrMissingCookie, got %v", bareErr)
	}
}

func TestGinMiddlewareInjectsClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)

	validator := newTestValidator(t)
	router := gin.New()
	router.GET("/protected", validator.GinMiddleware(""), func(contextGin *gin.Context) {
		value, exists := contextGin.Get(DefaultContextKey)
		claims, ok := value.(*Claims)
		if !exists || !ok {
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.String(http.StatusOK, claims.GetUserID())
	})

	authorized := httptest.NewRequest(http.MethodGet, "/protected", nil)
	authorized.Header.Set("Authorization", "Bearer "+mintToken(t, nil, testSigningKey))
	authorizedRecorder := httptest.NewRecorder()
	router.ServeHTTP(authorizedRecorder, authorized)
	if authorizedRecorder.Code != http.StatusOK || authorizedRecorder.Body.String() != "user-1" {
		t.Fatalf("expected 200 user-1, got %d %q", authorizedRecorder.Code, authorizedRecorder.Body.String())
	}

	anonymous := httptest.NewRequest(http.MethodGet, "/protected", nil)
	anonymousRecorder := httptest.NewRecorder()
	router.ServeHTTP(anonymousRecorder, anonymous)
	if anonymousRecorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", anonymousRecorder.Code)
	}
}
