package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/vtube/internal/authkit"
	"github.com/tyemirov/vtube/internal/directory"
	"github.com/tyemirov/vtube/internal/mediastore"
	"go.uber.org/zap/zaptest"
)

type accountsHarness struct {
	server    *httptest.Server
	directory *directory.MemoryDirectory
	codec     *authkit.TokenCodec
	client    *http.Client
}

func newAccountsHarness(t *testing.T) *accountsHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	configuration := authkit.ServerConfig{
		AccessTokenSecret:  []byte("access-secret"),
		RefreshTokenSecret: []byte("refresh-secret"),
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    240 * time.Hour,
		Issuer:             "vtube-auth",
		AccessCookieName:   "accessToken",
		RefreshCookieName:  "refreshToken",
		SameSiteMode:       http.SameSiteStrictMode,
		AllowInsecureHTTP:  true,
	}
	codec, codecErr := authkit.NewTokenCodec(configuration.TokenConfig(authkit.NewSystemClock()))
	if codecErr != nil {
		t.Fatalf("unexpected codec error: %v", codecErr)
	}

	userDirectory := directory.NewMemoryDirectory()
	media, mediaErr := mediastore.NewLocalStore(t.TempDir(), "/media")
	if mediaErr != nil {
		t.Fatalf("unexpected media store error: %v", mediaErr)
	}

	router := gin.New()
	MountAccountRoutes(router, configuration, codec, NewAccountHandlers(userDirectory, media, zaptest.NewLogger(t)))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &accountsHarness{
		server:    server,
		directory: userDirectory,
		codec:     codec,
		client:    server.Client(),
	}
}

func (harness *accountsHarness) accessTokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, _, issueErr := harness.codec.IssueAccess(userID)
	if issueErr != nil {
		t.Fatalf("unexpected issue error: %v", issueErr)
	}
	return token
}

func (harness *accountsHarness) seedUser(t *testing.T, userName string, password string) authkit.User {
	t.Helper()
	passwordHash, hashErr := authkit.HashPassword(password)
	if hashErr != nil {
		t.Fatalf("unexpected hash error: %v", hashErr)
	}
	created, createErr := harness.directory.Create(context.Background(), authkit.User{
		UserName:     userName,
		Email:        userName + "@example.com",
		FullName:     "Seeded User",
		PasswordHash: passwordHash,
	})
	if createErr != nil {
		t.Fatalf("unexpected seed error: %v", createErr)
	}
	return created
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		if writeErr := writer.WriteField(name, value); writeErr != nil {
			t.Fatalf("unexpected field error: %v", writeErr)
		}
	}
	for name, content := range files {
		part, partErr := writer.CreateFormFile(name, name+".png")
		if partErr != nil {
			t.Fatalf("unexpected part error: %v", partErr)
		}
		if _, copyErr := part.Write(content); copyErr != nil {
			t.Fatalf("unexpected write error: %v", copyErr)
		}
	}
	if closeErr := writer.Close(); closeErr != nil {
		t.Fatalf("unexpected close error: %v", closeErr)
	}
	return body, writer.FormDataContentType()
}

func (harness *accountsHarness) do(t *testing.T, method string, path string, body io.Reader, contentType string, accessToken string) (*http.Response, map[string]any) {
	t.Helper()
	request, requestErr := http.NewRequest(method, harness.server.URL+path, body)
	if requestErr != nil {
		t.Fatalf("unexpected request error: %v", requestErr)
	}
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	if accessToken != "" {
		request.Header.Set("Authorization", "Bearer "+accessToken)
	}
	response, responseErr := harness.client.Do(request)
	if responseErr != nil {
		t.Fatalf("unexpected transport error: %v", responseErr)
	}
	defer func() { _ = response.Body.Close() }()
	payload := map[string]any{}
	_ = json.NewDecoder(response.Body).Decode(&payload)
	return response, payload
}

func TestRegisterCreatesUserWithAvatar(t *testing.T) {
	harness := newAccountsHarness(t)

	body, contentType := multipartBody(t,
		map[string]string{
			"fullName": "Ana Example",
			"email":    "ana@example.com",
			"userName": "ana",
			"password": "correct horse",
		},
		map[string][]byte{"avatar": []byte("png-bytes")},
	)
	response, payload := harness.do(t, http.MethodPost, "/register", body, contentType, "")
	if response.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%v)", response.StatusCode, payload)
	}

	userPayload, ok := payload["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected user object, got %v", payload)
	}
	if userPayload["userName"] != "ana" {
		t.Fatalf("unexpected user payload %v", userPayload)
	}
	avatarURL, _ := userPayload["avatar"].(string)
	if !strings.HasPrefix(avatarURL, "/media/uploads/") {
		t.Fatalf("expected uploaded avatar URL, got %q", avatarURL)
	}
	if _, leaked := userPayload["passwordHash"]; leaked {
		t.Fatalf("password hash leaked in response: %v", userPayload)
	}

	stored, findErr := harness.directory.FindByIdentifier(context.Background(), "ana")
	if findErr != nil {
		t.Fatalf("expected stored user: %v", findErr)
	}
	if !authkit.VerifyPassword("correct horse", stored.PasswordHash) {
		t.Fatalf("stored hash does not verify")
	}
}

func TestRegisterValidation(t *testing.T) {
	harness := newAccountsHarness(t)

	missingBody, missingType := multipartBody(t,
		map[string]string{"fullName": "Ana", "email": "ana@example.com", "userName": "ana"},
		map[string][]byte{"avatar": []byte("png")},
	)
	missingResponse, missingPayload := harness.do(t, http.MethodPost, "/register", missingBody, missingType, "")
	if missingResponse.StatusCode != http.StatusBadRequest || missingPayload["error"] != "all_fields_required" {
		t.Fatalf("expected 400 all_fields_required, got %d (%v)", missingResponse.StatusCode, missingPayload)
	}

	noAvatarBody, noAvatarType := multipartBody(t,
		map[string]string{"fullName": "Ana", "email": "ana@example.com", "userName": "ana", "password": "pw"},
		nil,
	)
	noAvatarResponse, noAvatarPayload := harness.do(t, http.MethodPost, "/register", noAvatarBody, noAvatarType, "")
	if noAvatarResponse.StatusCode != http.StatusBadRequest || noAvatarPayload["error"] != "avatar_required" {
		t.Fatalf("expected 400 avatar_required, got %d (%v)", noAvatarResponse.StatusCode, noAvatarPayload)
	}

	harness.seedUser(t, "taken", "pw")
	duplicateBody, duplicateType := multipartBody(t,
		map[string]string{"fullName": "Dup", "email": "taken@example.com", "userName": "taken", "password": "pw"},
		map[string][]byte{"avatar": []byte("png")},
	)
	duplicateResponse, duplicatePayload := harness.do(t, http.MethodPost, "/register", duplicateBody, duplicateType, "")
	if duplicateResponse.StatusCode != http.StatusConflict || duplicatePayload["error"] != "user_exists" {
		t.Fatalf("expected 409 user_exists, got %d (%v)", duplicateResponse.StatusCode, duplicatePayload)
	}
}

func TestCurrentUserRequiresAndHonorsAccessToken(t *testing.T) {
	harness := newAccountsHarness(t)
	seeded := harness.seedUser(t, "ana", "pw")

	unauthorizedResponse, _ := harness.do(t, http.MethodGet, "/current-user", nil, "", "")
	if unauthorizedResponse.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", unauthorizedResponse.StatusCode)
	}

	response, payload := harness.do(t, http.MethodGet, "/current-user", nil, "", harness.accessTokenFor(t, seeded.ID))
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", response.StatusCode, payload)
	}
	userPayload, _ := payload["user"].(map[string]any)
	if userPayload["userName"] != "ana" {
		t.Fatalf("unexpected user payload %v", payload)
	}
}

func TestChangePasswordVerifiesOldPassword(t *testing.T) {
	harness := newAccountsHarness(t)
	seeded := harness.seedUser(t, "ana", "old password")
	token := harness.accessTokenFor(t, seeded.ID)

	wrongResponse, wrongPayload := harness.do(t, http.MethodPost, "/change-password",
		strings.NewReader(`{"oldPassword":"not it","newPassword":"next"}`), "application/json", token)
	if wrongResponse.StatusCode != http.StatusBadRequest || wrongPayload["error"] != "invalid_password" {
		t.Fatalf("expected 400 invalid_password, got %d (%v)", wrongResponse.StatusCode, wrongPayload)
	}

	okResponse, okPayload := harness.do(t, http.MethodPost, "/change-password",
		strings.NewReader(`{"oldPassword":"old password","newPassword":"new password"}`), "application/json", token)
	if okResponse.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", okResponse.StatusCode, okPayload)
	}

	stored, findErr := harness.directory.FindByID(context.Background(), seeded.ID)
	if findErr != nil {
		t.Fatalf("unexpected lookup error: %v", findErr)
	}
	if !authkit.VerifyPassword("new password", stored.PasswordHash) {
		t.Fatalf("new password does not verify after change")
	}
	if authkit.VerifyPassword("old password", stored.PasswordHash) {
		t.Fatalf("old password still verifies after change")
	}
}

func TestUpdateAccountReplacesProfile(t *testing.T) {
	harness := newAccountsHarness(t)
	seeded := harness.seedUser(t, "ana", "pw")
	harness.seedUser(t, "bob", "pw")
	token := harness.accessTokenFor(t, seeded.ID)

	takenResponse, takenPayload := harness.do(t, http.MethodPatch, "/update-account",
		strings.NewReader(`{"fullName":"Ana","email":"bob@example.com"}`), "application/json", token)
	if takenResponse.StatusCode != http.StatusConflict || takenPayload["error"] != "email_taken" {
		t.Fatalf("expected 409 email_taken, got %d (%v)", takenResponse.StatusCode, takenPayload)
	}

	response, payload := harness.do(t, http.MethodPatch, "/update-account",
		strings.NewReader(`{"fullName":"Ana Renamed","email":"ana2@example.com"}`), "application/json", token)
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", response.StatusCode, payload)
	}
	userPayload, _ := payload["user"].(map[string]any)
	if userPayload["fullName"] != "Ana Renamed" || userPayload["email"] != "ana2@example.com" {
		t.Fatalf("unexpected updated profile %v", userPayload)
	}
}

func TestUpdateAvatarStoresNewImage(t *testing.T) {
	harness := newAccountsHarness(t)
	seeded := harness.seedUser(t, "ana", "pw")

	body, contentType := multipartBody(t, nil, map[string][]byte{"avatar": []byte("new-png")})
	response, payload := harness.do(t, http.MethodPatch, "/update-avatar", body, contentType,
		harness.accessTokenFor(t, seeded.ID))
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", response.StatusCode, payload)
	}
	userPayload, _ := payload["user"].(map[string]any)
	avatarURL, _ := userPayload["avatar"].(string)
	if !strings.HasPrefix(avatarURL, "/media/uploads/") {
		t.Fatalf("expected uploaded avatar URL, got %q", avatarURL)
	}
}
