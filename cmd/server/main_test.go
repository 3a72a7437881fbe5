package main

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/tyemirov/vtube/internal/authkit"
)

func setValidConfig() {
	viper.Set("access_token_secret", "access-secret")
	viper.Set("refresh_token_secret", "refresh-secret")
	viper.Set("access_token_ttl", 15*time.Minute)
	viper.Set("refresh_token_ttl", 240*time.Hour)
	viper.Set("database_engine", "gorm")
	viper.Set("cookie_domain", "example.com")
}

func TestLoadServerConfigAcceptsValidSettings(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setValidConfig()

	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		t.Fatalf("unexpected load error: %v", loadErr)
	}
	if string(serverConfig.AccessTokenSecret) != "access-secret" {
		t.Fatalf("unexpected access secret %q", serverConfig.AccessTokenSecret)
	}
	if serverConfig.AccessTokenTTL != 15*time.Minute || serverConfig.RefreshTokenTTL != 240*time.Hour {
		t.Fatalf("unexpected TTLs %v %v", serverConfig.AccessTokenTTL, serverConfig.RefreshTokenTTL)
	}
	if serverConfig.Issuer != "vtube-auth" {
		t.Fatalf("unexpected issuer %q", serverConfig.Issuer)
	}
	if serverConfig.AccessCookieName != accessCookieName || serverConfig.RefreshCookieName != refreshCookieName {
		t.Fatalf("unexpected cookie names %q %q", serverConfig.AccessCookieName, serverConfig.RefreshCookieName)
	}
	if serverConfig.CookieDomain != "example.com" {
		t.Fatalf("unexpected cookie domain %q", serverConfig.CookieDomain)
	}
}

func TestLoadServerConfigValidation(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func()
		wantCode string
	}{
		{
			name:     "missing access secret",
			mutate:   func() { viper.Set("access_token_secret", "") },
			wantCode: configCodeMissingAccessSecret,
		},
		{
			name:     "missing refresh secret",
			mutate:   func() { viper.Set("refresh_token_secret", "") },
			wantCode: configCodeMissingRefreshSecret,
		},
		{
			name:     "shared secrets",
			mutate:   func() { viper.Set("refresh_token_secret", "access-secret") },
			wantCode: configCodeSharedSecrets,
		},
		{
			name:     "zero access ttl",
			mutate:   func() { viper.Set("access_token_ttl", time.Duration(0)) },
			wantCode: configCodeInvalidAccessTTL,
		},
		{
			name:     "negative refresh ttl",
			mutate:   func() { viper.Set("refresh_token_ttl", -time.Hour) },
			wantCode: configCodeInvalidRefreshTTL,
		},
		{
			name:     "unknown database engine",
			mutate:   func() { viper.Set("database_engine", "mongo") },
			wantCode: configCodeUnknownDatabaseEngine,
		},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			setValidConfig()
			testCase.mutate()

			_, loadErr := LoadServerConfig()
			if loadErr == nil {
				t.Fatalf("expected configuration error")
			}
			if !strings.HasPrefix(loadErr.Error(), testCase.wantCode) {
				t.Fatalf("expected code %q, got %v", testCase.wantCode, loadErr)
			}
		})
	}
}

func TestPrepareServerConfigStashesConfigInContext(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setValidConfig()

	command := newRootCommand()
	if prepareErr := prepareServerConfig(command, nil); prepareErr != nil {
		t.Fatalf("unexpected prepare error: %v", prepareErr)
	}
	if command.Context() == nil {
		t.Fatalf("expected command context to be set")
	}
	stashed, ok := command.Context().Value(serverConfigContextKey).(authkit.ServerConfig)
	if !ok {
		t.Fatalf("expected server config in command context")
	}
	if stashed.Issuer != "vtube-auth" {
		t.Fatalf("unexpected stashed issuer %q", stashed.Issuer)
	}
}
