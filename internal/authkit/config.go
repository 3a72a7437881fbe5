package authkit

import (
	"net/http"
	"time"
)

// ServerConfig configures token signing, cookies, and TTLs. Secrets are passed
// in explicitly; nothing in this package reads process configuration.
type ServerConfig struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	Issuer             string
	CookieDomain       string
	AccessCookieName   string
	RefreshCookieName  string
	SameSiteMode       http.SameSite
	AllowInsecureHTTP  bool
}

// TokenConfig derives the codec configuration from the server configuration.
func (configuration ServerConfig) TokenConfig(clock Clock) TokenConfig {
	return TokenConfig{
		AccessSecret:  configuration.AccessTokenSecret,
		RefreshSecret: configuration.RefreshTokenSecret,
		AccessTTL:     configuration.AccessTokenTTL,
		RefreshTTL:    configuration.RefreshTokenTTL,
		Issuer:        configuration.Issuer,
		Clock:         clock,
	}
}
