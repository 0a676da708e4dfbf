package app

import (
	"strings"

	"github.com/charlesng35/introhub/internal/auth"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// MagicLinkServiceConfig converts AuthConfig into MagicLinkService parameters.
func (c AuthConfig) MagicLinkServiceConfig() auth.MagicLinkConfig {
	ttl := c.MagicLink.TTL
	if ttl <= 0 {
		ttl = auth.DefaultMagicLinkTTL
	}

	length := c.MagicLink.TokenLength
	if length <= 0 {
		length = 32
	}

	return auth.MagicLinkConfig{
		TTL:         ttl,
		TokenLength: length,
	}
}

// SecretSealingKey returns the master key used to seal stored OAuth secrets.
func (c AuthConfig) SecretSealingKey() string {
	if key := strings.TrimSpace(c.SettingsKey); key != "" {
		return key
	}
	return strings.TrimSpace(c.JWT.Secret)
}
