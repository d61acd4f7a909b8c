package config

import "time"

const (
	sessionSecretVar      = "SESSION_SECRET"
	magicLinkTTLVar       = "MAGIC_LINK_TTL"
	sessionMaxAgeVar      = "SESSION_MAX_AGE"
	maxConsoleSessionsVar = "MAX_CONSOLE_SESSIONS"
	superAdminEmailVar    = "SUPER_ADMIN_EMAIL"
)

type AuthConfig interface {
	GetSessionSecret() string
	GetMagicLinkTTL() time.Duration
	GetSessionMaxAge() time.Duration
	GetMaxConsoleSessions() int
	GetSuperAdminEmail() string
}

type Auth struct {
	src *source
}

var _ AuthConfig = Auth{}

// GetSessionSecret returns the HMAC secret for session tokens. Empty means unset;
// the server refuses to start outside DEV without one.
func (a Auth) GetSessionSecret() string {
	return a.src.get(sessionSecretVar, "")
}

func (a Auth) GetMagicLinkTTL() time.Duration {
	return a.src.getDuration(magicLinkTTLVar, 15*time.Minute)
}

func (a Auth) GetSessionMaxAge() time.Duration {
	return a.src.getDuration(sessionMaxAgeVar, 8*time.Hour)
}

func (a Auth) GetMaxConsoleSessions() int {
	return a.src.getInt(maxConsoleSessionsVar, 1024)
}

func (a Auth) GetSuperAdminEmail() string {
	return a.src.get(superAdminEmailVar, "")
}
