package auth

import "time"

// Config drives bearer-token issuance and validation.
type Config struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Claims are extracted from a validated bearer token. Subject identifies the caller
// (for example a client or service name); Role gates which surface the token may be
// used against.
type Claims struct {
	Subject   string
	Role      string
	TokenType string
	ExpiresAt time.Time
}

const (
	RoleAPI = "api"

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)
