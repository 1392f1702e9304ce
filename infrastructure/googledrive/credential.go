package googledrive

import (
	"time"

	"golang.org/x/oauth2"
)

// Credential carries per-request OAuth tokens for private folders. It is
// passed explicitly on every call that needs it; the client never caches
// user tokens. A nil Credential means the configured API key is used.
type Credential struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Token converts to the oauth2 token the Drive service consumes.
func (c *Credential) Token() *oauth2.Token {
	if c == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
		TokenType:    "Bearer",
	}
}
