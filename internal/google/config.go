package google

import (
	"golang.org/x/oauth2"
	oauth2google "golang.org/x/oauth2/google"
)

// DefaultScopes are the Google OAuth scopes workgate requests on login. They
// cover the four wrapped services plus the userinfo endpoint used to resolve
// the caller's email during the callback.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/drive.readonly",
	"https://www.googleapis.com/auth/forms.body",
	"https://www.googleapis.com/auth/forms.responses.readonly",
	"https://www.googleapis.com/auth/userinfo.email",
}

// ClientConfig holds the Google OAuth client registration. It is constructed
// once at startup and injected into the components that need it; all fields
// are read-only after initialization, so unsynchronized concurrent reads are
// safe.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint overrides the Google endpoints when non-zero. Tests point
	// it at a local server.
	Endpoint oauth2.Endpoint
}

// OAuth2 returns the x/oauth2 configuration for this client registration.
func (c *ClientConfig) OAuth2() *oauth2.Config {
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	endpoint := c.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = oauth2google.Endpoint
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
}

// Configured reports whether a usable client registration is present.
func (c *ClientConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}
