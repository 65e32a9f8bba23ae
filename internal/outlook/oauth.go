package outlook

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Microsoft identity platform endpoints for the common (multi-tenant) tenant.
const (
	authURL  = "https://login.microsoftonline.com/common/oauth2/v2.0/authorize"
	tokenURL = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
)

// Scopes requested during consent. offline_access yields a refresh token.
var defaultScopes = []string{
	"offline_access",
	"https://graph.microsoft.com/Calendars.ReadWrite",
}

// NewOAuthConfig builds the oauth2 configuration for the Microsoft identity
// platform authorization-code flow.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       defaultScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}
}

// Refresh exchanges a refresh token for a fresh token pair. The identity
// platform may rotate the refresh token; callers must persist the returned
// values.
func Refresh(ctx context.Context, cfg *oauth2.Config, refreshToken string) (accessToken, newRefreshToken string, expiresAt time.Time, err error) {
	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("refresh token: %w", err)
	}
	newRefreshToken = token.RefreshToken
	if newRefreshToken == "" {
		newRefreshToken = refreshToken
	}
	return token.AccessToken, newRefreshToken, token.Expiry, nil
}
