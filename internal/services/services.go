package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/spotx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenURL is the Spotify accounts token endpoint.
const DefaultTokenURL = "https://accounts.spotify.com/api/token"

// CredentialsVerifier requests client-credentials tokens from a Spotify compatible token endpoint.
type CredentialsVerifier struct {
	tokenURL   string
	httpClient *http.Client
}

// NewCredentialsVerifier creates a verifier for tokenURL; an empty url selects [DefaultTokenURL].
func NewCredentialsVerifier(tokenURL string) *CredentialsVerifier {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &CredentialsVerifier{
		tokenURL:   tokenURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithHTTPClient replaces the HTTP client used for token requests.
func (v *CredentialsVerifier) WithHTTPClient(c *http.Client) *CredentialsVerifier {
	v.httpClient = c
	return v
}

// Verify exchanges the client id and secret for an access token.
func (v *CredentialsVerifier) Verify(ctx context.Context, clientID, clientSecret string) (*oauth2.Token, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: client id and secret are required", shared.ErrMissingCredentials)
	}

	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     v.tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, v.httpClient)
	token, err := cfg.Token(ctx)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return nil, fmt.Errorf("%w: token endpoint returned %s", shared.ErrInvalidCredentials, rerr.Response.Status)
		}
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	if !token.Valid() {
		return nil, fmt.Errorf("%w: token endpoint returned no access token", shared.ErrInvalidCredentials)
	}
	return token, nil
}
