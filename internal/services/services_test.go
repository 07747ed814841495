package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/spotx/internal/shared"
	th "github.com/desertthunder/spotx/internal/testing"
)

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !ok || id != "id" || secret != "secret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCredentialsVerifier(t *testing.T) {
	t.Run("Default Token URL", func(t *testing.T) {
		if v := NewCredentialsVerifier(""); v.tokenURL != DefaultTokenURL {
			t.Errorf("expected default token url, got %q", v.tokenURL)
		}
	})

	t.Run("Valid", func(t *testing.T) {
		srv := tokenServer(t)
		token, err := NewCredentialsVerifier(srv.URL).Verify(context.Background(), "id", "secret")
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if token.AccessToken != "tok" {
			t.Errorf("unexpected token %q", token.AccessToken)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		srv := tokenServer(t)
		_, err := NewCredentialsVerifier(srv.URL).Verify(context.Background(), "id", "wrong")
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := NewCredentialsVerifier("http://unused").Verify(context.Background(), "id", "")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Transport Error", func(t *testing.T) {
		client := &http.Client{Transport: th.NewMockRoundTripper(nil, errors.New("connection refused"))}
		_, err := NewCredentialsVerifier("http://token.invalid").WithHTTPClient(client).Verify(context.Background(), "id", "secret")
		if err == nil || errors.Is(err, shared.ErrInvalidCredentials) {
			t.Errorf("expected a transport error, got %v", err)
		}
	})
}
