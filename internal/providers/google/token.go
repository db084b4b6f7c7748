package google

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"toolgate/internal/auth"
)

// tokenExpiryBuffer is the margin within which a still-valid token is treated
// as stale and refreshed before use. It accounts for clock skew and for
// downstream API calls outliving the remaining token lifetime.
const tokenExpiryBuffer = 60 * time.Second

// Token wraps a Google-issued oauth2.Token and implements the credential
// predicates the authorization gate evaluates.
type Token struct {
	mu    sync.RWMutex
	creds *oauth2.Token
	conf  *oauth2.Config
}

func newToken(creds *oauth2.Token, conf *oauth2.Config) *Token {
	return &Token{creds: creds, conf: conf}
}

// IsValid reports whether an access token is present and not expired.
func (t *Token) IsValid() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.creds == nil || t.creds.AccessToken == "" {
		return false
	}
	if t.creds.Expiry.IsZero() {
		return true
	}
	return time.Now().Before(t.creds.Expiry)
}

// IsStale reports whether the token is valid but inside the expiry buffer.
func (t *Token) IsStale() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.creds == nil || t.creds.Expiry.IsZero() {
		return false
	}
	now := time.Now()
	return now.Before(t.creds.Expiry) && !now.Add(tokenExpiryBuffer).Before(t.creds.Expiry)
}

// CanRefresh reports whether a refresh secret is present.
func (t *Token) CanRefresh() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.creds != nil && t.creds.RefreshToken != ""
}

// Refresh exchanges the refresh secret for a new access credential, mutating
// the token in place. An invalid or revoked refresh secret yields a
// *auth.CredentialRefreshError; transient exchange failures are returned
// unwrapped so callers can retry them.
func (t *Token) Refresh(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Hand the token source only the refresh secret so the exchange is forced
	// even while the current access token is technically still alive.
	src := t.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: t.creds.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		if isRefreshSecretRejected(err) {
			return &auth.CredentialRefreshError{Provider: ProviderName, Err: err}
		}
		return err
	}

	// Google omits the refresh token from refresh responses; carry it over.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = t.creds.RefreshToken
	}
	t.creds = fresh
	return nil
}

// SetCreds replaces the internal credential material in place.
func (t *Token) SetCreds(creds *oauth2.Token) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.creds = creds
}

// Creds exposes the underlying credential for API client construction.
func (t *Token) Creds() *oauth2.Token {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.creds
}

// isRefreshSecretRejected distinguishes a dead refresh secret from transient
// exchange failures. The authorization server answers invalid_grant (or a
// 400/401) when the secret is expired or revoked; network errors and 5xx
// responses stay retryable.
func isRefreshSecretRejected(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return false
	}
	if retrieveErr.ErrorCode == "invalid_grant" || retrieveErr.ErrorCode == "unauthorized_client" {
		return true
	}
	if retrieveErr.Response != nil {
		code := retrieveErr.Response.StatusCode
		return code == http.StatusBadRequest || code == http.StatusUnauthorized
	}
	return false
}
