package auth

import (
	"context"

	"golang.org/x/oauth2"
)

// Token represents a provider-issued credential with validity, staleness and
// refresh semantics. Implementations wrap the provider-specific credential
// material; the rest of the system only ever inspects the predicates below.
//
// A Token handed to a tool handler always satisfies IsValid and not IsStale:
// the provider refreshes and persists stale-but-refreshable credentials before
// returning them, and reports stale unrefreshable credentials as absent.
type Token interface {
	// IsValid reports whether the credential is in a usable state.
	IsValid() bool

	// IsStale reports whether the credential is usable but near or at expiry
	// and should be refreshed before use.
	IsStale() bool

	// CanRefresh reports whether a refresh secret is present.
	CanRefresh() bool

	// Refresh exchanges the refresh secret for a new access credential,
	// mutating the token in place. It fails with a *CredentialRefreshError
	// when the refresh secret is invalid or revoked.
	Refresh(ctx context.Context) error

	// SetCreds replaces the internal credential material in place. Used after
	// a refresh or after loading new credentials post-callback.
	SetCreds(creds *oauth2.Token)

	// Creds exposes the underlying credential for API client construction.
	Creds() *oauth2.Token
}
