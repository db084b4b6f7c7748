package auth

import (
	"context"
	"time"
)

// Session holds the material needed to complete one in-flight authorization
// handshake. It is created by GenerateAuthURL, persisted in the elicitation
// store keyed by the elicitation id, and consumed by FinishAuth. After a
// successful FinishAuth the session is terminal and removed from the store.
type Session struct {
	// ID is the elicitation id this session belongs to.
	ID string

	// Provider is the name of the provider driving the handshake.
	Provider string

	// PrincipalID is the identity the resulting credential is persisted for.
	PrincipalID string

	// Scopes are the scopes the authorization was requested for.
	Scopes []string

	// AuthURL is the provider authorization URL the end user is redirected to.
	AuthURL string

	// RedirectURI is the callback address embedded in AuthURL.
	RedirectURI string

	// State is the anti-replay correlation secret for this flow. The provider
	// must reject a callback whose state parameter does not match.
	State string

	// CreatedAt is when the session was minted. Used for expiry.
	CreatedAt time.Time
}

// Provider wraps one external OAuth identity system. Exactly one instance
// exists per provider name, owned by the ProviderRegistry, constructed once at
// process start without user interaction; all interactive steps are deferred
// to GenerateAuthURL and FinishAuth.
type Provider interface {
	// Name is the stable identity used as the registry key and as the routing
	// discriminator stored inside each elicitation.
	Name() string

	// GetAccessToken looks up persisted credential material for principalID
	// covering scopes. A valid, fresh credential is returned as-is. A stale
	// credential with a refresh secret is refreshed and persisted before
	// being returned. Anything else (no credential, expired without a refresh
	// secret, malformed) yields (nil, nil): absence is a normal outcome, not
	// an error. A failed refresh is reported as a *CredentialRefreshError.
	GetAccessToken(ctx context.Context, principalID string, scopes []string) (Token, error)

	// GenerateAuthURL builds the provider authorization URL for scopes,
	// wiring the callback to the given elicitation id. Safe to call multiple
	// times for the same id; each call mints a fresh state and only the most
	// recently stored session is honored for completion.
	GenerateAuthURL(ctx context.Context, scopes []string, elicitationID string) (*Session, error)

	// FinishAuth exchanges the authorization code embedded in callbackURI for
	// credentials, using session to reconstruct the flow context. It fails
	// with a *AuthorizationMismatchError when the embedded state does not
	// match session.State. On success the new credential material is
	// persisted for later GetAccessToken lookups.
	FinishAuth(ctx context.Context, session *Session, callbackURI string) error
}
