package auth

import (
	"context"

	"github.com/google/uuid"

	"toolgate/pkg/logging"
)

// Decision is the outcome of one gate evaluation. Exactly one of Token and
// ElicitationID is set: either a usable credential was resolved, or a fresh
// elicitation was minted and the call must be re-issued after the user
// authorizes. The "needs authorization" outcome is deliberately not modeled
// as an error here; the dispatch boundary decides how to surface it.
type Decision struct {
	// Token is the resolved credential when the call is authorized.
	Token Token

	// ElicitationID is the correlation id of the pending authorization when
	// the call is blocked.
	ElicitationID string
}

// Authorized reports whether the gated call may proceed.
func (d Decision) Authorized() bool {
	return d.Token != nil
}

// Gate is the decision point in front of every scoped tool call. It is
// stateless across the two protocol phases: it never blocks waiting for the
// user, holds no timers, and registers no callbacks. Resumption is
// caller-driven; the client re-invokes the original tool call once the
// authorization flow completed out-of-band.
type Gate struct {
	providers    *ProviderRegistry
	elicitations *ElicitationStore
	principalID  string
}

// NewGate creates a gate resolving credentials for the given principal.
func NewGate(providers *ProviderRegistry, elicitations *ElicitationStore, principalID string) *Gate {
	return &Gate{
		providers:    providers,
		elicitations: elicitations,
		principalID:  principalID,
	}
}

// Check evaluates one tool call against providerName and scopes.
//
// A valid token yields an authorized Decision carrying it. An absent token,
// and equally a token whose refresh secret turned out to be invalid or
// revoked, mints a fresh unguessable elicitation id, records the blocked call
// in the elicitation store, and yields a blocked Decision carrying the id.
// Only configuration errors (unknown provider) and unexpected provider
// failures are returned as errors.
func (g *Gate) Check(ctx context.Context, providerName string, scopes []string) (Decision, error) {
	provider, err := g.providers.Get(providerName)
	if err != nil {
		return Decision{}, err
	}

	token, err := provider.GetAccessToken(ctx, g.principalID, scopes)
	if err != nil {
		if !IsCredentialRefresh(err) {
			return Decision{}, err
		}
		// Refresh secret invalid or revoked: fall back to re-authorization.
		logging.Warn("Gate", "Credential refresh failed for provider %s, falling back to authorization flow: %v", providerName, err)
		token = nil
	}

	if token != nil {
		return Decision{Token: token}, nil
	}

	elicitationID := uuid.NewString()
	g.elicitations.AddPending(elicitationID, provider.Name(), scopes)
	logging.Info("Gate", "No usable credential for provider %s, minted elicitation %s", providerName, elicitationID)

	return Decision{ElicitationID: elicitationID}, nil
}

// PrincipalID returns the principal this gate resolves credentials for.
func (g *Gate) PrincipalID() string {
	return g.principalID
}
