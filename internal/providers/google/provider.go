package google

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	oauth2google "golang.org/x/oauth2/google"

	"toolgate/internal/auth"
	"toolgate/pkg/logging"
)

// ProviderName is the registry key and elicitation routing discriminator for
// the Google provider.
const ProviderName = "google"

// Config configures the Google provider.
type Config struct {
	// CredentialsFile is the path to the OAuth client credentials JSON
	// downloaded from the Google Cloud console.
	CredentialsFile string

	// ClientID and ClientSecret can be set directly instead of
	// CredentialsFile. Used in tests and in environments where credentials
	// come from a secret manager rather than a file.
	ClientID     string
	ClientSecret string

	// Endpoint overrides the Google OAuth endpoints. Leave zero in
	// production; tests point it at a local token server.
	Endpoint oauth2.Endpoint

	// BaseURL is the externally reachable origin of this process, used to
	// build callback redirect URIs (host:port or reverse-proxy origin).
	BaseURL string

	// Store persists grants. Required.
	Store *GrantStore
}

// Provider brokers Google OAuth 2.0 credentials for gated tool calls. It
// satisfies auth.Provider. Construction performs no user interaction and no
// network calls; the interactive handshake lives in GenerateAuthURL and
// FinishAuth.
type Provider struct {
	conf    *oauth2.Config // scope-less template, copied per request
	baseURL string
	store   *GrantStore

	// refreshMu serializes refresh-and-persist per principal so concurrent
	// gated calls cannot trigger duplicate refreshes of the same credential.
	refreshMu sync.Mutex
}

// New creates the Google provider from cfg.
func New(cfg Config) (*Provider, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("google provider requires a grant store")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("google provider requires a base URL for callback redirects")
	}

	var conf *oauth2.Config
	switch {
	case cfg.CredentialsFile != "":
		// #nosec G304 -- path comes from operator configuration
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read Google credentials file: %w", err)
		}
		conf, err = oauth2google.ConfigFromJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Google credentials file: %w", err)
		}
	case cfg.ClientID != "":
		conf = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2google.Endpoint,
		}
	default:
		return nil, fmt.Errorf("google provider requires either a credentials file or a client id")
	}

	if cfg.Endpoint.TokenURL != "" {
		conf.Endpoint = cfg.Endpoint
	}

	return &Provider{
		conf:    conf,
		baseURL: cfg.BaseURL,
		store:   cfg.Store,
	}, nil
}

// Name returns the stable provider identity.
func (p *Provider) Name() string {
	return ProviderName
}

// GetAccessToken resolves a usable credential for principalID covering
// scopes, or reports absence. A stale or expired grant with a refresh secret
// is refreshed and persisted before being returned; no caller ever observes a
// refreshed-but-unpersisted token. Absence of a grant is a normal outcome and
// never an error.
func (p *Provider) GetAccessToken(ctx context.Context, principalID string, scopes []string) (auth.Token, error) {
	grant := p.store.Lookup(principalID, scopes)
	if grant == nil {
		return nil, nil
	}

	token := newToken(grant.ToOAuth2Token(), p.flowConfig(grant.Scopes, ""))

	if token.IsValid() && !token.IsStale() {
		return token, nil
	}

	if !token.CanRefresh() {
		// Stale or expired with no refresh secret: absent.
		return nil, nil
	}

	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	// Another call may have refreshed and persisted while we waited.
	if latest := p.store.Lookup(principalID, scopes); latest != nil {
		token.SetCreds(latest.ToOAuth2Token())
		if token.IsValid() && !token.IsStale() {
			return token, nil
		}
	}

	if err := token.Refresh(ctx); err != nil {
		return nil, err
	}

	if err := p.persist(principalID, grant.Scopes, token.Creds()); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed credential: %w", err)
	}

	logging.Info("GoogleProvider", "Refreshed credential for principal %s", principalID)
	return token, nil
}

// GenerateAuthURL builds the Google authorization URL for scopes, with the
// callback wired to elicitationID. Each call mints a fresh state secret.
func (p *Provider) GenerateAuthURL(ctx context.Context, scopes []string, elicitationID string) (*auth.Session, error) {
	state, err := randomState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	redirectURI := p.baseURL + "/auth/callback/" + elicitationID
	conf := p.flowConfig(scopes, redirectURI)

	// offline access so Google issues a refresh secret; prompt=consent forces
	// one even when the user authorized before.
	authURL := conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)

	return &auth.Session{
		ID:          elicitationID,
		Provider:    ProviderName,
		Scopes:      append([]string(nil), scopes...),
		AuthURL:     authURL,
		RedirectURI: redirectURI,
		State:       state,
		CreatedAt:   time.Now(),
	}, nil
}

// FinishAuth completes the handshake for session using the full callback URI.
// The embedded state must match the session's state; mismatches and missing
// parameters are rejected without any credential mutation.
func (p *Provider) FinishAuth(ctx context.Context, session *auth.Session, callbackURI string) error {
	parsed, err := url.Parse(callbackURI)
	if err != nil {
		return &auth.AuthorizationMismatchError{Reason: fmt.Sprintf("malformed callback URI: %v", err)}
	}
	query := parsed.Query()

	if errCode := query.Get("error"); errCode != "" {
		return fmt.Errorf("authorization was declined by the provider: %s", errCode)
	}

	state := query.Get("state")
	if state == "" {
		return &auth.AuthorizationMismatchError{Reason: "missing state parameter"}
	}
	if subtle.ConstantTimeCompare([]byte(state), []byte(session.State)) != 1 {
		return &auth.AuthorizationMismatchError{Reason: "state parameter does not match authorization session"}
	}

	code := query.Get("code")
	if code == "" {
		return &auth.AuthorizationMismatchError{Reason: "missing authorization code"}
	}

	conf := p.flowConfig(session.Scopes, session.RedirectURI)
	creds, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("code exchange failed: %w", err)
	}

	if err := p.persist(session.PrincipalID, session.Scopes, creds); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}

	logging.Info("GoogleProvider", "Completed authorization for elicitation %s (%d scopes)", session.ID, len(session.Scopes))
	return nil
}

// persist stores creds as the grant for principal and scopes.
func (p *Provider) persist(principal string, scopes []string, creds *oauth2.Token) error {
	return p.store.Put(&StoredGrant{
		Principal:    principal,
		Scopes:       append([]string(nil), scopes...),
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    creds.TokenType,
		Expiry:       creds.Expiry,
	})
}

// flowConfig returns a per-request copy of the client configuration with the
// given scopes and redirect URI. The template itself is never mutated.
func (p *Provider) flowConfig(scopes []string, redirectURI string) *oauth2.Config {
	conf := *p.conf
	conf.Scopes = append([]string(nil), scopes...)
	conf.RedirectURL = redirectURI
	return &conf
}

// randomState returns an unguessable anti-replay state value.
func randomState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
