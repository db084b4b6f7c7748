package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeToken satisfies Token for gate tests.
type fakeToken struct {
	creds *oauth2.Token
}

func (t *fakeToken) IsValid() bool                     { return true }
func (t *fakeToken) IsStale() bool                     { return false }
func (t *fakeToken) CanRefresh() bool                  { return false }
func (t *fakeToken) Refresh(ctx context.Context) error { return nil }
func (t *fakeToken) SetCreds(creds *oauth2.Token)      { t.creds = creds }
func (t *fakeToken) Creds() *oauth2.Token              { return t.creds }

// fakeProvider satisfies Provider with scripted GetAccessToken behavior.
type fakeProvider struct {
	name string

	token    Token
	tokenErr error

	getAccessTokenCalls int
	lastScopes          []string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) GetAccessToken(ctx context.Context, principalID string, scopes []string) (Token, error) {
	p.getAccessTokenCalls++
	p.lastScopes = scopes
	return p.token, p.tokenErr
}

func (p *fakeProvider) GenerateAuthURL(ctx context.Context, scopes []string, elicitationID string) (*Session, error) {
	return &Session{
		ID:       elicitationID,
		Provider: p.name,
		Scopes:   scopes,
		AuthURL:  "https://provider.example/authorize?elicitation_id=" + elicitationID,
		State:    "state-" + elicitationID,
	}, nil
}

func (p *fakeProvider) FinishAuth(ctx context.Context, session *Session, callbackURI string) error {
	return nil
}

func newTestGate(t *testing.T, provider Provider) (*Gate, *ElicitationStore) {
	t.Helper()

	registry, err := NewProviderRegistry(provider)
	require.NoError(t, err)

	store := NewElicitationStore(ElicitationStoreConfig{})
	return NewGate(registry, store, "local"), store
}

func TestGate_Check_Authorized(t *testing.T) {
	provider := &fakeProvider{name: "google", token: &fakeToken{creds: &oauth2.Token{AccessToken: "tok"}}}
	gate, store := newTestGate(t, provider)

	decision, err := gate.Check(context.Background(), "google", []string{"scope-a"})
	require.NoError(t, err)

	assert.True(t, decision.Authorized())
	assert.NotNil(t, decision.Token)
	assert.Empty(t, decision.ElicitationID)
	assert.Equal(t, []string{"scope-a"}, provider.lastScopes)

	pending, sessions := store.Len()
	assert.Zero(t, pending, "authorized call must not mint an elicitation")
	assert.Zero(t, sessions)
}

func TestGate_Check_TokenAbsent_MintsElicitation(t *testing.T) {
	provider := &fakeProvider{name: "google"}
	gate, store := newTestGate(t, provider)

	decision, err := gate.Check(context.Background(), "google", []string{"scope-a", "scope-b"})
	require.NoError(t, err)

	assert.False(t, decision.Authorized())
	assert.NotEmpty(t, decision.ElicitationID)

	pending, err := store.LookupPending(decision.ElicitationID)
	require.NoError(t, err)
	assert.Equal(t, "google", pending.Provider)
	assert.Equal(t, []string{"scope-a", "scope-b"}, pending.Scopes)
}

func TestGate_Check_EveryBlockedCallMintsFreshID(t *testing.T) {
	provider := &fakeProvider{name: "google"}
	gate, _ := newTestGate(t, provider)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		decision, err := gate.Check(context.Background(), "google", []string{"scope-a"})
		require.NoError(t, err)
		require.False(t, decision.Authorized())
		assert.False(t, seen[decision.ElicitationID], "elicitation ids must not repeat")
		seen[decision.ElicitationID] = true
	}
}

func TestGate_Check_RefreshFailureFallsBackToElicitation(t *testing.T) {
	provider := &fakeProvider{
		name:     "google",
		tokenErr: &CredentialRefreshError{Provider: "google", Err: errors.New("invalid_grant")},
	}
	gate, store := newTestGate(t, provider)

	decision, err := gate.Check(context.Background(), "google", []string{"scope-a"})
	require.NoError(t, err, "a dead refresh secret must not surface as a crash")

	assert.False(t, decision.Authorized())
	_, lookupErr := store.LookupPending(decision.ElicitationID)
	assert.NoError(t, lookupErr)
}

func TestGate_Check_UnexpectedProviderErrorPropagates(t *testing.T) {
	provider := &fakeProvider{name: "google", tokenErr: errors.New("token endpoint unreachable")}
	gate, _ := newTestGate(t, provider)

	_, err := gate.Check(context.Background(), "google", []string{"scope-a"})
	require.Error(t, err)
	assert.False(t, IsCredentialRefresh(err))
}

func TestGate_Check_UnknownProvider(t *testing.T) {
	provider := &fakeProvider{name: "google"}
	gate, _ := newTestGate(t, provider)

	_, err := gate.Check(context.Background(), "github", nil)
	require.Error(t, err)
	assert.True(t, IsProviderNotFound(err))
}
