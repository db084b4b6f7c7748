package server

import (
	"context"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"toolgate/internal/auth"
	"toolgate/internal/dispatcher"
)

type stubToken struct {
	creds *oauth2.Token
}

func (t *stubToken) IsValid() bool                 { return true }
func (t *stubToken) IsStale() bool                 { return false }
func (t *stubToken) CanRefresh() bool              { return false }
func (t *stubToken) Refresh(context.Context) error { return nil }
func (t *stubToken) SetCreds(c *oauth2.Token)      { t.creds = c }
func (t *stubToken) Creds() *oauth2.Token          { return t.creds }

func newToolTestDispatcher(t *testing.T, provider *stubProvider) (*dispatcher.Dispatcher, *auth.ElicitationStore) {
	t.Helper()

	registry, err := auth.NewProviderRegistry(provider)
	require.NoError(t, err)
	elicitations := auth.NewElicitationStore(auth.ElicitationStoreConfig{})
	gate := auth.NewGate(registry, elicitations, "local")
	return dispatcher.New(gate), elicitations
}

func callToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func TestCreateServerTools(t *testing.T) {
	provider := &stubProvider{name: "stub"}
	d, _ := newToolTestDispatcher(t, provider)

	require.NoError(t, d.Register(dispatcher.Method{
		Name:        "echo",
		Description: "Echoes its input.",
		Args: []dispatcher.ArgMetadata{
			{Name: "text", Type: "string", Required: true, Description: "Text to echo"},
			{Name: "repeat", Type: "integer", Description: "Repetitions", Default: 1},
		},
		Handler: func(_ context.Context, _ auth.Token, _ map[string]interface{}) (*dispatcher.Result, error) {
			return &dispatcher.Result{Content: []interface{}{"ok"}}, nil
		},
	}))

	tools := createServerTools(d, "http://localhost:8090")
	require.Len(t, tools, 1)

	tool := tools[0].Tool
	assert.Equal(t, "echo", tool.Name)
	assert.Equal(t, "object", tool.InputSchema.Type)
	assert.Equal(t, []string{"text"}, tool.InputSchema.Required)

	repeat, ok := tool.InputSchema.Properties["repeat"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "integer", repeat["type"])
	assert.Equal(t, 1, repeat["default"])
}

func TestToolHandler_BlockedCallAdvertisesConnectURL(t *testing.T) {
	provider := &stubProvider{name: "stub"}
	d, elicitations := newToolTestDispatcher(t, provider)

	require.NoError(t, d.Register(dispatcher.Method{
		Name:     "gated",
		Provider: "stub",
		Scopes:   []string{"scope-a"},
		Handler: func(_ context.Context, _ auth.Token, _ map[string]interface{}) (*dispatcher.Result, error) {
			t.Fatal("handler must not run for a blocked call")
			return nil, nil
		},
	}))

	handler := createToolHandler(d, "gated", "http://localhost:8090")
	result, err := handler(context.Background(), callToolRequest("gated", nil))
	require.NoError(t, err, "a blocked call is a tool result, not a transport error")
	require.True(t, result.IsError)

	text := textOf(t, result)
	assert.Contains(t, text, "http://localhost:8090/auth/connect/")

	// The advertised id must be resolvable by the connect endpoint.
	pending, sessions := elicitations.Len()
	assert.Equal(t, 1, pending)
	assert.Zero(t, sessions)
}

func TestToolHandler_AuthorizedCall(t *testing.T) {
	provider := &stubProvider{
		name:     "stub",
		finished: true,
		token:    &stubToken{creds: &oauth2.Token{AccessToken: "access"}},
	}
	d, _ := newToolTestDispatcher(t, provider)

	var seen map[string]interface{}
	require.NoError(t, d.Register(dispatcher.Method{
		Name:     "gated",
		Provider: "stub",
		Scopes:   []string{"scope-a"},
		Handler: func(_ context.Context, token auth.Token, args map[string]interface{}) (*dispatcher.Result, error) {
			seen = args
			return &dispatcher.Result{Content: []interface{}{"used " + token.Creds().AccessToken}}, nil
		},
	}))

	handler := createToolHandler(d, "gated", "http://localhost:8090")
	result, err := handler(context.Background(), callToolRequest("gated", map[string]interface{}{"k": "v"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "used access", textOf(t, result))
	assert.Equal(t, map[string]interface{}{"k": "v"}, seen)
}

func TestToolHandler_HandlerFailureIsToolError(t *testing.T) {
	provider := &stubProvider{
		name:     "stub",
		finished: true,
		token:    &stubToken{creds: &oauth2.Token{AccessToken: "access"}},
	}
	d, _ := newToolTestDispatcher(t, provider)

	require.NoError(t, d.Register(dispatcher.Method{
		Name:     "failing",
		Provider: "stub",
		Scopes:   []string{"scope-a"},
		Handler: func(_ context.Context, _ auth.Token, _ map[string]interface{}) (*dispatcher.Result, error) {
			return nil, fmt.Errorf("upstream exploded")
		},
	}))

	handler := createToolHandler(d, "failing", "http://localhost:8090")
	result, err := handler(context.Background(), callToolRequest("failing", nil))
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "upstream exploded")
}

func TestConvertToMCPResult(t *testing.T) {
	result := convertToMCPResult(&dispatcher.Result{
		Content: []interface{}{
			"plain text",
			map[string]string{"id": "cal-1"},
		},
	})

	require.Len(t, result.Content, 2)
	assert.Equal(t, "plain text", result.Content[0].(mcp.TextContent).Text)
	assert.JSONEq(t, `{"id":"cal-1"}`, result.Content[1].(mcp.TextContent).Text)
}
