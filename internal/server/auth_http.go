package server

import (
	"fmt"
	"net/http"

	"toolgate/internal/auth"
	"toolgate/pkg/logging"
)

// AuthHandler serves the two HTTP endpoints of the deferred authorization
// protocol. The two handlers run in independent request contexts with no
// shared call stack; the elicitation store is the only thing correlating
// them. A callback arriving before its connect step has run fails cleanly
// with 404, it never crashes or races.
type AuthHandler struct {
	providers    *auth.ProviderRegistry
	elicitations *auth.ElicitationStore
	principalID  string
}

// NewAuthHandler creates the handler for the connect and callback endpoints.
func NewAuthHandler(providers *auth.ProviderRegistry, elicitations *auth.ElicitationStore, principalID string) *AuthHandler {
	return &AuthHandler{
		providers:    providers,
		elicitations: elicitations,
		principalID:  principalID,
	}
}

// RegisterRoutes mounts the authorization endpoints on mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/connect/{id}", h.handleConnect)
	mux.HandleFunc("GET /auth/callback/{id}", h.handleCallback)
}

// handleConnect turns a pending elicitation id into a provider redirect. The
// pending entry is read, not consumed: visiting the link again mints a fresh
// session and only the most recent one is honored for completion.
func (h *AuthHandler) handleConnect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	pending, err := h.elicitations.LookupPending(id)
	if err != nil {
		logging.Warn("AuthHTTP", "Connect request for unknown elicitation %s", id)
		http.Error(w, "Unknown or expired authorization request.", http.StatusNotFound)
		return
	}

	provider, err := h.providers.Get(pending.Provider)
	if err != nil {
		logging.Error("AuthHTTP", err, "Pending elicitation %s references unregistered provider %s", id, pending.Provider)
		http.Error(w, "Authorization request references an unknown provider.", http.StatusInternalServerError)
		return
	}

	session, err := provider.GenerateAuthURL(r.Context(), pending.Scopes, id)
	if err != nil {
		logging.Error("AuthHTTP", err, "Failed to generate authorization URL for elicitation %s", id)
		http.Error(w, "Failed to start the authorization flow.", http.StatusInternalServerError)
		return
	}
	session.PrincipalID = h.principalID
	h.elicitations.PutSession(session)

	logging.Info("AuthHTTP", "Redirecting elicitation %s to provider %s", id, pending.Provider)
	http.Redirect(w, r, session.AuthURL, http.StatusFound)
}

// handleCallback completes the handshake: it resolves the in-flight session,
// hands the full callback URI (code and state included) to the provider, and
// confirms to the end user. The id is terminal after success.
func (h *AuthHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	session, err := h.elicitations.LookupSession(id)
	if err != nil {
		logging.Warn("AuthHTTP", "Callback for unknown session %s", id)
		http.Error(w, "Unknown or expired authorization session.", http.StatusNotFound)
		return
	}

	provider, err := h.providers.Get(session.Provider)
	if err != nil {
		logging.Error("AuthHTTP", err, "Session %s references unregistered provider %s", id, session.Provider)
		http.Error(w, "Authorization session references an unknown provider.", http.StatusInternalServerError)
		return
	}

	if err := provider.FinishAuth(r.Context(), session, r.URL.RequestURI()); err != nil {
		if auth.IsAuthorizationMismatch(err) {
			logging.Warn("AuthHTTP", "Rejected callback for session %s: %v", id, err)
			http.Error(w, "Authorization callback could not be verified.", http.StatusBadRequest)
			return
		}
		logging.Error("AuthHTTP", err, "Failed to complete authorization for session %s", id)
		http.Error(w, "Failed to complete the authorization flow.", http.StatusBadGateway)
		return
	}

	h.elicitations.Complete(id)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "<html><body><h2>Authorization complete</h2>"+
		"<p>You can close this window and retry your request.</p></body></html>")
}
