package auth

import (
	"errors"
	"fmt"
)

// AuthorizationRequiredError signals that a tool call cannot proceed until the
// user completes an authorization flow. It is a protocol signal rather than a
// failure: the dispatch boundary translates it into a user-facing prompt that
// points at the connect endpoint for the carried elicitation id, and the
// original call is re-issued by the caller once authorization completes.
type AuthorizationRequiredError struct {
	// ElicitationID is the correlation id minted for this blocked call.
	ElicitationID string

	// Provider is the name of the provider that must be authorized.
	Provider string
}

func (e *AuthorizationRequiredError) Error() string {
	return fmt.Sprintf("authorization required for provider %s (elicitation %s)", e.Provider, e.ElicitationID)
}

// IsAuthorizationRequired checks if an error is an AuthorizationRequiredError
// using error unwrapping.
func IsAuthorizationRequired(err error) bool {
	var target *AuthorizationRequiredError
	return errors.As(err, &target)
}

// ProviderNotFoundError indicates a lookup for an unregistered provider name.
// This is a configuration error: provider names are fixed at startup.
type ProviderNotFoundError struct {
	Name string
}

func (e *ProviderNotFoundError) Error() string {
	return fmt.Sprintf("provider %s not found", e.Name)
}

// IsProviderNotFound checks if an error is a ProviderNotFoundError.
func IsProviderNotFound(err error) bool {
	var target *ProviderNotFoundError
	return errors.As(err, &target)
}

// UnknownElicitationError indicates a connect request with a correlation id
// that was never issued, has expired, or is otherwise not pending.
type UnknownElicitationError struct {
	ID string
}

func (e *UnknownElicitationError) Error() string {
	return fmt.Sprintf("unknown elicitation id %s", e.ID)
}

// IsUnknownElicitation checks if an error is an UnknownElicitationError.
func IsUnknownElicitation(err error) bool {
	var target *UnknownElicitationError
	return errors.As(err, &target)
}

// UnknownSessionError indicates a callback for a correlation id with no
// in-flight authorization session. This covers callbacks arriving before the
// connect step has run, after the session expired, and forged ids.
type UnknownSessionError struct {
	ID string
}

func (e *UnknownSessionError) Error() string {
	return fmt.Sprintf("no authorization session for id %s", e.ID)
}

// IsUnknownSession checks if an error is an UnknownSessionError.
func IsUnknownSession(err error) bool {
	var target *UnknownSessionError
	return errors.As(err, &target)
}

// AuthorizationMismatchError indicates that a callback could not be matched to
// its session: the state parameter differs from the one issued for the flow,
// or the callback is missing required material. Such callbacks must be
// rejected without touching stored credentials.
type AuthorizationMismatchError struct {
	Reason string
}

func (e *AuthorizationMismatchError) Error() string {
	return fmt.Sprintf("authorization callback rejected: %s", e.Reason)
}

// IsAuthorizationMismatch checks if an error is an AuthorizationMismatchError.
func IsAuthorizationMismatch(err error) bool {
	var target *AuthorizationMismatchError
	return errors.As(err, &target)
}

// CredentialRefreshError indicates that refreshing a stored credential failed
// because the refresh secret is invalid or revoked. Callers treat the
// credential as absent and fall back to the full authorization flow; this
// error must never surface as a crash.
type CredentialRefreshError struct {
	Provider string
	Err      error
}

func (e *CredentialRefreshError) Error() string {
	return fmt.Sprintf("credential refresh failed for provider %s: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying refresh error for error chain inspection.
func (e *CredentialRefreshError) Unwrap() error {
	return e.Err
}

// IsCredentialRefresh checks if an error is a CredentialRefreshError.
func IsCredentialRefresh(err error) bool {
	var target *CredentialRefreshError
	return errors.As(err, &target)
}
