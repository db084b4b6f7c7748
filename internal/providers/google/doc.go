// Package google implements the Google OAuth 2.0 provider.
//
// Credentials are brokered on behalf of a single configured principal: the
// provider persists grants (token material plus the principal and scope set
// they were issued for) on disk, refreshes stale access tokens against the
// Google token endpoint, and drives the authorization-code handshake for the
// connect/callback endpoints. PKCE and JWT validation are left to the
// golang.org/x/oauth2 stack and the provider's own endpoints.
package google
