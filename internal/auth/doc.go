// Package auth implements the authorization gate and the deferred, two-phase
// external-authorization protocol that gated tool calls route through.
//
// The protocol spans three independent request contexts with no shared call
// stack:
//
//  1. A tool call that cannot obtain a valid token blocks: the Gate mints an
//     unguessable elicitation id, records the blocked call in the
//     ElicitationStore's pending map, and the caller is told to visit the
//     connect endpoint for that id.
//  2. The connect endpoint resolves the pending entry, asks the Provider for
//     an authorization URL, stores the resulting Session, and redirects the
//     end user to the provider.
//  3. The provider redirects back to the callback endpoint, which resolves
//     the Session and completes the code exchange; the Provider persists the
//     new credential. A later retry of the original tool call then succeeds.
//
// The Gate itself never waits on the user and never drives a redirect; it
// only decides "token present or absent". Provider construction happens once
// at startup through the ProviderRegistry; the interactive steps live
// entirely in GenerateAuthURL and FinishAuth.
package auth
