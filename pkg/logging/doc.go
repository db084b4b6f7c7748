// Package logging provides a thin subsystem-tagged wrapper around log/slog.
//
// Every log call names the subsystem emitting it (Gate, Dispatcher, GoogleProvider,
// AuthHTTP, ...) so that a single text stream stays attributable. Credential
// material is never passed to this package; callers log provider names,
// principal ids and elicitation ids only.
package logging
