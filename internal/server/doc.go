// Package server exposes the gateway over HTTP.
//
// One listener carries three surfaces: the MCP streamable-HTTP endpoint at
// /mcp where gated tools are invoked, the authorization endpoints
// /auth/connect/{id} and /auth/callback/{id} that drive the out-of-band
// handshake, and /healthz. The dispatch boundary lives here too: a blocked
// tool call surfaces to the MCP client as an error result naming the connect
// URL for its elicitation id.
package server
