// Package integration provides the shared HTTP access layer for every
// service adapter: typed instance configuration, a closed error taxonomy,
// request execution with auth-header injection, cached session credentials
// with single-flight login, and concurrent fan-out for multi-endpoint polls.
//
// Each supported service (Jellyfin, qBittorrent, Glances, ...) lives in its
// own package and builds on either Client (stateless auth such as API keys)
// or SessionClient (cookie or bearer-token sessions acquired via login).
//
// # Error Handling
//
// Every failure surfaced by this package is a *ClassifiedError carrying one
// of five codes:
//
//   - CodeConfigInvalid: bad instance configuration, never retried
//   - CodeAuthFailed: credentials rejected, retried once after a fresh login
//   - CodeUnreachable: connection refused, DNS failure, 5xx
//   - CodeNetwork: timeouts and other transient transport errors
//   - CodeUnknown: everything else, surfaced with full context
//
// Call sites that aggregate many instances use Client.Execute, which never
// returns an error and instead reports the outcome in a ProxyResult.
package integration
