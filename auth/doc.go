// Package auth authenticates callers of the workerhealthd HTTP endpoints.
//
// Two credential kinds are accepted: API keys presented in the X-API-Key
// header (stored as SHA-256 hashes) and HS256 bearer tokens. Require wraps
// a handler so that only authenticated requests reach it.
package auth
