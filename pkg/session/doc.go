// Package session manages the admin token of one device.
//
// Encrypted commands carry a token and are encrypted with a key, both
// derived from the admin password and the salts returned by get_token.
// A Session caches the pair for FreshnessWindow and performs the handshake
// again when the cache is empty or stale. Concurrent callers share one
// handshake.
package session
