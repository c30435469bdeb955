// Package client implements the request/reply engine of the miner API.
//
// A Client talks to one Machine. Read commands travel as plain JSON.
// Write commands carry the session token and travel AES-256-ECB encrypted
// inside an {"enc":1,"data":...} envelope; their replies come back as
// {"enc":...} and are decrypted before classification.
//
// Every reply is classified: a payload map on success, a *wire.Error
// otherwise. Token rejections drop the cached session so the next write
// performs a new handshake. The engine never retries.
package client
