// Package ecb implements the AES-256-ECB payload cipher of the Whatsminer
// API.
//
// Plaintext is padded with NUL bytes up to the next 16-byte boundary (no
// padding when already aligned). This is not PKCS#7, so decryption cannot
// validate padding; Trim cuts the plaintext at the first NUL byte and strips
// trailing whitespace instead. On the wire, ciphertext is base64 encoded.
package ecb
