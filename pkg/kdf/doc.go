// Package kdf implements the salted key derivation used by the Whatsminer
// API to turn the admin password into a session token and cipher key.
//
// # Handshake Inputs
//
// The device answers a get_token request with three strings:
//   - salt: salts the first MD5-crypt round over the admin password
//   - newsalt: salts the second round that produces the token
//   - time: a server time marker appended to the intermediate secret
//
// # Derivation
//
//	intermediate = field4(md5crypt(password, "$1$" + salt + "$"))
//	token        = field4(md5crypt(intermediate + time, "$1$" + newsalt + "$"))
//	key          = unhex(hex(sha256(intermediate)))
//
// field4 is the fourth "$"-separated field of the encoded MD5-crypt output,
// i.e. the 22 character hash. The device performs the same derivation, so
// any divergence shows up as a silent authentication failure rather than a
// decodable error.
package kdf
