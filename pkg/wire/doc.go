// Package wire defines the JSON wire format of the Whatsminer API.
//
// Every exchange is a single JSON object written to a fresh TCP connection,
// answered by at most one newline-terminated JSON object.
//
// # Requests
//
// Plain commands carry their parameters followed by the command name:
//
//	{"percent":"50","cmd":"set_power_pct"}
//
// Encrypted commands add the session token, are encrypted with the session
// key and wrapped in an envelope:
//
//	{"enc":1,"data":"<base64 ciphertext>"}
//
// # Replies
//
// Replies carry a status marker, either directly ("STATUS":"S" or "E") or,
// for cgminer style commands such as summary, as the first element of a
// STATUS list. Failures add an integer Code and usually a Msg. Replies to
// encrypted commands arrive as {"enc":"<base64 ciphertext>"} unless the
// device rejected the envelope itself, in which case the status object is
// sent unencrypted.
//
// # Errors
//
// Classify maps a decoded reply to either its payload or a *Error whose
// Kind identifies how callers should react.
package wire
