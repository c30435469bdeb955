package wire

import (
	"errors"
	"fmt"
)

// Kind classifies a failed exchange.
type Kind uint8

const (
	// KindProtocol is a failure status with an unrecognized code.
	KindProtocol Kind = iota

	// KindDeviceUnreachable indicates the device refused or could not be
	// reached.
	KindDeviceUnreachable

	// KindTransport indicates an I/O failure after the connection was
	// established (including exchange timeouts).
	KindTransport

	// KindMalformedResponse indicates an unparseable reply, a reply without
	// status marker, or a payload missing an expected key.
	KindMalformedResponse

	// KindInvalidCommand is code 14.
	KindInvalidCommand

	// KindInvalidMessage is code 23 on a plain exchange.
	KindInvalidMessage

	// KindInvalidAuth is code 23 on an encrypted exchange.
	KindInvalidAuth

	// KindPermissionDenied is code 45.
	KindPermissionDenied

	// KindCommandError is code 132.
	KindCommandError

	// KindTokenError is code 135.
	KindTokenError

	// KindTokenExceeded is code 136.
	KindTokenExceeded

	// KindDecodeError is code 137.
	KindDecodeError

	// KindTokenAcquisition indicates a failed token handshake.
	KindTokenAcquisition
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "PROTOCOL_ERROR"
	case KindDeviceUnreachable:
		return "DEVICE_UNREACHABLE"
	case KindTransport:
		return "TRANSPORT_ERROR"
	case KindMalformedResponse:
		return "MALFORMED_RESPONSE"
	case KindInvalidCommand:
		return "INVALID_COMMAND"
	case KindInvalidMessage:
		return "INVALID_MESSAGE"
	case KindInvalidAuth:
		return "INVALID_AUTH"
	case KindPermissionDenied:
		return "PERMISSION_DENIED"
	case KindCommandError:
		return "COMMAND_ERROR"
	case KindTokenError:
		return "TOKEN_ERROR"
	case KindTokenExceeded:
		return "TOKEN_EXCEEDED"
	case KindDecodeError:
		return "DECODE_ERROR"
	case KindTokenAcquisition:
		return "TOKEN_ACQUISITION"
	default:
		return "UNKNOWN"
	}
}

// NeedsReauth reports whether the error means the session or the admin
// password was rejected.
func (k Kind) NeedsReauth() bool {
	switch k {
	case KindInvalidAuth, KindTokenError, KindDecodeError:
		return true
	default:
		return false
	}
}

// Transient reports whether a later attempt may succeed without any change
// on the caller's side.
func (k Kind) Transient() bool {
	switch k {
	case KindDeviceUnreachable, KindTransport, KindTokenExceeded:
		return true
	default:
		return false
	}
}

// invalidatesSession reports whether the session token that produced the
// error must be discarded.
func (k Kind) invalidatesSession() bool {
	switch k {
	case KindTokenError, KindDecodeError, KindInvalidAuth:
		return true
	default:
		return false
	}
}

// InvalidatesSession reports whether err must discard the cached session.
func InvalidatesSession(err error) bool {
	var e *Error
	for errors.As(err, &e) {
		if e.Kind.invalidatesSession() {
			return true
		}
		err = e.Err
	}
	return false
}

// Error is a classified exchange failure.
type Error struct {
	Kind Kind

	// Code is the device reply code (0 when the failure has none).
	Code Code

	// Msg is the device message, if any.
	Msg string

	// Command is the command that failed.
	Command string

	// Response is the decoded reply, kept for diagnostics.
	Response map[string]any

	// Raw is the raw reply line when it could not be decoded.
	Raw []byte

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Command != "" {
		msg = e.Command + ": " + msg
	}
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", int(e.Code))
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind, so the sentinel values below work
// with errors.Is. A target with a non-zero Code also has to match the code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == 0 || t.Code == e.Code)
}

// Sentinels for errors.Is.
var (
	ErrProtocol          = &Error{Kind: KindProtocol}
	ErrDeviceUnreachable = &Error{Kind: KindDeviceUnreachable}
	ErrTransport         = &Error{Kind: KindTransport}
	ErrMalformedResponse = &Error{Kind: KindMalformedResponse}
	ErrInvalidCommand    = &Error{Kind: KindInvalidCommand}
	ErrInvalidMessage    = &Error{Kind: KindInvalidMessage}
	ErrInvalidAuth       = &Error{Kind: KindInvalidAuth}
	ErrPermissionDenied  = &Error{Kind: KindPermissionDenied}
	ErrCommandError      = &Error{Kind: KindCommandError}
	ErrTokenError        = &Error{Kind: KindTokenError}
	ErrTokenExceeded     = &Error{Kind: KindTokenExceeded}
	ErrDecodeError       = &Error{Kind: KindDecodeError}
	ErrTokenAcquisition  = &Error{Kind: KindTokenAcquisition}
)

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Malformed builds a KindMalformedResponse error.
func Malformed(command string, raw []byte, cause error) *Error {
	return &Error{Kind: KindMalformedResponse, Command: command, Raw: raw, Err: cause}
}

// KindForCode maps a failure code to its kind. authContext selects how code
// 23 is reported.
func KindForCode(code Code, authContext bool) Kind {
	switch code {
	case CodeInvalidCommand:
		return KindInvalidCommand
	case CodeInvalidMessage:
		if authContext {
			return KindInvalidAuth
		}
		return KindInvalidMessage
	case CodePermissionDenied:
		return KindPermissionDenied
	case CodeCommandError:
		return KindCommandError
	case CodeTokenError:
		return KindTokenError
	case CodeTokenExceeded:
		return KindTokenExceeded
	case CodeDecodeError:
		return KindDecodeError
	default:
		return KindProtocol
	}
}
