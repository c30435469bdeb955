package wire

import "fmt"

// Status marker values.
const (
	StatusSuccess = "S"
	StatusError   = "E"
)

// Code is a numeric reply code.
type Code int

const (
	// CodeInvalidCommand indicates an unknown command or bad parameters.
	CodeInvalidCommand Code = 14

	// CodeInvalidMessage indicates a message the device could not accept.
	// For encrypted commands this means the envelope failed authentication.
	CodeInvalidMessage Code = 23

	// CodePermissionDenied indicates the command is not allowed.
	CodePermissionDenied Code = 45

	// CodeOK is the success code of write commands.
	CodeOK Code = 131

	// CodeCommandError indicates the command failed on the device.
	CodeCommandError Code = 132

	// CodeTokenOK is the success code of get_token.
	CodeTokenOK Code = 134

	// CodeTokenError indicates a rejected or expired token.
	CodeTokenError Code = 135

	// CodeTokenExceeded indicates too many tokens or connections.
	CodeTokenExceeded Code = 136

	// CodeDecodeError indicates the device failed to decrypt the command.
	CodeDecodeError Code = 137
)

// String returns the code name.
func (c Code) String() string {
	switch c {
	case CodeInvalidCommand:
		return "INVALID_COMMAND"
	case CodeInvalidMessage:
		return "INVALID_MESSAGE"
	case CodePermissionDenied:
		return "PERMISSION_DENIED"
	case CodeOK:
		return "OK"
	case CodeCommandError:
		return "COMMAND_ERROR"
	case CodeTokenOK:
		return "TOKEN_OK"
	case CodeTokenError:
		return "TOKEN_ERROR"
	case CodeTokenExceeded:
		return "TOKEN_EXCEEDED"
	case CodeDecodeError:
		return "DECODE_ERROR"
	default:
		return fmt.Sprintf("CODE_%d", int(c))
	}
}

// Status is the status section of a reply.
type Status struct {
	// Marker is StatusSuccess, StatusError, or any other value the device
	// sent.
	Marker string

	// Code is the numeric reply code; HasCode is false when absent.
	Code    Code
	HasCode bool

	// Msg is the Msg field as decoded (string, object, or nil).
	Msg any
}

// IsSuccess reports whether the marker signals success.
func (s Status) IsSuccess() bool {
	return s.Marker == StatusSuccess
}

// MsgString returns Msg when it is a string.
func (s Status) MsgString() string {
	str, _ := s.Msg.(string)
	return str
}

// StatusOf extracts the status section of a reply. ok is false when the
// reply carries no usable status marker.
//
// Two shapes are accepted:
//
//	{"STATUS":"S","Code":131,"Msg":"API command OK"}
//	{"STATUS":[{"STATUS":"S","Code":11,"Msg":"Summary"}],"SUMMARY":[...]}
func StatusOf(reply map[string]any) (Status, bool) {
	raw, present := reply[KeyStatus]
	if !present {
		return Status{}, false
	}

	section := reply
	switch v := raw.(type) {
	case string:
	case []any:
		if len(v) == 0 {
			return Status{}, false
		}
		first, ok := v[0].(map[string]any)
		if !ok {
			return Status{}, false
		}
		section = first
		raw = first[KeyStatus]
	default:
		return Status{}, false
	}

	marker, ok := raw.(string)
	if !ok || marker == "" {
		return Status{}, false
	}

	st := Status{Marker: marker, Msg: section[KeyMsg]}
	if n, ok := ToInt(section[KeyCode]); ok {
		st.Code = Code(n)
		st.HasCode = true
	}
	return st, true
}
