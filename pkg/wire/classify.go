package wire

import "errors"

// ErrMissingStatus indicates a reply without a status marker.
var ErrMissingStatus = errors.New("reply has no status marker")

// Classify turns a decoded reply into its payload or a classified error.
//
// A reply without status marker is always malformed. A failure marker is
// mapped to a kind by its code; authContext is true for replies to
// encrypted commands. Any other marker makes the reply the payload,
// returned unmodified.
func Classify(command string, reply map[string]any, authContext bool) (map[string]any, error) {
	st, ok := StatusOf(reply)
	if !ok {
		return nil, &Error{
			Kind:     KindMalformedResponse,
			Command:  command,
			Response: reply,
			Err:      ErrMissingStatus,
		}
	}

	if st.Marker != StatusError {
		return reply, nil
	}

	kind := KindProtocol
	if st.HasCode {
		kind = KindForCode(st.Code, authContext)
	}
	return nil, &Error{
		Kind:     kind,
		Code:     st.Code,
		Msg:      st.MsgString(),
		Command:  command,
		Response: reply,
	}
}

// IsFailure reports whether reply carries a failure status marker.
func IsFailure(reply map[string]any) bool {
	st, ok := StatusOf(reply)
	return ok && st.Marker == StatusError
}
