package log

import "time"

// Event is a protocol event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the exchange (one TCP connection).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the device address (host:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Command is the API command of the exchange, when known.
	Command string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a reply from the device.
	DirectionIn Direction = 0
	// DirectionOut indicates a request to the device.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the socket layer (raw lines).
	LayerTransport Layer = 0
	// LayerWire is the message layer (decoded JSON).
	LayerWire Layer = 1
	// LayerSession is the token session layer.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a request or reply.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a raw line at the transport layer.
type FrameEvent struct {
	// Size is the line size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw line (may be truncated for large lines).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded command or reply at the wire layer.
type MessageEvent struct {
	// Type distinguishes requests from replies.
	Type MessageType `cbor:"1,keyasint"`

	// Encrypted is set for messages that travel inside an envelope.
	Encrypted bool `cbor:"2,keyasint,omitempty"`

	// Status is the reply status marker.
	Status string `cbor:"3,keyasint,omitempty"`

	// Code is the reply code, if present.
	Code *int `cbor:"4,keyasint,omitempty"`

	// Payload is the decoded plaintext object. Tokens are redacted.
	Payload any `cbor:"5,keyasint,omitempty"`

	// Duration is the time from request to reply (replies only).
	Duration *time.Duration `cbor:"6,keyasint,omitempty"`
}

// MessageType distinguishes requests from replies.
type MessageType uint8

const (
	// MessageTypeRequest indicates a request.
	MessageTypeRequest MessageType = 0
	// MessageTypeResponse indicates a reply.
	MessageTypeResponse MessageType = 1
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeRequest:
		return "REQUEST"
	case MessageTypeResponse:
		return "RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntitySession indicates a token session change.
	StateEntitySession StateEntity = 0
	// StateEntityConnection indicates a TCP connection change.
	StateEntityConnection StateEntity = 1
	// StateEntityDevice indicates a device availability change.
	StateEntityDevice StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntitySession:
		return "SESSION"
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Kind is the error kind name, if classified.
	Kind string `cbor:"3,keyasint,omitempty"`

	// Code is the device reply code (if applicable).
	Code *int `cbor:"4,keyasint,omitempty"`
}
