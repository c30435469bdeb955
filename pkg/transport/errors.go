package transport

import (
	"errors"

	"github.com/whatsminer-go/whatsminer/pkg/wire"
)

// WireError classifies an error returned by Exchange for command.
// Connect failures become KindDeviceUnreachable; anything else KindTransport.
func WireError(command string, err error) *wire.Error {
	kind := wire.KindTransport
	if errors.Is(err, ErrDeviceUnreachable) {
		kind = wire.KindDeviceUnreachable
	}
	return &wire.Error{Kind: kind, Command: command, Err: err}
}

// SentinelError is the error for a reply consisting of the unreachable
// sentinel line.
func SentinelError(command string, raw []byte) *wire.Error {
	return &wire.Error{Kind: wire.KindDeviceUnreachable, Command: command, Msg: wire.UnreachableSentinel, Raw: raw}
}
