// Package transport provides the socket layer of the miner API.
//
// Every exchange uses its own TCP connection:
//
//	dial -> write request -> read one reply line -> close
//
// The request is written verbatim (no framing). The reply is a single line
// terminated by '\n', or by the device closing the connection. Writes that
// do not expect a reply close the connection right after the request.
//
// Errors are split by whether the device was reached at all:
//   - ErrDeviceUnreachable: the connection could not be established
//   - ErrExchange: I/O failed or timed out after the connection was up
//
// A cancelled context closes the connection immediately.
//
// The package also contains a minimal line Server used to stand in for a
// device in tests and local tooling.
package transport
