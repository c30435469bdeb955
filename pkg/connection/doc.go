// Package connection tracks whether a device answers.
//
// A Monitor probes a device on an interval and reports transitions between
// ONLINE and OFFLINE. While the device is offline, probes are spaced by an
// exponential backoff so a rack of dead machines is not hammered:
//
//  1. Initial retry delay: 2 seconds
//  2. Doubling: 4s, 8s, 16s, 32s, 64s
//  3. Maximum delay: 2 minutes
//  4. Reset to the poll interval on the first successful probe
//
// Each delay gets up to 25% random jitter:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// A probe succeeds when the device answers the status command. A device
// that refuses connections, or whose bridge returns the connect-failed
// line, is offline.
package connection
