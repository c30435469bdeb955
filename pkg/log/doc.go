// Package log provides protocol event capture for Whatsminer exchanges.
//
// It is separate from operational logging (slog): protocol capture records
// every frame, decoded message, session change and error as a
// machine-readable event trace.
//
// # Basic Usage
//
//	// Development: mirror events to the console
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// Capture to a CBOR file readable with "minerctl log"
//	logger, _ := log.NewFileLogger("/var/log/minerctl/rack1.mlog")
//
//	// Both
//	logger := log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fileLogger)
//
// # Event Types
//
// Events are captured at three layers:
//   - Transport: raw request and reply lines (FrameEvent)
//   - Wire: decoded commands and replies (MessageEvent)
//   - Session: token handshakes and invalidations (StateChangeEvent)
//
// Errors at any layer have their own event type.
//
// # File Format
//
// Log files are a concatenation of CBOR encoded events with integer keys,
// conventionally using the .mlog extension.
package log
