package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	mlog "github.com/whatsminer-go/whatsminer/pkg/log"
)

// viewLog prints the events of a protocol log file.
// Usage: log [-command name] [-remote addr] [-layer name] [-failures] <file.mlog>
func viewLog(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	fs.SetOutput(w)
	command := fs.String("command", "", "Only events of this API command")
	remote := fs.String("remote", "", "Only events of this device address")
	layer := fs.String("layer", "", "Only events of this layer: transport, wire, session")
	failures := fs.Bool("failures", false, "Only errors and failed responses")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: log [flags] <file.mlog>", ErrUsage)
	}

	filter := mlog.Filter{Command: *command, RemoteAddr: *remote, Failures: *failures}
	if *layer != "" {
		l, err := parseLayer(*layer)
		if err != nil {
			return err
		}
		filter.Layer = &l
	}

	reader, err := mlog.NewFilteredReader(fs.Arg(0), filter)
	if err != nil {
		return err
	}
	defer reader.Close()

	for event, err := range reader.All() {
		if err != nil {
			return err
		}
		formatEvent(w, event)
	}
	return nil
}

func parseLayer(s string) (mlog.Layer, error) {
	switch s {
	case "transport":
		return mlog.LayerTransport, nil
	case "wire":
		return mlog.LayerWire, nil
	case "session":
		return mlog.LayerSession, nil
	}
	return 0, fmt.Errorf("unknown layer: %s (use: transport, wire, session)", s)
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event mlog.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")

	var typeLabel string
	switch {
	case event.Frame != nil:
		typeLabel = "Frame"
	case event.Message != nil:
		typeLabel = event.Message.Type.String()
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	dir := ""
	if event.Frame != nil || event.Message != nil {
		dir = event.Direction.String()
	}
	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s", ts, shortenConnID(event.ConnectionID), dir, event.Layer, typeLabel)
	if event.RemoteAddr != "" {
		fmt.Fprintf(w, " %s", event.RemoteAddr)
	}
	if event.Command != "" {
		fmt.Fprintf(w, " %s", event.Command)
	}
	fmt.Fprintln(w)

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *mlog.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatMessageDetails(w io.Writer, msg *mlog.MessageEvent) {
	if msg.Encrypted {
		fmt.Fprintln(w, "  Encrypted: yes")
	}
	if msg.Status != "" {
		if msg.Code != nil {
			fmt.Fprintf(w, "  Status: %s (%d)\n", msg.Status, *msg.Code)
		} else {
			fmt.Fprintf(w, "  Status: %s\n", msg.Status)
		}
	}
	if msg.Duration != nil {
		fmt.Fprintf(w, "  Duration: %s\n", *msg.Duration)
	}
	if msg.Payload != nil {
		if payload, err := json.Marshal(msg.Payload); err == nil {
			fmt.Fprintf(w, "  Payload: %s\n", payload)
		}
	}
}

func formatStateChangeDetails(w io.Writer, sc *mlog.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *mlog.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer)
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Kind != "" {
		fmt.Fprintf(w, "  Kind: %s\n", err.Kind)
	}
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
}
