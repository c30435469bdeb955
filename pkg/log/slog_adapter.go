package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
//
// Error events log at Warn, failed responses and device availability
// changes at Info, and everything else at Debug, so an Info console shows
// what an operator acts on.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event at the level chosen by levelFor.
func (a *SlogAdapter) Log(event Event) {
	level := levelFor(event)
	if !a.logger.Enabled(context.Background(), level) {
		return
	}

	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}
	if event.Command != "" {
		attrs = append(attrs, slog.String("command", event.Command))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Message != nil:
		attrs = append(attrs,
			slog.String("msg_type", event.Message.Type.String()),
			slog.Bool("encrypted", event.Message.Encrypted),
		)
		if event.Message.Status != "" {
			attrs = append(attrs, slog.String("status", event.Message.Status))
		}
		if event.Message.Code != nil {
			attrs = append(attrs, slog.Int("code", *event.Message.Code))
		}
		if event.Message.Duration != nil {
			attrs = append(attrs, slog.Duration("duration", *event.Message.Duration))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Kind != "" {
			attrs = append(attrs, slog.String("error_kind", event.Error.Kind))
		}
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), level, "protocol", attrs...)
}

func levelFor(event Event) slog.Level {
	switch {
	case event.Error != nil:
		return slog.LevelWarn
	case event.Message != nil && event.Message.Status == "E":
		return slog.LevelInfo
	case event.StateChange != nil && event.StateChange.Entity == StateEntityDevice:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

var _ Logger = (*SlogAdapter)(nil)
