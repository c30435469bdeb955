package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/whatsminer-go/whatsminer/pkg/ecb"
	"github.com/whatsminer-go/whatsminer/pkg/kdf"
	"github.com/whatsminer-go/whatsminer/pkg/log"
	"github.com/whatsminer-go/whatsminer/pkg/session"
	"github.com/whatsminer-go/whatsminer/pkg/transport"
	"github.com/whatsminer-go/whatsminer/pkg/wire"
)

// ErrNotEncrypted indicates a reply to an encrypted command that carries
// neither a failure status nor an "enc" string.
var ErrNotEncrypted = errors.New("reply is not encrypted")

// redacted replaces the token in captured payloads.
const redacted = "<redacted>"

// Client sends commands to one machine.
// It is safe for concurrent use.
type Client struct {
	machine   Machine
	address   string
	exchanger transport.Exchanger
	session   *session.Session

	timeout     time.Duration
	logger      *slog.Logger
	protoLogger log.Logger
	now         func() time.Time
}

// New creates a Client for machine.
func New(machine Machine, opts ...Option) *Client {
	c := &Client{
		machine: machine,
		address: machine.Address(),
		timeout: transport.DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.exchanger == nil {
		tc := transport.NewClient(transport.ClientConfig{Timeout: c.timeout})
		if c.protoLogger != nil {
			tc.SetLogger(c.protoLogger)
		}
		c.exchanger = tc
	}
	c.exchanger = timeoutExchanger{next: c.exchanger, timeout: c.timeout}

	sessionOpts := []session.Option{session.WithClock(c.now), session.WithLogger(c.logger)}
	if c.protoLogger != nil {
		sessionOpts = append(sessionOpts, session.WithProtocolLogger(c.protoLogger))
	}
	c.session = session.New(c.exchanger, c.address, machine.Password, sessionOpts...)
	return c
}

// Machine returns the machine this client talks to.
func (c *Client) Machine() Machine {
	return c.machine
}

// Address returns the machine address.
func (c *Client) Address() string {
	return c.address
}

// Session returns the token session of this client.
func (c *Client) Session() *session.Session {
	return c.session
}

// Read sends a plain command and returns its payload.
func (c *Client) Read(ctx context.Context, name string, params ...wire.Param) (map[string]any, error) {
	return c.Send(ctx, wire.NewRead(name, params...))
}

// Write sends an encrypted command and returns its decrypted payload.
func (c *Client) Write(ctx context.Context, name string, params ...wire.Param) (map[string]any, error) {
	return c.Send(ctx, wire.NewWrite(name, params...))
}

// Send performs one command exchange. It returns nil, nil for commands that
// expect no response.
func (c *Client) Send(ctx context.Context, cmd wire.Command) (map[string]any, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command %q: %w", cmd.Name, err)
	}

	var creds kdf.Credentials
	if cmd.Encrypted {
		var err error
		if creds, err = c.session.Credentials(ctx); err != nil {
			c.logFailure(cmd, err)
			return nil, err
		}
	}

	plain, err := wire.EncodeCommand(cmd, creds.Token)
	if err != nil {
		return nil, err
	}
	msg := plain
	if cmd.Encrypted {
		data, err := ecb.EncryptString(plain, creds.Key)
		if err != nil {
			return nil, fmt.Errorf("encrypt %s: %w", cmd.Name, err)
		}
		if msg, err = wire.EncodeEncrypted(data); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	c.logRequest(cmd, creds.Token != "")

	raw, err := c.exchanger.Exchange(ctx, c.address, msg, cmd.ExpectResponse)
	if err != nil {
		return nil, c.fail(cmd, creds.Token, transport.WireError(cmd.Name, err))
	}
	if !cmd.ExpectResponse {
		c.debugLog("command sent", "address", c.address, "cmd", cmd.Name)
		return nil, nil
	}

	reply, err := c.decodeReply(cmd, raw, creds)
	if err != nil {
		return nil, c.fail(cmd, creds.Token, err)
	}

	payload, err := wire.Classify(cmd.Name, reply, cmd.Encrypted)
	c.logResponse(cmd, reply, time.Since(start))
	if err != nil {
		return nil, c.fail(cmd, creds.Token, err)
	}

	c.debugLog("command done", "address", c.address, "cmd", cmd.Name, "duration", time.Since(start))
	return payload, nil
}

// decodeReply parses the reply line and, for encrypted commands, opens the
// envelope. A failure status on an encrypted command is returned as is so
// it is classified before any decryption.
func (c *Client) decodeReply(cmd wire.Command, raw []byte, creds kdf.Credentials) (map[string]any, error) {
	if wire.IsUnreachableSentinel(raw) {
		return nil, transport.SentinelError(cmd.Name, raw)
	}

	reply, err := wire.Decode(raw)
	if err != nil {
		return nil, wire.Malformed(cmd.Name, raw, err)
	}
	if !cmd.Encrypted || wire.IsFailure(reply) {
		return reply, nil
	}

	enc, ok := wire.EncryptedReply(reply)
	if !ok {
		e := wire.Malformed(cmd.Name, raw, ErrNotEncrypted)
		e.Response = reply
		return nil, e
	}

	plain, err := ecb.DecryptString(enc, creds.Key)
	if err != nil {
		return nil, wire.Malformed(cmd.Name, raw, err)
	}

	inner, err := wire.Decode(plain)
	if err != nil {
		// Garbage after decryption means the key no longer matches.
		return nil, wire.Malformed(cmd.Name, plain, &wire.Error{Kind: wire.KindDecodeError, Command: cmd.Name, Err: err})
	}
	return inner, nil
}

// fail drops the session when err rejects the token that was used, and
// returns err.
func (c *Client) fail(cmd wire.Command, token string, err error) error {
	if token != "" && wire.InvalidatesSession(err) {
		kind, _ := wire.KindOf(err)
		c.session.Invalidate(token, kind.String())
	}
	c.logFailure(cmd, err)
	return err
}

func (c *Client) logRequest(cmd wire.Command, withToken bool) {
	if c.protoLogger == nil {
		return
	}
	payload := make(map[string]any, len(cmd.Params)+2)
	for _, p := range cmd.Params {
		payload[p.Key] = p.Value
	}
	payload[wire.KeyCmd] = cmd.Name
	if withToken {
		payload[wire.KeyToken] = redacted
	}
	c.protoLogger.Log(log.Event{
		Timestamp:  time.Now(),
		Direction:  log.DirectionOut,
		Layer:      log.LayerWire,
		Category:   log.CategoryMessage,
		RemoteAddr: c.address,
		Command:    cmd.Name,
		Message: &log.MessageEvent{
			Type:      log.MessageTypeRequest,
			Encrypted: cmd.Encrypted,
			Payload:   payload,
		},
	})
}

func (c *Client) logResponse(cmd wire.Command, reply map[string]any, d time.Duration) {
	if c.protoLogger == nil {
		return
	}
	ev := &log.MessageEvent{
		Type:      log.MessageTypeResponse,
		Encrypted: cmd.Encrypted,
		Payload:   reply,
		Duration:  &d,
	}
	if st, ok := wire.StatusOf(reply); ok {
		ev.Status = st.Marker
		if st.HasCode {
			code := int(st.Code)
			ev.Code = &code
		}
	}
	c.protoLogger.Log(log.Event{
		Timestamp:  time.Now(),
		Direction:  log.DirectionIn,
		Layer:      log.LayerWire,
		Category:   log.CategoryMessage,
		RemoteAddr: c.address,
		Command:    cmd.Name,
		Message:    ev,
	})
}

func (c *Client) logFailure(cmd wire.Command, err error) {
	c.debugLog("command failed", "address", c.address, "cmd", cmd.Name, "error", err)
	if c.protoLogger == nil {
		return
	}
	data := &log.ErrorEventData{Layer: log.LayerWire, Message: err.Error()}
	var we *wire.Error
	if errors.As(err, &we) {
		data.Kind = we.Kind.String()
		if we.Code != 0 {
			code := int(we.Code)
			data.Code = &code
		}
		switch we.Kind {
		case wire.KindDeviceUnreachable, wire.KindTransport:
			data.Layer = log.LayerTransport
		case wire.KindTokenAcquisition:
			data.Layer = log.LayerSession
		}
	}
	c.protoLogger.Log(log.Event{
		Timestamp:  time.Now(),
		Layer:      data.Layer,
		Category:   log.CategoryError,
		RemoteAddr: c.address,
		Command:    cmd.Name,
		Error:      data,
	})
}

// debugLog logs a debug message if a logger is configured.
func (c *Client) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
