package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/whatsminer-go/whatsminer/pkg/kdf"
	"github.com/whatsminer-go/whatsminer/pkg/log"
	"github.com/whatsminer-go/whatsminer/pkg/transport"
	"github.com/whatsminer-go/whatsminer/pkg/wire"
)

// FreshnessWindow is how long derived credentials are used. Devices expire
// tokens after 30 minutes.
const FreshnessWindow = 29 * time.Minute

// overMaxConnect is the get_token Msg of a device out of token slots.
const overMaxConnect = "over max connect"

// Handshake reply keys.
const (
	keySalt    = "salt"
	keyNewSalt = "newsalt"
	keyTime    = "time"
)

// ErrMissingSalts indicates a get_token reply without salt, newsalt or time.
var ErrMissingSalts = errors.New("token reply lacks salt, newsalt or time")

// Session states, as reported in protocol events.
const (
	stateAbsent  = "ABSENT"
	stateValid   = "VALID"
	stateExpired = "EXPIRED"
	stateInvalid = "INVALID"
)

// Option configures a Session.
type Option func(*Session)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger sets the operational logger. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithProtocolLogger sets the protocol event logger.
func WithProtocolLogger(logger log.Logger) Option {
	return func(s *Session) { s.protoLogger = logger }
}

// Session holds the credentials for one device address.
type Session struct {
	exchanger transport.Exchanger
	address   string
	secret    string

	now         func() time.Time
	logger      *slog.Logger
	protoLogger log.Logger

	mu         sync.Mutex
	creds      *kdf.Credentials
	derivedAt  time.Time
	handshakes int
}

// New creates a Session that handshakes with address through exchanger.
func New(exchanger transport.Exchanger, address, secret string, opts ...Option) *Session {
	s := &Session{
		exchanger: exchanger,
		address:   address,
		secret:    secret,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Credentials returns the cached credentials if fresh, otherwise performs a
// token handshake and caches its result. Failures are KindTokenAcquisition
// errors wrapping the cause; nothing is cached on failure.
func (s *Session) Credentials(ctx context.Context) (kdf.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.freshLocked() {
		return *s.creds, nil
	}

	creds, err := s.handshake(ctx)
	if err != nil {
		s.debugLog("token handshake failed", "address", s.address, "error", err)
		return kdf.Credentials{}, &wire.Error{Kind: wire.KindTokenAcquisition, Command: wire.CmdGetToken, Err: err}
	}

	old := stateAbsent
	if s.creds != nil {
		old = stateExpired
	}
	s.creds = &creds
	s.derivedAt = s.now()
	s.handshakes++
	s.debugLog("token derived", "address", s.address)
	s.logState(old, stateValid, "")
	return creds, nil
}

// Token returns the current token, deriving one if needed.
func (s *Session) Token(ctx context.Context) (string, error) {
	creds, err := s.Credentials(ctx)
	if err != nil {
		return "", err
	}
	return creds.Token, nil
}

// Valid reports whether fresh credentials are cached.
func (s *Session) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freshLocked()
}

// Handshakes returns the number of successful handshakes.
func (s *Session) Handshakes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakes
}

// Invalidate drops the cached credentials if they still hold token.
// A newer token derived meanwhile by another caller is kept.
func (s *Session) Invalidate(token string, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.creds == nil || s.creds.Token != token {
		return
	}
	s.creds = nil
	s.debugLog("token invalidated", "address", s.address, "reason", reason)
	s.logState(stateValid, stateInvalid, reason)
}

// Reset drops the cached credentials unconditionally.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds != nil {
		s.logState(stateValid, stateAbsent, "reset")
	}
	s.creds = nil
}

func (s *Session) freshLocked() bool {
	return s.creds != nil && s.now().Sub(s.derivedAt) < FreshnessWindow
}

// handshake sends get_token and derives credentials from the reply.
func (s *Session) handshake(ctx context.Context) (kdf.Credentials, error) {
	const cmd = wire.CmdGetToken

	msg, err := wire.EncodeCommand(wire.NewRead(cmd), "")
	if err != nil {
		return kdf.Credentials{}, err
	}

	raw, err := s.exchanger.Exchange(ctx, s.address, msg, true)
	if err != nil {
		return kdf.Credentials{}, transport.WireError(cmd, err)
	}
	if wire.IsUnreachableSentinel(raw) {
		return kdf.Credentials{}, transport.SentinelError(cmd, raw)
	}

	reply, err := wire.Decode(raw)
	if err != nil {
		return kdf.Credentials{}, wire.Malformed(cmd, raw, err)
	}

	st, ok := wire.StatusOf(reply)
	if !ok {
		return kdf.Credentials{}, &wire.Error{Kind: wire.KindMalformedResponse, Command: cmd, Response: reply, Err: wire.ErrMissingStatus}
	}
	if st.MsgString() == overMaxConnect {
		return kdf.Credentials{}, &wire.Error{Kind: wire.KindTokenExceeded, Code: st.Code, Msg: overMaxConnect, Command: cmd, Response: reply}
	}
	if st.Marker == wire.StatusError {
		_, err := wire.Classify(cmd, reply, false)
		return kdf.Credentials{}, err
	}

	salts, ok := saltsOf(st.Msg)
	if !ok {
		return kdf.Credentials{}, &wire.Error{Kind: wire.KindMalformedResponse, Command: cmd, Response: reply, Err: ErrMissingSalts}
	}

	return kdf.DeriveSession(s.secret, salts)
}

// saltsOf reads the handshake inputs from the get_token Msg object.
func saltsOf(msg any) (kdf.Salts, bool) {
	m, ok := msg.(map[string]any)
	if !ok {
		return kdf.Salts{}, false
	}
	var salts kdf.Salts
	for key, dst := range map[string]*string{keySalt: &salts.Salt, keyNewSalt: &salts.NewSalt, keyTime: &salts.Time} {
		v, ok := stringField(m, key)
		if !ok {
			return kdf.Salts{}, false
		}
		*dst = v
	}
	return salts, true
}

// stringField returns a string or JSON number field as text.
func stringField(m map[string]any, key string) (string, bool) {
	switch v := m[key].(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}

func (s *Session) logState(oldState, newState, reason string) {
	if s.protoLogger == nil {
		return
	}
	s.protoLogger.Log(log.Event{
		Timestamp:  s.now(),
		Layer:      log.LayerSession,
		Category:   log.CategoryState,
		RemoteAddr: s.address,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// debugLog logs a debug message if a logger is configured.
func (s *Session) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
