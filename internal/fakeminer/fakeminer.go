// Package fakeminer runs an in-process device that speaks the miner API.
//
// It implements the get_token handshake, the encrypted envelope and token
// checks, canned read replies and per-command overrides. Tests point a
// client at Addr and inspect Requests afterwards.
package fakeminer

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/whatsminer-go/whatsminer/pkg/ecb"
	"github.com/whatsminer-go/whatsminer/pkg/kdf"
	"github.com/whatsminer-go/whatsminer/pkg/transport"
	"github.com/whatsminer-go/whatsminer/pkg/wire"
)

// Default handshake salts.
const (
	DefaultSalt    = "BQ5hoXV9"
	DefaultNewSalt = "YnQYmCvq"
)

// Request is a request as the device saw it, after decryption.
type Request struct {
	Cmd       string
	Encrypted bool
	Params    map[string]any
}

// HandlerFunc produces the plaintext reply to a command. Returning nil
// closes the connection without a reply.
type HandlerFunc func(req Request) []byte

// Miner is a fake device.
type Miner struct {
	password string
	salt     string
	newSalt  string
	key      []byte

	server *transport.Server

	mu          sync.Mutex
	replies     map[string][]byte
	handlers    map[string]HandlerFunc
	tokens      map[string]bool
	requests    []Request
	handshakes  int
	clock       int
	exhausted   bool
	unreachable bool
	raw         map[string][]byte
}

// New creates a fake device with the given admin password.
func New(password string) (*Miner, error) {
	m := &Miner{
		password: password,
		salt:     DefaultSalt,
		newSalt:  DefaultNewSalt,
		replies:  make(map[string][]byte),
		handlers: make(map[string]HandlerFunc),
		tokens:   make(map[string]bool),
		raw:      make(map[string][]byte),
	}
	for cmd, reply := range defaultReplies {
		m.replies[cmd] = []byte(reply)
	}

	intermediate, err := kdf.Derive(password, "$1$"+m.salt+"$")
	if err != nil {
		return nil, err
	}
	m.key = kdf.SessionKey(intermediate)

	srv, err := transport.NewServer(transport.ServerConfig{
		Address: "127.0.0.1:0",
		Handler: transport.HandlerFunc(m.serve),
	})
	if err != nil {
		return nil, err
	}
	m.server = srv
	return m, nil
}

// Start starts listening on a loopback port.
func (m *Miner) Start(ctx context.Context) error {
	return m.server.Start(ctx)
}

// Stop stops the device.
func (m *Miner) Stop() error {
	return m.server.Stop()
}

// Addr returns host:port of the device.
func (m *Miner) Addr() string {
	return m.server.Addr().String()
}

// HostPort returns the host and port of the device.
func (m *Miner) HostPort() (string, int) {
	host, port, _ := net.SplitHostPort(m.Addr())
	p, _ := strconv.Atoi(port)
	return host, p
}

// SetReply sets the plaintext reply to cmd.
func (m *Miner) SetReply(cmd string, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[cmd] = []byte(reply)
}

// SetRawReply makes the device answer cmd with line verbatim, before any
// decoding or encryption.
func (m *Miner) SetRawReply(cmd string, line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw[cmd] = []byte(line)
}

// SetHandler installs a handler for cmd. It takes precedence over SetReply.
func (m *Miner) SetHandler(cmd string, h HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[cmd] = h
}

// ExpireTokens makes every issued token invalid.
func (m *Miner) ExpireTokens() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = make(map[string]bool)
}

// SetTokensExhausted makes get_token answer "over max connect".
func (m *Miner) SetTokensExhausted(exhausted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exhausted = exhausted
}

// SetUnreachable makes every reply the "Socket connect failed" line.
func (m *Miner) SetUnreachable(unreachable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unreachable = unreachable
}

// Requests returns the requests received so far.
func (m *Miner) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Handshakes returns the number of get_token requests answered with salts.
func (m *Miner) Handshakes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handshakes
}

// Exchanges returns the number of connections that carried a request.
func (m *Miner) Exchanges() int {
	return m.server.Served()
}

func (m *Miner) serve(_ net.Addr, request []byte) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unreachable {
		return []byte(wire.UnreachableSentinel)
	}

	msg, err := wire.Decode(request)
	if err != nil {
		return errorReply(int(wire.CodeInvalidMessage), "Invalid JSON message")
	}

	if data, ok := wire.DecodeEncryptedRequest(msg); ok {
		return m.serveEncrypted(data)
	}

	req := newRequest(msg, false)
	m.requests = append(m.requests, req)
	if line, ok := m.raw[req.Cmd]; ok {
		return line
	}

	switch {
	case req.Cmd == wire.CmdGetToken:
		return m.issueToken()
	case writeCommands[req.Cmd]:
		return errorReply(int(wire.CodePermissionDenied), "Permission denied")
	}
	return m.reply(req)
}

func (m *Miner) serveEncrypted(data string) []byte {
	plain, err := ecb.DecryptString(data, m.key)
	if err != nil {
		return errorReply(int(wire.CodeInvalidMessage), "Invalid JSON message")
	}
	inner, err := wire.Decode(plain)
	if err != nil {
		return errorReply(int(wire.CodeInvalidMessage), "Invalid JSON message")
	}

	req := newRequest(inner, true)
	m.requests = append(m.requests, req)
	if line, ok := m.raw[req.Cmd]; ok {
		return line
	}

	token, _ := inner[wire.KeyToken].(string)
	if !m.tokens[token] {
		return errorReply(int(wire.CodeTokenError), "token error")
	}

	reply := m.reply(req)
	if reply == nil {
		return nil
	}
	enc, err := ecb.EncryptString(reply, m.key)
	if err != nil {
		return errorReply(int(wire.CodeDecodeError), "decode error")
	}
	out, err := wire.EncodeEncryptedReply(enc)
	if err != nil {
		return nil
	}
	return out
}

func (m *Miner) reply(req Request) []byte {
	if h, ok := m.handlers[req.Cmd]; ok {
		return h(req)
	}
	if r, ok := m.replies[req.Cmd]; ok {
		return r
	}
	if writeCommands[req.Cmd] {
		return okReply()
	}
	return errorReply(int(wire.CodeInvalidCommand), "invalid cmd")
}

func (m *Miner) issueToken() []byte {
	if m.exhausted {
		return errorReply(int(wire.CodeTokenExceeded), "over max connect")
	}

	m.clock++
	salts := kdf.Salts{Salt: m.salt, NewSalt: m.newSalt, Time: fmt.Sprintf("%04d", m.clock)}
	creds, err := kdf.DeriveSession(m.password, salts)
	if err != nil {
		return errorReply(int(wire.CodeCommandError), err.Error())
	}
	m.tokens[creds.Token] = true
	m.handshakes++

	return []byte(fmt.Sprintf(
		`{"STATUS":"S","When":1700000000,"Code":134,"Msg":{"time":%q,"salt":%q,"newsalt":%q},"Description":""}`,
		salts.Time, salts.Salt, salts.NewSalt))
}

func newRequest(msg map[string]any, encrypted bool) Request {
	req := Request{Encrypted: encrypted, Params: make(map[string]any)}
	for k, v := range msg {
		switch k {
		case wire.KeyCmd:
			req.Cmd, _ = v.(string)
		case wire.KeyToken:
		default:
			req.Params[k] = v
		}
	}
	return req
}
