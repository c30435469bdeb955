package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/whatsminer-go/whatsminer/pkg/log"
)

// DefaultPort is the miner API port.
const DefaultPort = 4028

// Handler answers one request. A nil reply closes the connection without
// writing anything.
type Handler interface {
	ServeRequest(remote net.Addr, request []byte) []byte
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(remote net.Addr, request []byte) []byte

// ServeRequest calls f.
func (f HandlerFunc) ServeRequest(remote net.Addr, request []byte) []byte {
	return f(remote, request)
}

// ServerConfig configures a Server.
type ServerConfig struct {
	// Address to listen on (e.g., ":4028" or "127.0.0.1:0").
	Address string

	// Handler answers requests. Required.
	Handler Handler

	// ReadTimeout bounds reading a request (default: 10s).
	ReadTimeout time.Duration

	// Logger for protocol logging (optional).
	Logger log.Logger

	// OnError is called when accepting or serving a connection fails.
	OnError func(err error)
}

// Server accepts API connections and answers one request per connection,
// the way a device does.
type Server struct {
	config   ServerConfig
	listener net.Listener

	conns   map[net.Conn]struct{}
	connsMu sync.Mutex

	running atomic.Bool
	served  atomic.Int64
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new Server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = DefaultTimeout
	}
	return &Server{
		config: config,
		conns:  make(map[net.Conn]struct{}),
	}, nil
}

// Start starts the server and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops the server and closes all connections.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return nil
	}

	s.running.Store(false)
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.conns)
}

// Served returns the number of requests read so far.
func (s *Server) Served() int {
	return int(s.served.Load())
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() && s.config.OnError != nil {
				s.config.OnError(fmt.Errorf("accept error: %w", err))
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
	defer func() {
		s.connsMu.Lock()
		delete(s.conns, conn)
		s.connsMu.Unlock()
	}()

	connID := uuid.New().String()
	remote := conn.RemoteAddr().String()
	_ = conn.SetDeadline(time.Now().Add(s.config.ReadTimeout))

	request, err := readRequest(conn)
	if err != nil {
		if s.config.OnError != nil && !errors.Is(err, io.EOF) {
			s.config.OnError(fmt.Errorf("read request from %s: %w", remote, err))
		}
		return
	}
	s.served.Add(1)

	in := frameLogger{logger: s.config.Logger, connID: connID, remoteAddr: remote}
	in.log(request, log.DirectionIn)

	reply := s.config.Handler.ServeRequest(conn.RemoteAddr(), request)
	if reply == nil {
		return
	}

	writer := NewLineWriter(conn)
	writer.SetLogger(s.config.Logger, connID, remote)
	if err := writer.WriteLine(reply); err != nil && s.config.OnError != nil {
		s.config.OnError(fmt.Errorf("write reply to %s: %w", remote, err))
	}
}

// readRequest reads one JSON value. Requests carry no terminator, so the
// value itself delimits the message.
func readRequest(r io.Reader) ([]byte, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(bufio.NewReader(r)).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}
