package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/whatsminer-go/whatsminer/pkg/log"
)

// DefaultTimeout bounds an exchange whose context has no deadline.
const DefaultTimeout = 10 * time.Second

// Exchange errors.
var (
	// ErrDeviceUnreachable indicates the connection could not be established.
	ErrDeviceUnreachable = errors.New("device unreachable")

	// ErrExchange indicates an I/O failure after the connection was established.
	ErrExchange = errors.New("exchange failed")
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Timeout bounds a whole exchange when the context has no deadline
	// (default: 10s).
	Timeout time.Duration

	// MaxLineSize is the maximum reply line size (default: 64KB).
	MaxLineSize int

	// Logger for protocol logging (optional).
	Logger log.Logger
}

// Client performs request/reply exchanges, one TCP connection each.
// It holds no connection state and is safe for concurrent use.
type Client struct {
	config ClientConfig
	dialer net.Dialer
}

// NewClient creates a new Client.
func NewClient(config ClientConfig) *Client {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxLineSize <= 0 {
		config.MaxLineSize = DefaultMaxLineSize
	}
	return &Client{config: config}
}

// SetLogger configures protocol logging.
// Pass nil to disable logging.
func (c *Client) SetLogger(logger log.Logger) {
	c.config.Logger = logger
}

// Timeout returns the configured exchange timeout.
func (c *Client) Timeout() time.Duration {
	return c.config.Timeout
}

// Exchange connects to address, writes msg and, if expectResponse is set,
// reads a single reply line. The connection is closed on every path.
func (c *Client) Exchange(ctx context.Context, address string, msg []byte, expectResponse bool) ([]byte, error) {
	if len(msg) == 0 {
		return nil, ErrMessageEmpty
	}

	// Apply timeout from config if context doesn't have one
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	connID := uuid.New().String()

	conn, err := c.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		c.logError(connID, address, err)
		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceUnreachable, address, err)
	}
	defer conn.Close()

	c.logState(connID, address, "", "CONNECTED")
	defer c.logState(connID, address, "CONNECTED", "CLOSED")

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Unblock pending I/O as soon as ctx is done.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	writer := NewLineWriter(conn)
	writer.SetLogger(c.config.Logger, connID, address)
	if err := writer.Write(msg); err != nil {
		return nil, c.exchangeError(ctx, connID, address, err)
	}

	if !expectResponse {
		return nil, nil
	}

	reader := NewLineReaderWithMaxSize(conn, c.config.MaxLineSize)
	reader.SetLogger(c.config.Logger, connID, address)
	line, err := reader.ReadLine()
	if err != nil {
		return nil, c.exchangeError(ctx, connID, address, err)
	}
	return line, nil
}

// exchangeError wraps a post-connect failure, preferring the context error
// when the context ended the exchange.
func (c *Client) exchangeError(ctx context.Context, connID, address string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	} else if errors.Is(err, os.ErrDeadlineExceeded) {
		// The socket deadline can fire just before the context timer.
		err = context.DeadlineExceeded
	}
	c.logError(connID, address, err)
	return fmt.Errorf("%w: %s: %w", ErrExchange, address, err)
}

func (c *Client) logState(connID, address, oldState, newState string) {
	if c.config.Logger == nil {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   address,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
		},
	})
}

func (c *Client) logError(connID, address string, err error) {
	if c.config.Logger == nil {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		RemoteAddr:   address,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
		},
	})
}
