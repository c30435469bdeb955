package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/whatsminer-go/whatsminer/pkg/log"
	"github.com/whatsminer-go/whatsminer/pkg/transport"
)

// Option configures a Client.
type Option func(*Client)

// WithExchanger replaces the TCP transport.
func WithExchanger(ex transport.Exchanger) Option {
	return func(c *Client) { c.exchanger = ex }
}

// WithTimeout sets the per-exchange timeout (default 10s). It applies when
// the caller's context has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the operational logger. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithProtocolLogger captures protocol events of the transport, wire and
// session layers.
func WithProtocolLogger(logger log.Logger) Option {
	return func(c *Client) { c.protoLogger = logger }
}

// WithClock replaces time.Now for session freshness.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// timeoutExchanger bounds every exchange whose context has no deadline.
type timeoutExchanger struct {
	next    transport.Exchanger
	timeout time.Duration
}

func (t timeoutExchanger) Exchange(ctx context.Context, address string, msg []byte, expectResponse bool) ([]byte, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.next.Exchange(ctx, address, msg, expectResponse)
}

var _ transport.Exchanger = timeoutExchanger{}
