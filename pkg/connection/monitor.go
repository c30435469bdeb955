package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/whatsminer-go/whatsminer/pkg/log"
	"github.com/whatsminer-go/whatsminer/pkg/miner"
)

// Monitor defaults.
const (
	DefaultInterval     = 5 * time.Second
	DefaultProbeTimeout = 10 * time.Second
)

// ErrMonitorClosed is returned by Start after Close.
var ErrMonitorClosed = errors.New("monitor closed")

// State is the availability of a device.
type State uint8

const (
	// StateUnknown is the state before the first probe.
	StateUnknown State = iota

	// StateOnline means the last probe was answered.
	StateOnline

	// StateOffline means the last probe was not answered.
	StateOffline

	// StateClosed means the monitor has stopped.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "UNKNOWN"
	case StateOnline:
		return "ONLINE"
	case StateOffline:
		return "OFFLINE"
	case StateClosed:
		return "CLOSED"
	default:
		return "INVALID"
	}
}

// Prober checks whether a device answers. Implemented by *miner.Miner.
type Prober interface {
	Online(ctx context.Context) (bool, error)
}

var _ Prober = (*miner.Miner)(nil)

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	// Address names the device in log events.
	Address string

	// Interval between probes while the device is online (default: 5s).
	Interval time.Duration

	// ProbeTimeout bounds one probe (default: 10s).
	ProbeTimeout time.Duration

	// Backoff spaces probes while the device is offline. Jitter is only
	// applied when set.
	Backoff BackoffConfig

	// Logger for operational logging (optional).
	Logger *slog.Logger

	// ProtocolLogger receives device state changes (optional).
	ProtocolLogger log.Logger
}

// ProbeResult is the outcome of one probe.
type ProbeResult struct {
	State    State
	Err      error
	Duration time.Duration
	// Next is the delay until the following probe.
	Next time.Duration
}

// Monitor polls one device and tracks its availability.
type Monitor struct {
	prober  Prober
	config  MonitorConfig
	backoff *Backoff

	mu            sync.RWMutex
	state         State
	lastErr       error
	running       bool
	cancel        context.CancelFunc
	done          chan struct{}
	onStateChange func(oldState, newState State)
	onProbe       func(ProbeResult)
}

// NewMonitor creates a Monitor for prober.
func NewMonitor(prober Prober, config MonitorConfig) *Monitor {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = DefaultProbeTimeout
	}
	return &Monitor{
		prober:  prober,
		config:  config,
		backoff: NewBackoffWithConfig(config.Backoff),
		state:   StateUnknown,
	}
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsOnline reports whether the last probe was answered.
func (m *Monitor) IsOnline() bool {
	return m.State() == StateOnline
}

// LastError returns the error of the last failed probe, if any.
func (m *Monitor) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// OnStateChange sets a callback for state transitions.
func (m *Monitor) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnProbe sets a callback invoked after every probe of the polling loop.
func (m *Monitor) OnProbe(fn func(ProbeResult)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onProbe = fn
}

// Check probes the device once and updates the state.
func (m *Monitor) Check(ctx context.Context) (State, error) {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	defer cancel()

	online, err := m.prober.Online(probeCtx)
	if ctx.Err() != nil {
		// Cancelled by the caller, not a device failure.
		return m.State(), ctx.Err()
	}
	next := StateOffline
	if online && err == nil {
		next = StateOnline
	}
	m.setState(next, err)
	return next, err
}

// Start runs the polling loop in the background until ctx is done or
// Close is called.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed {
		return ErrMonitorClosed
	}
	if m.running {
		return nil
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.running = true
	go m.loop(ctx, m.done)
	return nil
}

// Close stops the polling loop and waits for it to exit.
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	m.setState(StateClosed, nil)
}

// Run probes until ctx is done. It blocks; Start runs it in a goroutine.
func (m *Monitor) Run(ctx context.Context) {
	done := make(chan struct{})
	m.loop(ctx, done)
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	for {
		start := time.Now()
		state, err := m.Check(ctx)
		if ctx.Err() != nil {
			return
		}

		var delay time.Duration
		if state == StateOnline {
			m.backoff.Reset()
			delay = m.config.Interval
		} else {
			delay = m.backoff.Next()
		}

		m.mu.RLock()
		onProbe := m.onProbe
		m.mu.RUnlock()
		if onProbe != nil {
			onProbe(ProbeResult{State: state, Err: err, Duration: time.Since(start), Next: delay})
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// BackoffAttempts returns the number of failed probes since the device
// was last online.
func (m *Monitor) BackoffAttempts() int {
	return m.backoff.Attempts()
}

func (m *Monitor) setState(next State, err error) {
	m.mu.Lock()
	old := m.state
	if old == StateClosed {
		m.mu.Unlock()
		return
	}
	m.state = next
	m.lastErr = err
	if next == StateClosed {
		m.running = false
	}
	fn := m.onStateChange
	m.mu.Unlock()

	if old == next {
		return
	}

	m.debugLog("device state changed", "address", m.config.Address, "old", old, "new", next, "error", err)
	if m.config.ProtocolLogger != nil {
		sc := &log.StateChangeEvent{
			Entity:   log.StateEntityDevice,
			OldState: old.String(),
			NewState: next.String(),
		}
		if err != nil {
			sc.Reason = err.Error()
		}
		m.config.ProtocolLogger.Log(log.Event{
			Timestamp:   time.Now(),
			Layer:       log.LayerSession,
			Category:    log.CategoryState,
			RemoteAddr:  m.config.Address,
			StateChange: sc,
		})
	}
	if fn != nil {
		fn(old, next)
	}
}

func (m *Monitor) debugLog(msg string, args ...any) {
	if m.config.Logger != nil {
		m.config.Logger.Debug(msg, args...)
	}
}
