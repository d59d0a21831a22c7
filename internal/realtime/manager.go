package realtime

import (
	"context"
	"sync"
	"time"

	"fleet_monitor/internal/clock"
	"fleet_monitor/internal/logger"
	"fleet_monitor/internal/metrics"
	"fleet_monitor/internal/models"
)

// Reconnect policy defaults. The interval is fixed, not exponential.
const (
	DefaultReconnectInterval = 2 * time.Second
	DefaultMaxAttempts       = 5
	DefaultStableAfter       = 30 * time.Second
	DefaultDialTimeout       = 10 * time.Second
)

// FrameHandler receives raw inbound frames, one at a time, in delivery order.
type FrameHandler func(raw []byte)

// Option configures a Manager.
type Option func(*Manager)

// WithReconnectInterval sets the fixed delay before each reconnect.
func WithReconnectInterval(d time.Duration) Option {
	return func(m *Manager) { m.interval = d }
}

// WithMaxAttempts sets how many consecutive transport faults are tolerated
// before the manager gives up and enters Failed.
func WithMaxAttempts(n int) Option {
	return func(m *Manager) { m.maxAttempts = n }
}

// WithStableAfter sets how long a connection must stay open for its drop to
// start a fresh attempt sequence. Zero disables the reset.
func WithStableAfter(d time.Duration) Option {
	return func(m *Manager) { m.stableAfter = d }
}

func WithDialTimeout(d time.Duration) Option {
	return func(m *Manager) { m.dialTimeout = d }
}

func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// Manager owns the single push connection: dialing, the init handshake,
// fixed-interval reconnects and teardown. It never interprets frames.
type Manager struct {
	url     string
	dialer  Dialer
	onFrame FrameHandler

	interval    time.Duration
	maxAttempts int
	stableAfter time.Duration
	dialTimeout time.Duration
	clock       clock.Clock
	log         *logger.Logger
	metrics     *metrics.Metrics

	mu          sync.Mutex
	state       models.ConnectionState
	conn        Conn
	timer       clock.Timer
	cancelDial  context.CancelFunc
	attempts    int
	generation  uint64 // bumped by every dial and Disconnect; stale callbacks compare against it
	initialized bool
	openedAt    time.Time
}

func NewManager(url string, dialer Dialer, onFrame FrameHandler, opts ...Option) *Manager {
	m := &Manager{
		url:         url,
		dialer:      dialer,
		onFrame:     onFrame,
		interval:    DefaultReconnectInterval,
		maxAttempts: DefaultMaxAttempts,
		stableAfter: DefaultStableAfter,
		dialTimeout: DefaultDialTimeout,
		clock:       clock.Real(),
		state:       models.ConnDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Nop()
	}
	if m.metrics == nil {
		m.metrics = metrics.Discard()
	}
	return m
}

// State returns the current connection state.
func (m *Manager) State() models.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the number of transport faults counted in the current sequence.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Status returns a read-only snapshot for the API.
func (m *Manager) Status() models.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.ConnectionStatus{State: m.state, Attempts: m.attempts, URL: m.url}
}

// Connect starts dialing unless a connection is already being opened or is
// open. Calling it from Failed resumes recovery with a fresh attempt counter.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case models.ConnConnecting, models.ConnOpen:
		return
	case models.ConnFailed, models.ConnDisconnected:
		m.attempts = 0
	}
	m.stopTimerLocked()
	m.dialLocked()
}

// Disconnect closes the socket and cancels any pending reconnect or dial.
// It is idempotent and no reconnect fires after it returns.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.generation++
	m.stopTimerLocked()
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	conn := m.conn
	m.conn = nil
	m.attempts = 0
	m.initialized = false
	m.setStateLocked(models.ConnDisconnected)
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			m.log.Debugw("ws_close_failed", "err", err)
		}
	}
}

// Initialize sends the init handshake once per opened connection. It reports
// whether a frame was written; repeated calls before the next open are no-ops.
func (m *Manager) Initialize() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initializeLocked()
}

func (m *Manager) initializeLocked() bool {
	if m.state != models.ConnOpen || m.conn == nil || m.initialized {
		return false
	}
	if err := m.conn.WriteJSON(models.NewInitFrame()); err != nil {
		// the read loop observes the broken socket and schedules recovery
		m.log.Warnw("ws_init_failed", "err", err)
		return false
	}
	m.initialized = true
	m.log.Infow("ws_initialized", "url", m.url)
	return true
}

func (m *Manager) dialLocked() {
	m.generation++
	gen := m.generation
	ctx, cancel := context.WithTimeout(context.Background(), m.dialTimeout)
	m.cancelDial = cancel
	m.setStateLocked(models.ConnConnecting)
	go m.dial(ctx, cancel, gen)
}

func (m *Manager) dial(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	conn, err := m.dialer.DialContext(ctx, m.url, nil)
	cancel()

	m.mu.Lock()
	if gen != m.generation || m.state != models.ConnConnecting {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	m.cancelDial = nil
	if err != nil {
		m.log.Warnw("ws_dial_failed", "url", m.url, "attempts", m.attempts, "err", err)
		m.handleFaultLocked()
		m.mu.Unlock()
		return
	}

	m.conn = conn
	m.initialized = false
	m.openedAt = m.clock.Now()
	m.setStateLocked(models.ConnOpen)
	m.initializeLocked()
	m.mu.Unlock()

	go m.readLoop(conn, gen)
}

func (m *Manager) readLoop(conn Conn, gen uint64) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(conn, gen, err)
			return
		}
		if !m.isCurrent(gen) {
			continue
		}
		m.metrics.FramesReceived.Inc()
		m.onFrame(raw)
	}
}

func (m *Manager) isCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.generation
}

func (m *Manager) handleClose(conn Conn, gen uint64, err error) {
	defer func() { _ = conn.Close() }()

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation {
		return
	}
	m.conn = nil
	m.initialized = false

	if isNormalClosure(err) {
		m.log.Infow("ws_closed", "url", m.url)
		m.attempts = 0
		m.setStateLocked(models.ConnDisconnected)
		return
	}

	m.log.Warnw("ws_closed_unexpectedly", "url", m.url, "err", err)
	if m.stableAfter > 0 && m.clock.Now().Sub(m.openedAt) >= m.stableAfter {
		m.attempts = 0
	}
	m.handleFaultLocked()
}

// handleFaultLocked counts a transport fault and either schedules exactly one
// reconnect or, once the budget is spent, parks the manager in Failed.
func (m *Manager) handleFaultLocked() {
	m.stopTimerLocked()
	m.attempts++
	m.setStateLocked(models.ConnReconnecting)

	if m.attempts >= m.maxAttempts {
		m.log.Errorw("ws_reconnect_exhausted", "url", m.url, "attempts", m.attempts)
		m.setStateLocked(models.ConnFailed)
		return
	}

	m.metrics.ReconnectAttempts.Inc()
	gen := m.generation
	m.timer = m.clock.AfterFunc(m.interval, func() { m.reconnect(gen) })
}

func (m *Manager) reconnect(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || m.state != models.ConnReconnecting {
		return
	}
	m.timer = nil
	m.dialLocked()
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) setStateLocked(next models.ConnectionState) {
	if m.state == next {
		return
	}
	if !m.state.CanTransition(next) {
		m.log.Errorw("ws_illegal_transition", "from", m.state, "to", next)
	}
	m.log.Debugw("ws_state", "from", m.state, "to", next)
	m.state = next
	m.metrics.ConnectionState.Set(float64(next))
}
