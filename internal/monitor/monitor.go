// Package monitor streams phone call events from the router.
//
// The router publishes call events on a plain TCP port as
// semicolon-delimited lines, one event per line. The feature has to be
// enabled on the box first (dial #96*5* on a registered phone). A
// Monitor owns one background reader goroutine that forwards decoded
// lines to a buffered channel; the caller consumes the channel and
// checks IsAlive to distinguish an idle line from a dead one.
package monitor

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hausnet/fritzcore/internal/fritzerr"
)

// Defaults match the router's call monitor service.
const (
	DefaultPort      = "1012"
	DefaultQueueSize = 256

	// readTimeout bounds a single read so a silently dropped peer cannot
	// park the reader forever. Expiry alone means an idle line, not a
	// failure.
	readTimeout = 10 * time.Second

	minReconnectDelay    = 20 * time.Millisecond
	maxReconnectDelay    = 60 * time.Second
	reconnectDelayFactor = 10
	reconnectTries       = 10
)

// Options tunes a Monitor. The zero value selects the defaults.
type Options struct {
	// QueueSize is the event channel capacity. Events arriving while the
	// channel is full are dropped unless BlockOnFull is set.
	QueueSize int
	// BlockOnFull parks the reader on a full channel instead of dropping
	// the event. The router buffers little, so backpressure here can lose
	// lines on the socket instead; dropping locally is the default.
	BlockOnFull bool
	// ReadTimeout overrides the per-read deadline.
	ReadTimeout time.Duration
	// ReconnectTries bounds the reconnection attempts after a lost
	// connection before the monitor gives up.
	ReconnectTries int
	Logger         *slog.Logger
}

// Monitor watches the call event port of one router. Create it with
// New, then Start it; a Monitor cannot be restarted after Stop.
type Monitor struct {
	address string
	opts    Options
	logger  *slog.Logger

	mu      sync.Mutex
	conn    net.Conn
	started bool
	stopped bool

	alive  atomic.Bool
	events chan string
	// stop is closed by Stop and unblocks a parked send or a backoff
	// wait; done is closed by the reader on exit.
	stop chan struct{}
	done chan struct{}
}

// New prepares a monitor for the given host. The port defaults to the
// call monitor port when the host carries none.
func New(host string, opts Options) *Monitor {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = readTimeout
	}
	if opts.ReconnectTries <= 0 {
		opts.ReconnectTries = reconnectTries
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if !strings.Contains(host, ":") {
		host = net.JoinHostPort(host, DefaultPort)
	}
	return &Monitor{
		address: host,
		opts:    opts,
		logger:  logger,
		events:  make(chan string, opts.QueueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start connects and launches the background reader. The returned
// channel delivers one call event per line and is closed when the
// monitor stops or fails. A connection failure is reported
// synchronously; the call monitor feature being disabled on the box
// shows up here as a refused connection.
func (m *Monitor) Start(ctx context.Context) (<-chan string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil, fritzerr.New(fritzerr.KindInternal, "monitor already started")
	}

	conn, err := m.dial(ctx)
	if err != nil {
		return nil, err
	}
	m.conn = conn
	m.started = true
	m.alive.Store(true)

	go m.run(conn)
	return m.events, nil
}

// IsAlive reports whether the background reader is still serving the
// event channel. It flips to false after Stop or after an unrecoverable
// connection loss.
func (m *Monitor) IsAlive() bool {
	return m.alive.Load()
}

// Stop shuts the connection down, unblocking a parked read, and waits
// for the reader to exit. Safe to call multiple times and from any
// goroutine.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	conn := m.conn
	close(m.stop)
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	<-m.done
}

func (m *Monitor) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: m.opts.ReadTimeout, KeepAlive: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", m.address)
	if err != nil {
		return nil, fritzerr.Wrap(fritzerr.KindConnectivity, err,
			"connecting to call monitor at %s (is the service enabled?)", m.address)
	}
	return conn, nil
}

// run is the reader loop. It forwards lines until Stop closes the
// connection or a lost peer cannot be reconnected.
func (m *Monitor) run(conn net.Conn) {
	defer func() {
		m.alive.Store(false)
		close(m.events)
		close(m.done)
		conn.Close()
	}()

	reader := bufio.NewReader(conn)
	partial := ""
	for {
		conn.SetReadDeadline(time.Now().Add(m.opts.ReadTimeout))
		line, err := reader.ReadString('\n')
		if err == nil {
			m.report(strings.TrimRight(partial+line, "\r\n"))
			partial = ""
			continue
		}
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			// Idle line. Keep what arrived before the deadline so a
			// slowly trickling event is not torn apart.
			partial += line
			continue
		}
		if m.isStopping() {
			return
		}

		// EOF or a genuine socket error: the peer is gone, try to come
		// back with increasing delays.
		m.logger.Warn("call monitor connection lost, reconnecting", "error", err)
		next, ok := m.reconnect()
		if !ok {
			m.logger.Error("call monitor gave up reconnecting", "address", m.address)
			return
		}
		m.swapConn(next)
		if m.isStopping() {
			next.Close()
			return
		}
		conn.Close()
		conn = next
		reader = bufio.NewReader(conn)
		partial = ""
	}
}

func (m *Monitor) report(line string) {
	if m.opts.BlockOnFull {
		select {
		case m.events <- line:
		case <-m.stop:
		}
		return
	}
	select {
	case m.events <- line:
	default:
		m.logger.Warn("event queue full, dropping call event")
	}
}

func (m *Monitor) reconnect() (net.Conn, bool) {
	delay := minReconnectDelay
	for try := 0; try < m.opts.ReconnectTries; try++ {
		select {
		case <-m.stop:
			return nil, false
		case <-time.After(delay):
		}
		if delay < maxReconnectDelay {
			delay = min(delay*reconnectDelayFactor, maxReconnectDelay)
		}
		conn, err := m.dial(context.Background())
		if err == nil {
			return conn, true
		}
	}
	return nil, false
}

func (m *Monitor) isStopping() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// swapConn publishes the new connection so Stop can close it.
func (m *Monitor) swapConn(conn net.Conn) {
	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
}
