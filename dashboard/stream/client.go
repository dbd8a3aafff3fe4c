package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yaron8/netmon/logi"
	"github.com/yaron8/netmon/metrics"
	"github.com/yaron8/netmon/telemetrics"
)

// SeriesWriter receives every decoded metric reading.
type SeriesWriter interface {
	Append(name string, p metrics.Point)
}

// AttackWriter receives every attack-detection verdict.
type AttackWriter interface {
	Set(detected bool, details string)
}

// Recorder observes client activity. The Prometheus collector implements it.
type Recorder interface {
	FrameReceived(frameType string)
	FrameDropped()
	ReconnectScheduled(delay time.Duration)
	StateChanged(state State)
}

type noopRecorder struct{}

func (noopRecorder) FrameReceived(string)             {}
func (noopRecorder) FrameDropped()                    {}
func (noopRecorder) ReconnectScheduled(time.Duration) {}
func (noopRecorder) StateChanged(State)               {}

// Config for the feed connection
type Config struct {
	URL       string
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// ReadLimit caps a single frame in bytes; 0 means DefaultReadLimit
	ReadLimit int64
}

// Option customizes a Client.
type Option func(*Client)

func WithDialer(d Dialer) Option { return func(c *Client) { c.dialer = d } }

func WithScheduler(s Scheduler) Option { return func(c *Client) { c.schedule = s } }

func WithRecorder(r Recorder) Option { return func(c *Client) { c.recorder = r } }

// Client consumes the telemetry feed: it keeps one connection open, applies
// frames to the store in arrival order and reconnects with capped
// exponential backoff when the connection is lost.
type Client struct {
	cfg      Config
	series   SeriesWriter
	attack   AttackWriter
	dialer   Dialer
	schedule Scheduler
	recorder Recorder
	logger   *slog.Logger

	mu        sync.Mutex
	state     ConnState
	conn      Conn
	pending   Handle
	cancelRun context.CancelFunc
	tornDown  bool

	subs metrics.Observers[ConnState]
}

// ErrTornDown is returned by Run after Teardown.
var ErrTornDown = errors.New("stream client torn down")

func New(cfg Config, series SeriesWriter, attack AttackWriter, opts ...Option) *Client {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultReadLimit
	}

	c := &Client{
		cfg:      cfg,
		series:   series,
		attack:   attack,
		dialer:   WSDialer{HandshakeTimeout: 10 * time.Second, ReadLimit: cfg.ReadLimit},
		schedule: AfterDelay,
		recorder: noopRecorder{},
		logger:   logi.GetLogger(),
		state:    ConnState{State: Connecting},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn to be called on every state transition.
func (c *Client) Subscribe(fn func(ConnState)) (unsubscribe func()) {
	return c.subs.Add(fn)
}

// Run connects and consumes the feed until ctx is done or Teardown is
// called. It returns nil on cancellation and ErrTornDown if the client was
// already torn down.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return ErrTornDown
	}
	c.cancelRun = cancel
	c.mu.Unlock()

	defer c.closeTransport()

	c.logger.Info("Stream client starting", "url", c.cfg.URL)

	for {
		if ctx.Err() != nil {
			return nil
		}

		c.cancelPending()
		c.transition(func(s ConnState) ConnState { return s.Connecting() })

		cause := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}

		handle := c.scheduleReconnect(cause)
		select {
		case <-ctx.Done():
			handle.Cancel()
			return nil
		case <-handle.C():
		}
	}
}

// session dials once and reads until the connection ends. It returns nil for
// a clean close.
func (c *Client) session(ctx context.Context) error {
	connID := uuid.NewString()
	logger := c.logger.With("conn_id", connID)

	conn, err := c.dialer.Dial(ctx, c.cfg.URL)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("Error connecting to feed", "url", c.cfg.URL, "error", err)
		}
		return err
	}

	if !c.attach(conn) {
		conn.Close()
		return nil
	}
	c.transition(func(s ConnState) ConnState { return s.Connected() })
	logger.Info("Connected to feed", "url", c.cfg.URL)

	// unblock ReadMessage when ctx is cancelled
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.closeTransport()
			if isCleanClose(err) {
				logger.Info("Feed connection closed")
				return nil
			}
			if ctx.Err() == nil {
				logger.Error("Feed connection lost", "error", err)
			}
			return err
		}
		c.Dispatch(data)
	}
}

// Dispatch decodes one frame and applies it. Malformed frames are logged and
// dropped; unknown frame types are ignored. It never panics.
func (c *Client) Dispatch(raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.recorder.FrameDropped()
			c.logger.Error("Recovered while dispatching frame", "panic", fmt.Sprint(r))
		}
	}()

	frame, err := telemetrics.DecodeFrame(raw)
	if err != nil {
		c.recorder.FrameDropped()
		c.logger.Warn("Dropping malformed frame", "error", err, "size", len(raw))
		return
	}

	c.recorder.FrameReceived(frame.FrameType())

	switch f := frame.(type) {
	case telemetrics.MetricsFrame:
		for _, v := range f.Sample.Values() {
			c.series.Append(v.Name, metrics.Point{Timestamp: f.Timestamp, Value: v.Value})
		}
	case telemetrics.AttackFrame:
		c.attack.Set(f.Detection.AttackDetected, f.Detection.Details)
	default:
		c.logger.Debug("Ignoring frame", "type", frame.FrameType())
	}
}

// Teardown closes any open connection, cancels a pending reconnect and stops
// Run. It is idempotent and safe to call in any state.
func (c *Client) Teardown() {
	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return
	}
	c.tornDown = true
	conn := c.conn
	c.conn = nil
	pending := c.pending
	c.pending = nil
	cancel := c.cancelRun
	c.mu.Unlock()

	if pending != nil {
		pending.Cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if cancel != nil {
		cancel()
	}
	c.logger.Info("Stream client torn down")
}

func (c *Client) attach(conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return false
	}
	c.conn = conn
	return true
}

func (c *Client) closeTransport() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (c *Client) cancelPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pending != nil {
		pending.Cancel()
	}
}

// scheduleReconnect moves to Disconnected or Error, schedules the next
// attempt and stores its handle, replacing any outstanding one.
func (c *Client) scheduleReconnect(cause error) Handle {
	c.mu.Lock()
	next, delay := c.state.Closed(cause, c.cfg.BaseDelay, c.cfg.MaxDelay)
	c.mu.Unlock()

	handle := c.schedule(delay)

	c.mu.Lock()
	prev := c.pending
	c.pending = handle
	c.state = next
	tornDown := c.tornDown
	c.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}
	if tornDown {
		handle.Cancel()
	}

	c.recorder.ReconnectScheduled(delay)
	c.recorder.StateChanged(next.State)
	c.subs.Notify(next)

	c.logger.Info("Reconnect scheduled", "state", next.State.String(), "attempt", next.Attempt, "delay", delay)
	return handle
}

func (c *Client) transition(fn func(ConnState) ConnState) {
	c.mu.Lock()
	next := fn(c.state)
	c.state = next
	c.mu.Unlock()

	c.recorder.StateChanged(next.State)
	c.subs.Notify(next)
}
