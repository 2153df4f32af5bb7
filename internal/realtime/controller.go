// Package realtime maintains the workspace client's single WebSocket
// connection to the hub: lifecycle and automatic reconnection with
// exponential backoff, replay of topic subscriptions after reconnect, and
// fan-out of decoded events to local handlers.
package realtime

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/crewloop-ai/crewloop/pkg/protocol"
)

// State is the transport connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Conn is the transport-level connection the controller reads frames from.
// Production connections are gorilla websockets; tests substitute fakes.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Dialer opens a transport connection to the realtime endpoint.
type Dialer func(ctx context.Context, url string) (Conn, error)

// wsConn adapts a gorilla websocket connection to Conn, discarding the
// frame type: the hub only sends text frames.
type wsConn struct {
	*websocket.Conn
}

func (w wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.Conn.ReadMessage()
	return data, err
}

// Defaults for reconnect behavior.
const (
	DefaultReconnectBase    = time.Second
	DefaultMaxReconnectWait = 30 * time.Second
	DefaultMaxAttempts      = 10

	handshakeTimeout = 10 * time.Second
)

// Options configures a Controller.
type Options struct {
	// URL is the realtime endpoint (ws:// or wss://).
	URL string

	// ReconnectBase is the delay before the first reconnect attempt;
	// each consecutive failure doubles it, up to MaxReconnectWait.
	ReconnectBase    time.Duration
	MaxReconnectWait time.Duration

	// MaxAttempts caps consecutive failed connection attempts. Once
	// reached the controller gives up until Start is called again.
	MaxAttempts int

	TLSSkipVerify bool // dev only

	// Dialer overrides the websocket dialer. Tests use this.
	Dialer Dialer

	Logger *slog.Logger
}

// Controller owns the one live connection to the hub. It is constructed
// once by the application shell and injected into whatever needs it; the
// single-connection invariant is the shell's single instance, not a global.
type Controller struct {
	opts       Options
	logger     *slog.Logger
	dial       Dialer
	dispatcher *dispatcher
	registry   *registry

	// wait blocks for a backoff delay; swapped out in tests to control
	// virtual time. Returns false when ctx is canceled first.
	wait func(ctx context.Context, d time.Duration) bool

	mu      sync.Mutex
	running bool
	state   State
	conn    Conn
	cancel  context.CancelFunc

	listenerMu sync.Mutex
	listeners  []stateListener
	listenerID uint64
}

type stateListener struct {
	id uint64
	fn func(State)
}

// NewController creates a controller. It does not connect until Start.
func NewController(opts Options) *Controller {
	if opts.ReconnectBase <= 0 {
		opts.ReconnectBase = DefaultReconnectBase
	}
	if opts.MaxReconnectWait <= 0 {
		opts.MaxReconnectWait = DefaultMaxReconnectWait
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Controller{
		opts:   opts,
		logger: opts.Logger.With("component", "realtime"),
		wait:   waitTimer,
	}

	c.dial = opts.Dialer
	if c.dial == nil {
		c.dial = func(ctx context.Context, url string) (Conn, error) {
			dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
			if opts.TLSSkipVerify {
				dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
			}
			conn, _, err := dialer.DialContext(ctx, url, http.Header{})
			if err != nil {
				return nil, err
			}
			return wsConn{conn}, nil
		}
	}

	c.dispatcher = newDispatcher(c.logger)
	c.registry = newRegistry(c.trySend)
	return c
}

// Start opens the connection and keeps it alive until Stop. Idempotent: a
// second call while connecting or connected is a no-op. It returns
// immediately; connection progress is observable via OnStateChange.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	changed := c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	if changed {
		c.notifyState(StateConnecting)
	}
	go c.run(ctx)
}

// Stop tears down the live connection, if any, and cancels any pending
// reconnect timer. No reconnect attempt occurs after Stop returns until
// Start is called again. Safe to call when never started.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	c.cancel = nil
	conn := c.conn
	c.conn = nil
	changed := c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if changed {
		c.notifyState(StateDisconnected)
	}
}

// State returns the current connection state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnEvent registers a handler invoked once per inbound event, in arrival
// order. Returns an unsubscribe function.
func (c *Controller) OnEvent(fn Handler) func() {
	return c.dispatcher.add(fn)
}

// OnStateChange registers fn to run on every connection state transition.
// Returns an unsubscribe function.
func (c *Controller) OnStateChange(fn func(State)) func() {
	c.listenerMu.Lock()
	c.listenerID++
	id := c.listenerID
	c.listeners = append(c.listeners, stateListener{id: id, fn: fn})
	c.listenerMu.Unlock()

	return func() {
		c.listenerMu.Lock()
		defer c.listenerMu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				break
			}
		}
	}
}

// Subscribe records interest in a topic. While connected the hub is told
// immediately; while disconnected the interest is recorded and replayed on
// the next connect. The returned release function is idempotent.
func (c *Controller) Subscribe(topicType protocol.TopicType, topicID string) func() {
	return c.registry.subscribe(Topic{Type: topicType, ID: topicID})
}

// ActiveTopics returns a snapshot of all subscribed topics.
func (c *Controller) ActiveTopics() []Topic {
	return c.registry.active()
}

// run is the connection loop: dial, read until the connection drops, back
// off, repeat. A successful connection resets the backoff schedule; after
// MaxAttempts consecutive failures it emits a synthetic error event and
// gives up until the next Start.
func (c *Controller) run(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.ReconnectBase
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = c.opts.MaxReconnectWait
	bo.MaxElapsedTime = 0
	bo.Reset()

	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}

		opened, err := c.connectOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Warn("connection failed", "error", err)
		}
		if opened {
			// The transport opened and later dropped; the next
			// drop starts backoff from the base delay again.
			bo.Reset()
			attempts = 0
		}

		attempts++
		if attempts >= c.opts.MaxAttempts {
			c.giveUp(attempts)
			return
		}

		delay := bo.NextBackOff()
		c.setState(StateConnecting)
		c.logger.Info("reconnecting", "delay", delay, "attempt", attempts)
		if !c.wait(ctx, delay) {
			return
		}
	}
}

// connectOnce dials and reads frames until the connection drops or ctx is
// canceled. opened reports whether the transport connection was
// established at all.
func (c *Controller) connectOnce(ctx context.Context) (opened bool, err error) {
	conn, err := c.dial(ctx, c.opts.URL)
	if err != nil {
		return false, fmt.Errorf("dial hub: %w", err)
	}

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		conn.Close()
		return true, nil
	}
	c.conn = conn
	c.setStateLocked(StateConnected)
	c.mu.Unlock()
	c.notifyState(StateConnected)

	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		changed := c.running && c.setStateLocked(StateDisconnected)
		c.mu.Unlock()
		conn.Close()
		if changed {
			c.notifyState(StateDisconnected)
		}
	}()

	c.logger.Info("connected", "url", c.opts.URL)

	// Replay every active subscription so the hub's view of our
	// interests matches the registry's.
	for _, t := range c.registry.active() {
		msg := protocol.Control{Action: t.Type.SubscribeAction(), ID: t.ID}
		if err := conn.WriteJSON(msg); err != nil {
			return true, fmt.Errorf("replay subscription %s/%s: %w", t.Type, t.ID, err)
		}
	}

	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, fmt.Errorf("read frame: %w", err)
		}

		ev, err := protocol.DecodeEvent(frame)
		if err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		c.dispatcher.dispatch(ev)
	}
}

// trySend transmits a control frame on the live connection, if any.
// Send failures are not surfaced to callers: a dropped connection will
// resynchronize all subscriptions on reconnect anyway.
func (c *Controller) trySend(msg protocol.Control) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.WriteJSON(msg); err != nil {
		c.logger.Warn("control send failed", "action", msg.Action, "error", err)
	}
}

func (c *Controller) giveUp(attempts int) {
	c.mu.Lock()
	c.running = false
	cancel := c.cancel
	c.cancel = nil
	changed := c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	c.logger.Error("reconnect attempts exhausted", "attempts", attempts)
	if changed {
		c.notifyState(StateDisconnected)
	}
	c.dispatcher.dispatch(protocol.Event{
		Kind:      protocol.KindError,
		Timestamp: time.Now(),
		Payload: &protocol.ErrorInfo{
			Code:    "reconnect_exhausted",
			Message: fmt.Sprintf("gave up after %d connection attempts", attempts),
		},
	})
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	changed := c.running && c.setStateLocked(s)
	c.mu.Unlock()
	if changed {
		c.notifyState(s)
	}
}

func (c *Controller) setStateLocked(s State) bool {
	if c.state == s {
		return false
	}
	c.state = s
	return true
}

func (c *Controller) notifyState(s State) {
	c.listenerMu.Lock()
	listeners := make([]stateListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.listenerMu.Unlock()

	for _, l := range listeners {
		l.fn(s)
	}
}

func waitTimer(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
