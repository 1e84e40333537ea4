package realtime

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State is the lifecycle state of the push channel.
type State int

const (
	StateNotStarted State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateDisconnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// TokenSource supplies the bearer token used to authenticate the channel.
// It is consulted on every (re)connect attempt so a refreshed token is
// picked up without restarting the connection.
type TokenSource func() (string, error)

// Connection maintains exactly one authenticated push channel to the hub and
// re-establishes it automatically after transport failures. Transient drops
// are never surfaced as errors; the channel degrades to reconnecting and REST
// operations remain available.
//
// No replay of missed events is requested after a reconnect: delivery is
// at-most-once, and the next fetch or push reconciles any gap.
type Connection struct {
	hubURL string
	tokens TokenSource
	router *Router
	logger *zap.Logger

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	cancel    context.CancelFunc
	done      chan struct{}
	stateSubs []func(State)
}

// NewConnection creates a connection manager for the given hub endpoint.
// Incoming events are dispatched through the supplied router.
func NewConnection(hubURL string, tokens TokenSource, router *Router, logger *zap.Logger) *Connection {
	return &Connection{
		hubURL: hubURL,
		tokens: tokens,
		router: router,
		logger: logger,
		state:  StateNotStarted,
	}
}

// Start opens the push channel. It is idempotent: a second call while the
// channel is connecting, connected, or reconnecting is a no-op. When no
// session token is available the call aborts silently; the user is simply
// not logged in yet.
func (c *Connection) Start() {
	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateConnected, StateReconnecting:
		c.mu.Unlock()
		return
	}

	token, err := c.tokens()
	if err != nil || token == "" {
		c.mu.Unlock()
		c.logger.Debug("no session token, push channel not started")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	subs := c.transitionLocked(StateConnecting)
	c.mu.Unlock()
	notify(subs, StateConnecting)

	go c.run(ctx, done)
}

// Stop tears down the channel. Safe to call even if never started.
func (c *Connection) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	conn := c.conn
	done := c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if done != nil {
		<-done
	}
}

// IsConnected reports whether the channel is currently established. UIs may
// poll this, but OnStateChange is the preferred, event-driven signal.
func (c *Connection) IsConnected() bool {
	return c.CurrentState() == StateConnected
}

// CurrentState returns the channel state.
func (c *Connection) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnStateChange registers a subscriber invoked on every state transition.
// Subscribers run synchronously in registration order.
func (c *Connection) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateSubs = append(c.stateSubs, fn)
}

func (c *Connection) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0 // retry until stopped

	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.setState(StateDisconnected)
				return
			}
			wait := policy.NextBackOff()
			c.logger.Debug("push channel connect failed, retrying",
				zap.Error(err), zap.Duration("backoff", wait))
			c.setState(StateReconnecting)
			select {
			case <-ctx.Done():
				c.setState(StateDisconnected)
				return
			case <-time.After(wait):
			}
			continue
		}

		policy.Reset()
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.setState(StateConnected)

		err = c.readLoop(conn)
		conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}
		c.logger.Debug("push channel dropped, reconnecting", zap.Error(err))
		c.setState(StateReconnecting)
	}
}

func (c *Connection) dial(ctx context.Context) (*websocket.Conn, error) {
	token, err := c.tokens()
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(c.hubURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// readLoop dispatches frames in transport order. Handlers for one frame run
// to completion before the next frame is read.
func (c *Connection) readLoop(conn *websocket.Conn) error {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return err
		}
		c.router.Dispatch(env.Event, env.Data)
	}
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	subs := c.transitionLocked(s)
	c.mu.Unlock()
	notify(subs, s)
}

// transitionLocked updates the state and returns the subscribers to notify,
// or nil when the state did not change. Callers notify after unlocking so
// subscribers can read connection state.
func (c *Connection) transitionLocked(s State) []func(State) {
	if c.state == s {
		return nil
	}
	c.state = s
	subs := make([]func(State), len(c.stateSubs))
	copy(subs, c.stateSubs)
	return subs
}

func notify(subs []func(State), s State) {
	for _, fn := range subs {
		fn(s)
	}
}
