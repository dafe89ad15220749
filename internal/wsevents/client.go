// Package wsevents maintains the persistent event-stream connection to the
// chat server: connect, authenticate, dispatch typed and wildcard events to
// registered listeners, and reconnect with capped exponential backoff when
// the connection drops unexpectedly.
package wsevents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/singleflight"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

type Options struct {
	URL   string
	Token string

	Logger *slog.Logger
	Dialer *websocket.Dialer

	PingInterval         time.Duration // default 30s
	AuthTimeout          time.Duration // default 10s
	MaxReconnectAttempts int           // default 10
	ReconnectBaseDelay   time.Duration // default 1s
	ReconnectMaxDelay    time.Duration // default 30s
}

type Client struct {
	logger *slog.Logger
	dialer *websocket.Dialer
	url    string
	token  string

	pingInterval  time.Duration
	authTimeout   time.Duration
	maxReconnects int
	reconnectBase time.Duration
	reconnectCap  time.Duration

	sf      singleflight.Group
	writeMu sync.Mutex

	mu                sync.Mutex
	state             State
	conn              *websocket.Conn
	seq               int64
	listeners         map[string][]*listener
	nextListenerID    uint64
	reconnectAttempts int
	reconnectTimer    *time.Timer
	closed            bool
	runCtx            context.Context
}

func NewClient(opts Options) (*Client, error) {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		return nil, fmt.Errorf("websocket url is required")
	}
	if strings.TrimSpace(opts.Token) == "" {
		return nil, fmt.Errorf("token is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dialer := opts.Dialer
	if dialer == nil {
		d := *websocket.DefaultDialer
		dialer = &d
	}
	c := &Client{
		logger:        logger,
		dialer:        dialer,
		url:           url,
		token:         strings.TrimSpace(opts.Token),
		pingInterval:  opts.PingInterval,
		authTimeout:   opts.AuthTimeout,
		maxReconnects: opts.MaxReconnectAttempts,
		reconnectBase: opts.ReconnectBaseDelay,
		reconnectCap:  opts.ReconnectMaxDelay,
		listeners:     make(map[string][]*listener),
	}
	if c.pingInterval <= 0 {
		c.pingInterval = 30 * time.Second
	}
	if c.authTimeout <= 0 {
		c.authTimeout = 10 * time.Second
	}
	if c.maxReconnects <= 0 {
		c.maxReconnects = 10
	}
	if c.reconnectBase <= 0 {
		c.reconnectBase = time.Second
	}
	if c.reconnectCap <= 0 {
		c.reconnectCap = 30 * time.Second
	}
	return c, nil
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials, authenticates, and starts the read loop. It is idempotent:
// concurrent callers share one in-flight attempt, and a connected client
// returns immediately. A failed attempt also arms the reconnection loop.
func (c *Client) Connect(ctx context.Context) error {
	_, err, _ := c.sf.Do("connect", func() (any, error) {
		return nil, c.connectOnce(ctx)
	})
	return err
}

func (c *Client) connectOnce(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateAuthenticated {
		c.mu.Unlock()
		return nil
	}
	c.closed = false
	c.state = StateConnecting
	c.runCtx = ctx
	c.mu.Unlock()

	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.setState(StateDisconnected)
		c.logger.Warn("ws_dial_error", "error", err.Error())
		c.scheduleReconnect()
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateAuthenticating
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	if err := c.writeJSON(conn, newAuthChallenge(seq, c.token)); err != nil {
		c.dropConn(conn)
		c.setState(StateDisconnected)
		c.scheduleReconnect()
		return fmt.Errorf("send authentication challenge: %w", err)
	}

	authed := make(chan struct{})
	go c.readLoop(conn, authed)

	timer := time.NewTimer(c.authTimeout)
	defer timer.Stop()
	select {
	case <-authed:
	case <-timer.C:
		// readLoop notices the closed conn and arms reconnection.
		_ = conn.Close()
		return fmt.Errorf("authentication timed out after %s", c.authTimeout)
	case <-ctx.Done():
		_ = conn.Close()
		return ctx.Err()
	}

	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return fmt.Errorf("connection replaced during authentication")
	}
	c.state = StateAuthenticated
	c.reconnectAttempts = 0
	c.mu.Unlock()

	go c.pingLoop(conn)
	c.logger.Info("ws_authenticated", "url", c.url)
	c.dispatch(Event{Name: EventAuthenticated, ReceivedAt: time.Now()})
	return nil
}

// Disconnect is deliberate shutdown: it cancels any pending reconnection,
// closes the socket, removes all listeners, and resets authentication state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.reconnectAttempts = 0
	c.listeners = make(map[string][]*listener)
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	}
	c.logger.Info("ws_disconnected")
}

func (c *Client) readLoop(conn *websocket.Conn, authed chan struct{}) {
	var authOnce sync.Once
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleConnLost(conn, err)
			return
		}
		frame, perr := parseFrame(raw)
		if perr != nil {
			c.logger.Warn("ws_frame_dropped", "error", perr.Error())
			continue
		}
		if !frame.isEventFrame() {
			continue
		}
		if frame.Event == EventHello {
			authOnce.Do(func() { close(authed) })
			continue
		}
		c.dispatch(Event{
			Name:       frame.Event,
			Data:       frame.Data,
			Broadcast:  frame.Broadcast,
			Seq:        frame.Seq,
			Frame:      frame,
			ReceivedAt: time.Now(),
		})
	}
}

func (c *Client) handleConnLost(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// A newer connection took over; this loop is stale.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateDisconnected
	closed := c.closed
	c.mu.Unlock()
	_ = conn.Close()
	if closed {
		return
	}
	c.logger.Warn("ws_connection_lost", "error", err.Error())
	c.scheduleReconnect()
}

func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.closed || c.reconnectTimer != nil {
		c.mu.Unlock()
		return
	}
	attempt := c.reconnectAttempts + 1
	if attempt > c.maxReconnects {
		c.mu.Unlock()
		c.logger.Error("ws_reconnect_gave_up", "attempts", c.maxReconnects)
		c.dispatch(Event{Name: EventConnectionFailed, ReceivedAt: time.Now()})
		return
	}
	c.reconnectAttempts = attempt
	delay := reconnectDelay(c.reconnectBase, c.reconnectCap, attempt)
	ctx := c.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		closed := c.closed
		c.mu.Unlock()
		if closed || ctx.Err() != nil {
			return
		}
		// Failure paths inside Connect arm the next attempt.
		_ = c.Connect(ctx)
	})
	c.mu.Unlock()
	c.logger.Warn("ws_reconnect_scheduled", "attempt", attempt, "delay", delay.String())
}

// reconnectDelay is min(base * 2^attempt, ceiling).
func reconnectDelay(base, ceiling time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= ceiling || d <= 0 {
			return ceiling
		}
	}
	return d
}

func (c *Client) dropConn(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		active := c.conn == conn
		c.mu.Unlock()
		if !active {
			return
		}
		c.writeMu.Lock()
		err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		c.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

func (c *Client) writeJSON(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// dispatch invokes the exact-name listeners then the wildcard listeners over
// a snapshot. A panicking listener is logged and does not stop the rest.
func (c *Client) dispatch(ev Event) {
	for _, l := range c.snapshotFor(ev.Name) {
		c.invoke(l, ev)
	}
}

func (c *Client) invoke(l *listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("ws_listener_panic", "event", ev.Name, "panic", fmt.Sprint(r))
		}
	}()
	l.fn(ev)
}
