package push

import (
	"context"
	"github.com/pkg/errors"
	"github.com/scanserver/scanner-client/pkg/telemetry"
	"github.com/sirupsen/logrus"
	"sync"
	"time"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

type Options struct {
	Dialer          Dialer
	ReconnectPolicy ReconnectPolicy
	// AutoReconnect schedules a new connect attempt after every close which the
	// caller did not initiate.
	AutoReconnect bool
}

func DefaultOptions() *Options {
	return &Options{
		Dialer:          &WebsocketDialer{},
		ReconnectPolicy: &ConstantDelay{Interval: DefaultReconnectInterval},
		AutoReconnect:   true,
	}
}

// Client owns a single push subscription.  Events are emitted only by the
// goroutine which currently owns the connection (the connecting caller, then
// the read loop), so listeners never run concurrently and see events in
// arrival order.
type Client struct {
	URL      string
	Registry *Registry

	dialer Dialer
	policy ReconnectPolicy

	mu            sync.Mutex
	state         State
	autoReconnect bool
	closing       bool
	conn          Conn
	cancel        context.CancelFunc
	timer         *time.Timer
	attempt       int

	// pendingConnect is a Connect which arrived while a Disconnect was still
	// closing the connection; the close path honours it.
	pendingConnect bool
}

func NewClient(url string, options *Options) *Client {
	if options == nil {
		options = DefaultOptions()
	}
	dialer := options.Dialer
	if dialer == nil {
		dialer = &WebsocketDialer{}
	}
	policy := options.ReconnectPolicy
	if policy == nil {
		policy = &ConstantDelay{Interval: DefaultReconnectInterval}
	}
	return &Client{
		URL:           url,
		Registry:      NewRegistry(),
		dialer:        dialer,
		policy:        policy,
		state:         StateDisconnected,
		autoReconnect: options.AutoReconnect,
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) AutoReconnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoReconnect
}

func (c *Client) SetAutoReconnect(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoReconnect = enabled
	if !enabled {
		c.stopTimerLocked()
	}
}

func (c *Client) On(kind EventKind, listener Listener) Subscription {
	sub := c.Registry.On(kind, listener)
	telemetry.RecordEventValue("push listeners", string(kind), float64(c.Registry.Count(kind)))
	return sub
}

func (c *Client) Off(sub Subscription) bool {
	return c.Registry.Off(sub)
}

func (c *Client) RemoveAllListeners(kinds ...EventKind) {
	c.Registry.RemoveAllListeners(kinds...)
}

// Connect opens the subscription.  It is a no-op if a connection is already
// open or being opened.  If a Disconnect is still closing the connection, the
// connect is deferred until the close completes.  A failed dial is reported to EventError listeners,
// then handled like a close (including any reconnect), and returned.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		if c.closing {
			logrus.Debugf("push client still closing, connecting once closed")
			c.pendingConnect = true
		} else {
			logrus.Debugf("push client already %s, ignoring connect", c.state)
		}
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.closing = false
	c.pendingConnect = false
	c.stopTimerLocked()
	c.mu.Unlock()

	logrus.Debugf("connecting to %s", c.URL)
	conn, err := c.dialer.Dial(ctx, c.URL)
	if err != nil {
		err = errors.Wrapf(err, "unable to connect to %s", c.URL)
		c.emit(&Event{Kind: EventError, Err: err})
		c.handleClose()
		return err
	}

	readCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		cancel()
		logrus.Debugf("disconnect requested while connecting to %s", c.URL)
		if closeErr := conn.Close(); closeErr != nil {
			logrus.Debugf("unable to close connection: %+v", closeErr)
		}
		c.handleClose()
		return nil
	}
	c.conn = conn
	c.cancel = cancel
	c.state = StateConnected
	c.attempt = 0
	c.mu.Unlock()

	logrus.Debugf("connected to %s", c.URL)
	c.emit(&Event{Kind: EventConnected})
	go c.readLoop(readCtx, conn)
	return nil
}

// Disconnect closes the subscription and suppresses the reconnect which would
// otherwise follow.  A later Connect re-arms reconnection.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.closing = true
	c.pendingConnect = false
	c.stopTimerLocked()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	logrus.Debugf("disconnecting from %s", c.URL)
	return conn.Close()
}

func (c *Client) readLoop(ctx context.Context, conn Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			c.mu.Lock()
			closing := c.closing
			c.mu.Unlock()
			if !closing && !errors.Is(err, ErrConnectionClosed) {
				c.emit(&Event{Kind: EventError, Err: err})
			}
			c.handleClose()
			return
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	env, err := ParseEnvelope(data)
	if err != nil {
		telemetry.RecordEvent("push frame", "malformed", err)
		logrus.Warnf("dropping malformed push frame: %s", err.Error())
		logrus.Tracef("malformed frame: %s", string(data))
		return
	}
	c.emit(&Event{Kind: env.Type, Payload: env.Payload})
}

// handleClose is the only place the client becomes Disconnected after a
// connection attempt.
func (c *Client) handleClose() {
	c.mu.Lock()
	c.conn = nil
	c.state = StateDisconnected
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	logrus.Debugf("disconnected from %s", c.URL)
	c.emit(&Event{Kind: EventDisconnected})

	c.mu.Lock()
	if c.pendingConnect {
		c.pendingConnect = false
		c.mu.Unlock()
		if err := c.Connect(context.Background()); err != nil {
			logrus.Debugf("deferred connect failed: %s", err.Error())
		}
		return
	}
	defer c.mu.Unlock()
	if !c.autoReconnect || c.closing || c.state != StateDisconnected {
		return
	}
	delay, ok := c.policy.NextDelay(c.attempt)
	if !ok {
		logrus.Infof("giving up reconnecting to %s after %d attempts", c.URL, c.attempt)
		return
	}
	c.attempt++
	logrus.Debugf("reconnecting to %s in %s", c.URL, delay)
	c.stopTimerLocked()
	c.timer = time.AfterFunc(delay, c.reconnect)
}

func (c *Client) reconnect() {
	c.mu.Lock()
	c.timer = nil
	skip := c.closing || !c.autoReconnect
	c.mu.Unlock()
	if skip {
		return
	}
	telemetry.RecordEvent("push reconnect", c.URL, nil)
	if err := c.Connect(context.Background()); err != nil {
		logrus.Debugf("reconnect failed: %s", err.Error())
	}
}

func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Client) emit(event *Event) {
	telemetry.RecordEvent("push event", string(event.Kind), event.Err)
	c.Registry.Dispatch(event)
}
