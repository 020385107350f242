package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
)

const DefaultReconnectDelay = 3 * time.Second

// Dialer opens the push connection. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

type Clock interface {
	NewTimer(d time.Duration) Timer
}

type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

type Options struct {
	URL            string
	Dialer         Dialer
	Clock          Clock
	ReconnectDelay time.Duration
	Logger         arbor.ILogger
	// Buffer is the capacity of the event channel.
	Buffer int
}

// Channel is a receive-only telemetry connection that reconnects after a
// fixed delay until it is closed.
type Channel struct {
	url    string
	dialer Dialer
	clock  Clock
	delay  time.Duration
	logger arbor.ILogger

	events chan Event
	done   chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
}

func New(opts Options) (*Channel, error) {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		return nil, errors.New("telemetry url is required")
	}
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		return nil, fmt.Errorf("telemetry url must use ws:// or wss://: %s", url)
	}
	c := &Channel{
		url:    url,
		dialer: opts.Dialer,
		clock:  opts.Clock,
		delay:  opts.ReconnectDelay,
		logger: opts.Logger,
		done:   make(chan struct{}),
	}
	if c.dialer == nil {
		c.dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}
	if c.clock == nil {
		c.clock = systemClock{}
	}
	if c.delay <= 0 {
		c.delay = DefaultReconnectDelay
	}
	if c.logger == nil {
		c.logger = arbor.NewLogger()
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	c.events = make(chan Event, buffer)
	return c, nil
}

func (c *Channel) URL() string { return c.url }

// Events is closed once the channel has shut down.
func (c *Channel) Events() <-chan Event { return c.events }

// Start begins connecting in the background. Calling it again, or after
// Close, does nothing.
func (c *Channel) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.run(runCtx)
}

// Close tears down the socket and any pending reconnect, then waits for the
// background loop to exit. It is safe to call more than once.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.closed = true
	started := c.started
	cancel := c.cancel
	c.mu.Unlock()

	if !started {
		close(c.events)
		close(c.done)
		return
	}
	cancel()
	<-c.done
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)
	defer close(c.events)

	for attempt := 1; ; attempt++ {
		err := c.connectAndRead(ctx, attempt)
		if ctx.Err() != nil {
			c.logger.Debug().Int("attempt", attempt).Msg("telemetry channel shut down")
			return
		}
		c.logger.Warn().Err(err).Int("attempt", attempt).Str("retry_in", c.delay.String()).Msg("telemetry channel disconnected")
		if !c.emit(ctx, Disconnected{Err: err, Attempt: attempt, RetryIn: c.delay}) {
			return
		}

		timer := c.clock.NewTimer(c.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C():
		}
	}
}

func (c *Channel) connectAndRead(ctx context.Context, attempt int) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fmt.Errorf("dial %s: %w", c.url, err)
		c.emit(ctx, TransportError{Err: err})
		return err
	}
	defer conn.Close()

	c.logger.Info().Str("url", c.url).Int("attempt", attempt).Msg("telemetry channel connected")
	if !c.emit(ctx, Connected{URL: c.url, Attempt: attempt}) {
		return ctx.Err()
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		kind, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.emit(ctx, TransportError{Err: fmt.Errorf("read frame: %w", err)})
			}
			return err
		}
		if kind != websocket.TextMessage {
			c.logger.Debug().Int("kind", kind).Msg("ignoring non-text telemetry frame")
			continue
		}
		ev, err := Decode(frame)
		if err != nil {
			c.logger.Warn().Err(err).Msg("undecodable telemetry frame")
			if !c.emit(ctx, TransportError{Err: err}) {
				return ctx.Err()
			}
			continue
		}
		if !c.emit(ctx, ev) {
			return ctx.Err()
		}
	}
}

// emit blocks until the consumer takes the event so that no frame is dropped.
func (c *Channel) emit(ctx context.Context, ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

type systemClock struct{}

func (systemClock) NewTimer(d time.Duration) Timer {
	return systemTimer{t: time.NewTimer(d)}
}

type systemTimer struct {
	t *time.Timer
}

func (s systemTimer) C() <-chan time.Time { return s.t.C }
func (s systemTimer) Stop() bool          { return s.t.Stop() }
