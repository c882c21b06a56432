package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"roomcast/internal/core/ports"
	"roomcast/pkg/retry"
	"roomcast/pkg/tracing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configure one signaling connection.
type Options struct {
	URL              string
	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
	PingInterval     time.Duration
	PongTimeout      time.Duration
	EmitsPerSecond   float64
	EmitBurst        int
	Reconnect        retry.Config

	// RTTObserver, when set, receives the round-trip time of every
	// acknowledged request.
	RTTObserver func(event string, d time.Duration)
}

// envelope is the wire frame. Acks echo the correlation ID of the request
// they answer.
type envelope struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is an acknowledgement-style RPC client over a persistent WebSocket
// connection. It implements ports.SignalBus.
type Client struct {
	opts Options

	conn    *websocket.Conn
	writeMu sync.Mutex

	handlersMu sync.RWMutex
	handlers   map[string][]func(json.RawMessage)

	pendingMu sync.Mutex
	pending   map[string]chan json.RawMessage

	limiter *rate.Limiter
	logger  *zap.SugaredLogger

	done      chan struct{}
	closeOnce sync.Once
}

var _ ports.SignalBus = (*Client)(nil)

// Dial connects to the signaling endpoint. The connection handshake is the
// only hard-deadline operation in this layer; it is bounded by
// HandshakeTimeout and retried with backoff.
func Dial(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.EmitsPerSecond <= 0 {
		opts.EmitsPerSecond = 100
	}
	if opts.EmitBurst <= 0 {
		opts.EmitBurst = 200
	}

	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}

	conn, err := retry.DoWithResult(ctx, opts.Reconnect, func() (*websocket.Conn, error) {
		conn, _, err := dialer.DialContext(ctx, opts.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
		}
		return conn, nil
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		opts:     opts,
		conn:     conn,
		handlers: make(map[string][]func(json.RawMessage)),
		pending:  make(map[string]chan json.RawMessage),
		limiter:  rate.NewLimiter(rate.Limit(opts.EmitsPerSecond), opts.EmitBurst),
		logger:   logger.Sugar().With("endpoint", opts.URL),
		done:     make(chan struct{}),
	}

	if opts.PongTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(opts.PongTimeout))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(opts.PongTimeout))
			return nil
		})
	}

	go c.readPump()
	if opts.PingInterval > 0 {
		go c.pingLoop()
	}

	c.logger.Infow("signaling connected")
	return c, nil
}

// Endpoint returns the connected URL.
func (c *Client) Endpoint() string {
	return c.opts.URL
}

// On registers a handler for a named inbound event. Handlers run on the
// read loop and must not block.
func (c *Client) On(event string, handler func(data json.RawMessage)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
}

// Emit sends a fire-and-forget event.
func (c *Client) Emit(ctx context.Context, event string, payload any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return c.send(envelope{Event: event}, payload)
}

// Request sends an event and blocks until the acknowledgement arrives, the
// per-request timeout elapses, or ctx is cancelled. The ack payload is
// unmarshaled into out when out is non-nil.
func (c *Client) Request(ctx context.Context, event string, payload any, out any) error {
	ctx, span := tracing.TraceSignalRequest(ctx, event)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("request %s: %w", event, err)
	}

	id := uuid.NewString()
	ch := make(chan json.RawMessage, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	started := time.Now()
	if err := c.send(envelope{Event: event, ID: id}, payload); err != nil {
		tracing.RecordError(ctx, err)
		return err
	}

	timer := time.NewTimer(c.opts.RequestTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		tracing.RecordError(ctx, ctx.Err())
		return fmt.Errorf("request %s: %w", event, ctx.Err())
	case <-c.done:
		return fmt.Errorf("request %s: connection closed", event)
	case <-timer.C:
		err := fmt.Errorf("request %s: ack timeout after %s", event, c.opts.RequestTimeout)
		tracing.RecordError(ctx, err)
		return err
	case data := <-ch:
		if c.opts.RTTObserver != nil {
			c.opts.RTTObserver(event, time.Since(started))
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("request %s: bad ack payload: %w", event, err)
		}
		return nil
	}
}

// Close tears the connection down. Pending requests fail with a closed
// connection error.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) send(env envelope, payload any) error {
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", env.Event, err)
		}
		env.Data = data
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("write %s: %w", env.Event, err)
	}
	return nil
}

func (c *Client) readPump() {
	defer c.Close()

	for {
		var env envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					c.logger.Warnw("signaling read failed", "error", err)
				}
			}
			return
		}

		if env.ID != "" {
			c.pendingMu.Lock()
			ch, ok := c.pending[env.ID]
			c.pendingMu.Unlock()
			if ok {
				ch <- env.Data
				continue
			}
			// Late ack after the request timed out; drop it.
			continue
		}

		c.dispatch(env.Event, env.Data)
	}
}

func (c *Client) dispatch(event string, data json.RawMessage) {
	c.handlersMu.RLock()
	handlers := make([]func(json.RawMessage), len(c.handlers[event]))
	copy(handlers, c.handlers[event])
	c.handlersMu.RUnlock()

	if len(handlers) == 0 {
		c.logger.Debugw("unhandled signaling event", "event", event)
		return
	}
	for _, h := range handlers {
		h(data)
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Warnw("ping failed", "error", err)
				c.Close()
				return
			}
		}
	}
}
