// Package channel keeps the live order-notification connection. It is open
// exactly while a session is active.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/sy1125/MyApp/pkg/client"
	"github.com/sy1125/MyApp/pkg/domain"
)

const maxReadBytes = 1 << 20 // 1MiB

// ErrNotConnected is returned by Emit when no connection is up.
var ErrNotConnected = errors.New("channel not connected")

// Handler receives inbound orders in arrival order.
type Handler func(domain.Order)

// errHandshakeExpired marks a dial the server refused with an expired
// access credential.
var errHandshakeExpired = errors.New("handshake rejected: access credential expired")

// TokenSource yields the access credential used for each dial and renews it
// when a handshake is refused as expired.
type TokenSource interface {
	Credentials() (access, refresh string, gen uint64)
	Refresh(ctx context.Context) error
}

// Config controls the dial target and reconnect pacing.
type Config struct {
	URL        string
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Channel is a reconnecting WebSocket client. Frames arriving after Close are
// dropped; nothing is buffered across connections.
type Channel struct {
	cfg     Config
	tokens  TokenSource
	handler Handler
	log     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	conn   *websocket.Conn

	writeMu sync.Mutex
}

// New creates a closed Channel.
func New(cfg Config, tokens TokenSource, h Handler, log *slog.Logger) *Channel {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Channel{
		cfg:     cfg,
		tokens:  tokens,
		handler: h,
		log:     log.With("component", "channel"),
	}
}

// SessionStarted opens the channel.
func (c *Channel) SessionStarted(context.Context, domain.Session) { c.Open() }

// SessionEnded closes the channel.
func (c *Channel) SessionEnded() { c.Close() }

// Open starts the connect loop. Opening an open channel is a no-op.
func (c *Channel) Open() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, c.done)
}

// Close tears the connection down and waits for the read loop to exit, so no
// handler call happens after Close returns.
func (c *Channel) Close() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.log.Info("channel closed")
}

// Connected reports whether a connection is currently up.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Emit sends one event on the current connection.
func (c *Channel) Emit(ctx context.Context, event string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return c.write(ctx, conn, event, payload)
}

func (c *Channel) write(ctx context.Context, conn *websocket.Conn, event string, payload any) error {
	env, err := NewEnvelope(event, payload, time.Now())
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("channel.Emit %s: %w", event, err)
	}
	return nil
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	backoff := c.cfg.MinBackoff
	for {
		connected, err := c.connect(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = c.cfg.MinBackoff
		}
		wait := backoff/2 + rand.N(backoff/2+1)
		c.log.Warn("channel disconnected, reconnecting", "err", err, "in", wait)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		backoff = min(backoff*2, c.cfg.MaxBackoff)
	}
}

// connect runs one connection until it fails or ctx ends. It reports whether
// the handshake succeeded.
func (c *Channel) connect(ctx context.Context) (bool, error) {
	conn, err := c.dial(ctx)
	if errors.Is(err, errHandshakeExpired) {
		if rerr := c.tokens.Refresh(ctx); rerr != nil {
			return false, fmt.Errorf("refresh after expired handshake: %w", rerr)
		}
		c.log.Info("access credential refreshed, redialing")
		conn, err = c.dial(ctx)
	}
	if err != nil {
		return false, err
	}
	conn.SetReadLimit(maxReadBytes)
	defer conn.CloseNow() //nolint:errcheck

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	if err := c.write(ctx, conn, EventAcceptOrder, "hello"); err != nil {
		return true, err
	}
	c.log.Info("channel connected", "url", c.cfg.URL)

	for {
		mt, data, err := conn.Read(ctx)
		if err != nil {
			return true, err
		}
		if mt != websocket.MessageText && mt != websocket.MessageBinary {
			continue
		}
		c.dispatch(ctx, data)
	}
}

// dial opens one connection with the current access credential.
func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	h := http.Header{}
	if access, _, _ := c.tokens.Credentials(); access != "" {
		h.Set("Authorization", "Bearer "+access)
	}
	conn, resp, err := websocket.Dial(ctx, c.cfg.URL, &websocket.DialOptions{HTTPHeader: h})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == client.StatusTokenExpired {
			return nil, fmt.Errorf("dial: %w", errHandshakeExpired)
		}
		return nil, fmt.Errorf("dial: %w", err)
	}
	return conn, nil
}

func (c *Channel) dispatch(ctx context.Context, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn("dropped malformed frame", "err", err)
		return
	}
	if err := env.Validate(); err != nil {
		c.log.Warn("dropped invalid frame", "err", err)
		return
	}
	switch env.Type {
	case EventOrder:
		var o domain.Order
		if err := json.Unmarshal(env.Payload, &o); err != nil || o.OrderID == "" {
			c.log.Warn("dropped order frame", "id", env.ID, "err", err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.log.Debug("order received", "order_id", o.OrderID)
		c.handler(o)
	default:
		c.log.Debug("ignored event", "type", env.Type)
	}
}
