package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"example.com/robo-sync/internal/signalr"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

type completion struct {
	result json.RawMessage
	err    error
}

// conn is one physical websocket to a hub.
type conn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	keepAlive     time.Duration
	serverTimeout time.Duration

	closeOnce sync.Once

	mu      sync.Mutex
	pending map[string]chan completion
	// frames that arrived together with the handshake response
	early []byte
}

func dial(ctx context.Context, cfg Config) (*conn, error) {
	token := ""
	if cfg.AccessToken != nil {
		t, err := cfg.AccessToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("access token: %w", err)
		}
		token = t
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("hub url: %w", err)
	}
	hdr := http.Header{}
	if token != "" {
		q := u.Query()
		q.Set("access_token", token)
		u.RawQuery = q.Encode()
		hdr.Set("Authorization", "Bearer "+token)
	}

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		}
	}

	ws, resp, err := dialer.DialContext(ctx, u.String(), hdr)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", cfg.URL, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	// hub protocol handshake
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteMessage(websocket.TextMessage, signalr.HandshakeFrame()); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("send handshake: %w", err)
	}
	_ = ws.SetReadDeadline(time.Now().Add(cfg.HandshakeTimeout))
	_, data, err := ws.ReadMessage()
	if err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("read handshake: %w", err)
	}
	rest, err := signalr.ParseHandshakeResponse(data)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	_ = ws.SetReadDeadline(time.Time{})

	return &conn{
		ws:            ws,
		send:          make(chan []byte, 64),
		done:          make(chan struct{}),
		keepAlive:     cfg.KeepAliveInterval,
		serverTimeout: cfg.ServerTimeout,
		pending:       make(map[string]chan completion),
		early:         rest,
	}, nil
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
		c.failPending(ErrConnectionLost)
	})
}

// shutdown says goodbye politely before closing.
func (c *conn) shutdown() {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.close()
}

func (c *conn) enqueue(ctx context.Context, frame []byte) error {
	select {
	case <-c.done:
		return ErrConnectionLost
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrConnectionLost
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *conn) register(id string) chan completion {
	ch := make(chan completion, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	return ch
}

func (c *conn) unregister(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *conn) complete(m signalr.Message) bool {
	c.mu.Lock()
	ch, ok := c.pending[m.InvocationID]
	delete(c.pending, m.InvocationID)
	c.mu.Unlock()
	if !ok {
		return false
	}
	if m.Error != "" {
		ch <- completion{err: &ServerError{Message: m.Error}}
	} else {
		ch <- completion{result: m.Result}
	}
	return true
}

func (c *conn) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- completion{err: err}
		delete(c.pending, id)
	}
}

// writeLoop owns all writes to the socket.
func (c *conn) writeLoop() {
	var tick <-chan time.Time
	if c.keepAlive > 0 {
		ticker := time.NewTicker(c.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-tick:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, signalr.PingFrame()); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

type frameSink interface {
	onMessage(signalr.Message)
	onBadFrame(error)
}

// readLoop hands every frame to sink until the socket fails or the hub
// sends a close message.
func (c *conn) readLoop(sink frameSink) error {
	if len(c.early) > 0 {
		for _, f := range signalr.Split(c.early) {
			if err := c.handleFrame(f, sink); err != nil {
				return err
			}
		}
		c.early = nil
	}

	for {
		if c.serverTimeout > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(c.serverTimeout))
		}
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		for _, f := range signalr.Split(data) {
			if err := c.handleFrame(f, sink); err != nil {
				return err
			}
		}
	}
}

type closedByServer struct {
	msg string
}

func (e closedByServer) Error() string {
	if e.msg == "" {
		return "hub closed the connection"
	}
	return "hub closed the connection: " + e.msg
}

func (c *conn) handleFrame(f []byte, sink frameSink) error {
	m, err := signalr.Parse(f)
	if err != nil {
		// a broken frame is not worth dropping the connection for
		sink.onBadFrame(err)
		return nil
	}
	switch m.Type {
	case signalr.TypeCompletion:
		c.complete(m)
	case signalr.TypeClose:
		return closedByServer{msg: m.Error}
	default:
		sink.onMessage(m)
	}
	return nil
}
