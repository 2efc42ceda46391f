package devhub

import (
	"fmt"
	"sync"
	"time"

	"example.com/robo-sync/internal/signalr"
	"github.com/gorilla/websocket"
)

const handshakeWait = 5 * time.Second

// Client is one connected websocket.
type Client struct {
	ID       string
	Username string

	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// push queues a frame; a slow client loses frames rather than stalling the hub.
func (c *Client) push(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// handshake answers the protocol handshake and returns any frames the
// client sent along with it.
func (c *Client) handshake() ([]byte, error) {
	_ = c.ws.SetReadDeadline(time.Now().Add(handshakeWait))
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	_ = c.ws.SetReadDeadline(time.Time{})

	_, rest, err := signalr.ParseHandshakeRequest(data)
	if err != nil {
		reply, _ := signalr.Frame(signalr.HandshakeResponse{Error: err.Error()})
		_ = c.ws.WriteMessage(websocket.TextMessage, reply)
		return nil, err
	}

	reply, _ := signalr.Frame(signalr.HandshakeResponse{})
	if err := c.ws.WriteMessage(websocket.TextMessage, reply); err != nil {
		return nil, fmt.Errorf("write handshake: %w", err)
	}
	return rest, nil
}

func (c *Client) writeLoop(keepAlive time.Duration) {
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteMessage(websocket.TextMessage, signalr.PingFrame()); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
