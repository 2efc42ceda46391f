// Package devhub is a small in-process hub that speaks the same push
// protocol as the real backend: handshake, invocations with completions,
// named groups and broadcast. It backs local runs and transport tests.
package devhub

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"example.com/robo-sync/internal/events"
	"example.com/robo-sync/internal/signalr"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // dev only
}

// MethodFunc serves one hub method. A non-nil result is sent back in the
// completion.
type MethodFunc func(c *Client, args []json.RawMessage) (any, error)

type Hub struct {
	log       *logrus.Entry
	keepAlive time.Duration

	mu      sync.Mutex
	clients map[string]*Client
	groups  map[string]map[string]*Client
	methods map[string]MethodFunc
	calls   map[string]int
	ready   map[string]bool // group + "/" + username
}

type Option func(*Hub)

// WithKeepAlive sets how often the hub pings idle clients.
func WithKeepAlive(d time.Duration) Option {
	return func(h *Hub) { h.keepAlive = d }
}

func New(log *logrus.Entry, opts ...Option) *Hub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	h := &Hub{
		log:       log.WithField("component", "devhub"),
		keepAlive: 25 * time.Second,
		clients:   make(map[string]*Client),
		groups:    make(map[string]map[string]*Client),
		methods:   make(map[string]MethodFunc),
		calls:     make(map[string]int),
		ready:     make(map[string]bool),
	}
	for _, o := range opts {
		o(h)
	}

	h.methods["JoinGame"] = h.joinMethod
	h.methods["JoinLobby"] = h.joinMethod
	h.methods["LeaveGame"] = h.leaveMethod
	h.methods["LeaveLobby"] = h.leaveMethod
	h.methods["SendToGroup"] = h.sendToGroupMethod
	h.methods["TogglePlayerReady"] = h.toggleReadyMethod
	return h
}

// Handle registers or replaces a hub method.
func (h *Hub) Handle(method string, fn MethodFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.methods[method] = fn
}

// ServeHTTP upgrades the request and runs the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &Client{
		ID:       uuid.NewString(),
		Username: UsernameFromContext(r.Context()),
		ws:       ws,
		send:     make(chan []byte, 64),
		done:     make(chan struct{}),
	}
	log := h.log.WithFields(logrus.Fields{"conn": c.ID, "username": c.Username})

	rest, err := c.handshake()
	if err != nil {
		log.WithError(err).Debug("handshake failed")
		c.Close()
		return
	}

	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	log.Debug("client connected")

	go c.writeLoop(h.keepAlive)

	for _, f := range signalr.Split(rest) {
		if !h.handleFrame(c, f) {
			h.detach(c)
			return
		}
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		stop := false
		for _, f := range signalr.Split(data) {
			if !h.handleFrame(c, f) {
				stop = true
				break
			}
		}
		if stop {
			break
		}
	}

	h.detach(c)
	log.Debug("client disconnected")
}

// handleFrame returns false when the client asked to close.
func (h *Hub) handleFrame(c *Client, f []byte) bool {
	m, err := signalr.Parse(f)
	if err != nil {
		h.log.WithError(err).Debug("bad frame")
		return true
	}

	switch m.Type {
	case signalr.TypeInvocation:
		h.invoke(c, m)
	case signalr.TypePing:
	case signalr.TypeClose:
		return false
	default:
		h.log.WithField("type", int(m.Type)).Debug("unsupported message")
	}
	return true
}

func (h *Hub) invoke(c *Client, m signalr.Message) {
	h.mu.Lock()
	fn, ok := h.methods[m.Target]
	h.calls[m.Target]++
	h.mu.Unlock()

	var (
		result any
		errMsg string
	)
	if !ok {
		errMsg = fmt.Sprintf("Unknown hub method '%s'", m.Target)
	} else if res, err := fn(c, m.Arguments); err != nil {
		errMsg = err.Error()
	} else {
		result = res
	}

	if m.InvocationID == "" {
		if errMsg != "" {
			h.log.WithField("method", m.Target).Warn(errMsg)
		}
		return
	}
	frame, err := signalr.CompletionFrame(m.InvocationID, result, errMsg)
	if err != nil {
		h.log.WithError(err).Error("encode completion")
		return
	}
	c.push(frame)
}

func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	for g, members := range h.groups {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.groups, g)
		}
	}
	h.mu.Unlock()
	c.Close()
}

func (h *Hub) AddToGroup(c *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.groups[group]
	if members == nil {
		members = make(map[string]*Client)
		h.groups[group] = members
	}
	members[c.ID] = c
}

func (h *Hub) RemoveFromGroup(c *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members := h.groups[group]; members != nil {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// Emit broadcasts a typed event to a group and reports how many clients it
// was queued for.
func (h *Hub) Emit(group string, e events.Event) int {
	return h.EmitRaw(group, string(e.Kind()), e)
}

func (h *Hub) EmitRaw(group, target string, payload any) int {
	frame, err := signalr.InvocationFrame("", target, payload)
	if err != nil {
		h.log.WithError(err).WithField("event", target).Error("encode event")
		return 0
	}

	h.mu.Lock()
	members := make([]*Client, 0, len(h.groups[group]))
	for _, c := range h.groups[group] {
		members = append(members, c)
	}
	h.mu.Unlock()

	n := 0
	for _, c := range members {
		if c.push(frame) {
			n++
		}
	}
	return n
}

// Members lists the usernames currently in a group, sorted.
func (h *Hub) Members(group string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.groups[group]))
	for _, c := range h.groups[group] {
		out = append(out, c.Username)
	}
	sort.Strings(out)
	return out
}

func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Invocations counts calls of method since the hub was created.
func (h *Hub) Invocations(method string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[method]
}

// DropAll cuts every connection without a close handshake, the way a
// network failure would.
func (h *Hub) DropAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.ws.Close()
	}
}

var errBadArgs = errors.New("bad arguments")

func stringArg(args []json.RawMessage, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%w: want at least %d", errBadArgs, i+1)
	}
	var s string
	if err := json.Unmarshal(args[i], &s); err != nil {
		return "", fmt.Errorf("%w: argument %d: %v", errBadArgs, i, err)
	}
	return s, nil
}

func (h *Hub) joinMethod(c *Client, args []json.RawMessage) (any, error) {
	group, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	h.AddToGroup(c, group)
	return nil, nil
}

func (h *Hub) leaveMethod(c *Client, args []json.RawMessage) (any, error) {
	group, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	h.RemoveFromGroup(c, group)
	return nil, nil
}

func (h *Hub) sendToGroupMethod(_ *Client, args []json.RawMessage) (any, error) {
	group, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	event, err := stringArg(args, 1)
	if err != nil {
		return nil, err
	}
	var data json.RawMessage
	if len(args) > 2 {
		data = args[2]
	}
	h.EmitRaw(group, event, data)
	return nil, nil
}

// toggleReadyMethod flips a player's ready flag. Players join lobbies ready,
// so the first toggle makes them not ready.
func (h *Hub) toggleReadyMethod(_ *Client, args []json.RawMessage) (any, error) {
	group, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	username, err := stringArg(args, 1)
	if err != nil {
		return nil, err
	}

	key := group + "/" + username
	h.mu.Lock()
	cur, seen := h.ready[key]
	if !seen {
		cur = true
	}
	h.ready[key] = !cur
	h.mu.Unlock()

	h.Emit(group, events.PlayerReady{
		GameID:    group,
		Username:  username,
		IsReady:   !cur,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	return nil, nil
}
