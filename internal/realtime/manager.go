// Package realtime owns the push channel to one backend hub: connection
// lifecycle, automatic reconnect, hub invocations and event fan-out.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"example.com/robo-sync/internal/auth"
	"example.com/robo-sync/internal/events"
	"example.com/robo-sync/internal/signalr"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Config struct {
	URL         string
	AccessToken auth.TokenSource

	AutomaticReconnect   bool
	ReconnectDelays      []time.Duration
	MaxReconnectAttempts int // 0 => unlimited

	HandshakeTimeout  time.Duration
	KeepAliveInterval time.Duration
	ServerTimeout     time.Duration

	// Group methods differ per hub: JoinLobby/LeaveLobby, JoinGame/LeaveGame.
	JoinMethod  string
	LeaveMethod string

	Dialer *websocket.Dialer // optional
}

func (c Config) withDefaults() Config {
	if c.ReconnectDelays == nil {
		c.ReconnectDelays = []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 15 * time.Second
	}
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = 15 * time.Second
	}
	if c.ServerTimeout <= 0 {
		c.ServerTimeout = 30 * time.Second
	}
	return c
}

// Handler receives decoded events in server send order.
// It runs on the connection's read goroutine and must not block on Invoke.
type Handler func(events.Event)

// Subscription identifies one registered handler.
type Subscription struct {
	Kind events.Kind
	id   uint64
}

type handlerEntry struct {
	id uint64
	h  Handler
}

type stateListener struct {
	id uint64
	fn func(ConnectionState)
}

type errorListener struct {
	id uint64
	fn func(error)
}

// Manager is built once by the composition root and shared by reference.
type Manager struct {
	log *logrus.Entry

	// serializes Start and Stop
	lifecycle sync.Mutex

	mu              sync.Mutex
	cfg             Config
	initialized     bool
	state           ConnectionState
	conn            *conn
	reconnectCancel context.CancelFunc

	nextID   uint64
	handlers map[events.Kind][]handlerEntry
	stateLs  []stateListener
	errorLs  []errorListener
}

func NewManager(log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		log:      log.WithField("component", "realtime"),
		handlers: make(map[events.Kind][]handlerEntry),
	}
}

// Initialize sets the configuration once. Later calls are ignored.
func (m *Manager) Initialize(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		m.log.WithField("url", m.cfg.URL).Warn("connection already initialized, ignoring new config")
		return
	}
	m.cfg = cfg.withDefaults()
	m.initialized = true
	m.log = m.log.WithField("hub", m.cfg.URL)
}

func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Start(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		err := &Error{Op: OpStart, Err: ErrNotInitialized}
		m.notifyError(err)
		return err
	}
	if m.state == Connected {
		m.mu.Unlock()
		return nil
	}
	if m.reconnectCancel != nil {
		m.reconnectCancel()
		m.reconnectCancel = nil
	}
	cfg := m.cfg
	notify := m.setStateLocked(Connecting)
	m.mu.Unlock()
	notify()

	c, err := dial(ctx, cfg)
	if err != nil {
		m.setState(Disconnected)
		werr := &Error{Op: OpStart, Err: err}
		m.log.WithError(err).Warn("connection failed to start")
		m.notifyError(werr)
		return werr
	}

	m.mu.Lock()
	m.attachLocked(c)
	notify = m.setStateLocked(Connected)
	m.mu.Unlock()
	notify()

	m.log.Info("connected")
	return nil
}

func (m *Manager) Stop(_ context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if !m.initialized || m.state == Disconnected {
		m.mu.Unlock()
		return nil
	}
	if m.reconnectCancel != nil {
		m.reconnectCancel()
		m.reconnectCancel = nil
	}
	c := m.conn
	m.conn = nil
	notify := m.setStateLocked(Disconnecting)
	m.mu.Unlock()
	notify()

	if c != nil {
		c.shutdown()
	}

	m.setState(Disconnected)
	m.log.Info("disconnected")
	return nil
}

func (m *Manager) On(kind events.Kind, h Handler) (Subscription, error) {
	if h == nil {
		return Subscription{}, errors.New("nil handler")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return Subscription{}, ErrNotInitialized
	}
	m.nextID++
	sub := Subscription{Kind: kind, id: m.nextID}
	m.handlers[kind] = append(m.handlers[kind], handlerEntry{id: sub.id, h: h})
	return sub, nil
}

// Off removes the given subscriptions, or every handler of kind when none
// are passed.
func (m *Manager) Off(kind events.Kind, subs ...Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return ErrNotInitialized
	}
	if len(subs) == 0 {
		delete(m.handlers, kind)
		return nil
	}
	drop := make(map[uint64]bool, len(subs))
	for _, s := range subs {
		drop[s.id] = true
	}
	kept := m.handlers[kind][:0:0]
	for _, e := range m.handlers[kind] {
		if !drop[e.id] {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(m.handlers, kind)
	} else {
		m.handlers[kind] = kept
	}
	return nil
}

// Invoke calls a hub method and waits for its completion.
func (m *Manager) Invoke(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	res, err := m.invoke(ctx, method, args...)
	if err != nil {
		m.notifyError(err)
		return nil, err
	}
	return res, nil
}

func (m *Manager) invoke(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	c, err := m.current()
	if err != nil {
		return nil, &Error{Op: OpInvoke, Method: method, Err: err}
	}

	id := uuid.NewString()
	frame, err := signalr.InvocationFrame(id, method, args...)
	if err != nil {
		return nil, &Error{Op: OpInvoke, Method: method, Err: err}
	}

	ch := c.register(id)
	defer c.unregister(id)

	if err := c.enqueue(ctx, frame); err != nil {
		return nil, &Error{Op: OpInvoke, Method: method, Err: err}
	}

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, &Error{Op: OpInvoke, Method: method, Err: r.err}
		}
		return r.result, nil
	case <-ctx.Done():
		return nil, &Error{Op: OpInvoke, Method: method, Err: ctx.Err()}
	}
}

// Send invokes a hub method without waiting for a result.
func (m *Manager) Send(ctx context.Context, method string, args ...any) error {
	c, err := m.current()
	if err == nil {
		var frame []byte
		frame, err = signalr.InvocationFrame("", method, args...)
		if err == nil {
			err = c.enqueue(ctx, frame)
		}
	}
	if err != nil {
		werr := &Error{Op: OpInvoke, Method: method, Err: err}
		m.notifyError(werr)
		return werr
	}
	return nil
}

func (m *Manager) JoinGroup(ctx context.Context, groupID string) error {
	method := m.config().JoinMethod
	if method == "" {
		return &Error{Op: OpInvoke, Method: "join", Err: ErrNoGroupMethod}
	}
	_, err := m.Invoke(ctx, method, groupID)
	return err
}

// LeaveGroup never fails; problems go to the error listeners.
func (m *Manager) LeaveGroup(ctx context.Context, groupID string) {
	method := m.config().LeaveMethod
	log := m.log.WithField("group", groupID)
	if method == "" {
		log.Warn("no leave method configured")
		return
	}
	if m.State() != Connected {
		log.Debug("not connected, skipping group leave")
		return
	}
	if _, err := m.invoke(ctx, method, groupID); err != nil {
		log.WithError(err).Warn("group leave failed")
		m.notifyError(err)
	}
}

func (m *Manager) SendToGroup(ctx context.Context, groupID, event string, data any) error {
	_, err := m.Invoke(ctx, "SendToGroup", groupID, event, data)
	return err
}

// OnStateChange registers fn and returns a function that removes it.
func (m *Manager) OnStateChange(fn func(ConnectionState)) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.stateLs = append(m.stateLs, stateListener{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, l := range m.stateLs {
			if l.id == id {
				m.stateLs = append(m.stateLs[:i:i], m.stateLs[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager) OnError(fn func(error)) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.errorLs = append(m.errorLs, errorListener{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, l := range m.errorLs {
			if l.id == id {
				m.errorLs = append(m.errorLs[:i:i], m.errorLs[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager) config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

func (m *Manager) current() (*conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil, ErrNotInitialized
	}
	if m.state != Connected || m.conn == nil {
		return nil, ErrNotConnected
	}
	return m.conn, nil
}

func (m *Manager) setState(s ConnectionState) {
	m.mu.Lock()
	notify := m.setStateLocked(s)
	m.mu.Unlock()
	notify()
}

// setStateLocked records the new state and returns the notification to run
// once the lock is released.
func (m *Manager) setStateLocked(s ConnectionState) func() {
	if m.state == s {
		return func() {}
	}
	prev := m.state
	m.state = s
	ls := append([]stateListener(nil), m.stateLs...)
	log := m.log

	return func() {
		log.WithFields(logrus.Fields{"from": prev.String(), "to": s.String()}).Debug("connection state")
		for _, l := range ls {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.WithField("panic", r).Error("state listener panicked")
					}
				}()
				l.fn(s)
			}()
		}
	}
}

func (m *Manager) notifyError(err error) {
	m.mu.Lock()
	ls := append([]errorListener(nil), m.errorLs...)
	m.mu.Unlock()

	for _, l := range ls {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.WithField("panic", r).Error("error listener panicked")
				}
			}()
			l.fn(err)
		}()
	}
}

func (m *Manager) attachLocked(c *conn) {
	m.conn = c
	go c.writeLoop()
	go func() {
		err := c.readLoop(m)
		m.onClosed(c, err)
	}()
}

// onMessage implements frameSink.
func (m *Manager) onMessage(msg signalr.Message) {
	switch msg.Type {
	case signalr.TypeInvocation:
		m.dispatch(msg)
	case signalr.TypePing:
	default:
		m.log.WithField("type", int(msg.Type)).Debug("ignoring unsupported message")
	}
}

func (m *Manager) onBadFrame(err error) {
	m.log.WithError(err).Warn("dropping malformed frame")
}

func (m *Manager) dispatch(msg signalr.Message) {
	e, err := events.Decode(msg.Target, msg.Arguments)
	if err != nil {
		entry := m.log.WithField("event", msg.Target).WithError(err)
		if errors.Is(err, events.ErrUnknownEvent) {
			entry.Debug("no decoder for event")
		} else {
			entry.Warn("dropping undecodable event")
		}
		return
	}

	m.mu.Lock()
	hs := append([]handlerEntry(nil), m.handlers[e.Kind()]...)
	m.mu.Unlock()

	for _, he := range hs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.WithFields(logrus.Fields{"event": e.Kind(), "panic": r}).Error("event handler panicked")
				}
			}()
			he.h(e)
		}()
	}
}

func (m *Manager) onClosed(c *conn, err error) {
	c.close()

	m.mu.Lock()
	if m.conn != c {
		// Stop already took it down, or a newer connection replaced it.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	cfg := m.cfg
	if !cfg.AutomaticReconnect {
		notify := m.setStateLocked(Disconnected)
		m.mu.Unlock()
		notify()
		m.log.WithError(err).Warn("connection closed")
		m.notifyError(&Error{Op: OpConnection, Err: err})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.reconnectCancel = cancel
	notify := m.setStateLocked(Reconnecting)
	m.mu.Unlock()
	notify()

	m.log.WithError(err).Warn("connection lost, reconnecting")
	m.notifyError(&Error{Op: OpConnection, Err: err})
	go m.reconnect(ctx, cfg)
}

func (m *Manager) reconnect(ctx context.Context, cfg Config) {
	for attempt := 0; cfg.MaxReconnectAttempts == 0 || attempt < cfg.MaxReconnectAttempts; attempt++ {
		delay := ReconnectDelay(cfg.ReconnectDelays, attempt)
		m.log.WithFields(logrus.Fields{"attempt": attempt + 1, "delay": delay}).Info("reconnect scheduled")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		c, err := dial(ctx, cfg)
		if err != nil {
			m.log.WithError(err).WithField("attempt", attempt+1).Warn("reconnect attempt failed")
			continue
		}

		m.mu.Lock()
		if ctx.Err() != nil {
			m.mu.Unlock()
			c.close()
			return
		}
		m.reconnectCancel = nil
		m.attachLocked(c)
		notify := m.setStateLocked(Connected)
		m.mu.Unlock()
		notify()

		m.log.WithField("attempt", attempt+1).Info("reconnected")
		return
	}

	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.reconnectCancel = nil
	notify := m.setStateLocked(Disconnected)
	m.mu.Unlock()
	notify()

	m.log.Error("giving up on reconnect")
	m.notifyError(&Error{Op: OpReconnect, Err: ErrReconnectExhausted})
}
