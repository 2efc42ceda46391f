// Package groups keeps server-side group membership in line with what the
// local components want. Many memberships may point at the same group; the
// server sees one join while any of them holds it and one leave after the
// last lets go.
package groups

import (
	"context"
	"sync"
	"time"

	"example.com/robo-sync/internal/realtime"
	"github.com/sirupsen/logrus"
)

const callTimeout = 15 * time.Second

// Conn is the part of the connection manager groups depend on.
type Conn interface {
	JoinGroup(ctx context.Context, groupID string) error
	LeaveGroup(ctx context.Context, groupID string)
	State() realtime.ConnectionState
	OnStateChange(func(realtime.ConnectionState)) func()
}

type entry struct {
	refs    int
	joined  bool
	joining bool
	err     error
	// bumped on every disconnect; a join started under an older epoch
	// says nothing about the current connection
	epoch uint64
}

type Manager struct {
	conn Conn
	log  *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	unsub  func()

	mu        sync.Mutex
	entries   map[string]*entry
	nextID    uint64
	listeners map[uint64]func(group string, joined bool)
}

func NewManager(conn Conn, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		conn:      conn,
		log:       log.WithField("component", "groups"),
		ctx:       ctx,
		cancel:    cancel,
		entries:   make(map[string]*entry),
		listeners: make(map[uint64]func(string, bool)),
	}
	m.unsub = conn.OnStateChange(m.onState)
	return m
}

// Close stops following the connection. Joined groups are not left.
func (m *Manager) Close() {
	m.unsub()
	m.cancel()
}

// OnChange is called whenever a group becomes joined or stops being joined.
func (m *Manager) OnChange(fn func(group string, joined bool)) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Track creates a membership for groupID. An empty id or enabled=false
// holds nothing until changed.
func (m *Manager) Track(groupID string, enabled bool) *Membership {
	ms := &Membership{m: m, group: groupID, enabled: enabled}
	if enabled && groupID != "" {
		m.acquire(groupID)
		ms.held = groupID
	}
	return ms
}

func (m *Manager) Joined(group string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[group]
	return e != nil && e.joined
}

func (m *Manager) groupErr(group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := m.entries[group]; e != nil {
		return e.err
	}
	return nil
}

func (m *Manager) acquire(group string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entries[group]
	if e == nil {
		e = &entry{}
		m.entries[group] = e
	}
	e.refs++
	// a join still in flight from an earlier holder is reused
	if e.refs == 1 && !e.joining && !e.joined && m.conn.State() == realtime.Connected {
		m.joinLocked(group, e)
	}
}

// release drops one reference. The returned func notifies listeners and must
// run once the caller holds no locks.
func (m *Manager) release(group string) func() {
	m.mu.Lock()
	e := m.entries[group]
	if e == nil {
		m.mu.Unlock()
		return func() {}
	}
	e.refs--
	if e.refs > 0 {
		m.mu.Unlock()
		return func() {}
	}
	// an in-flight join keeps the entry; it leaves on completion unless the
	// group was acquired again
	if e.joining {
		m.mu.Unlock()
		return func() {}
	}
	delete(m.entries, group)
	wasJoined := e.joined
	m.mu.Unlock()

	if !wasJoined {
		return func() {}
	}
	go m.leave(group)
	return func() { m.notify(group, false) }
}

func (m *Manager) retry(group string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[group]
	if e == nil || e.joined || e.joining || m.conn.State() != realtime.Connected {
		return
	}
	m.joinLocked(group, e)
}

func (m *Manager) joinLocked(group string, e *entry) {
	e.joining = true
	epoch := e.epoch
	log := m.log.WithField("group", group)

	go func() {
		ctx, cancel := context.WithTimeout(m.ctx, callTimeout)
		err := m.conn.JoinGroup(ctx, group)
		cancel()

		m.mu.Lock()
		e.joining = false
		if e.refs == 0 {
			// released while the join was in flight
			delete(m.entries, group)
			m.mu.Unlock()
			if err == nil {
				log.Debug("join completed after release, leaving")
				m.leave(group)
			}
			return
		}
		if e.epoch != epoch {
			// connection dropped meanwhile; rejoin if it is already back
			if m.conn.State() == realtime.Connected {
				m.joinLocked(group, e)
			}
			m.mu.Unlock()
			return
		}
		if err != nil {
			e.err = err
			m.mu.Unlock()
			log.WithError(err).Warn("join failed")
			return
		}
		e.err = nil
		e.joined = true
		m.mu.Unlock()

		log.Debug("joined")
		m.notify(group, true)
	}()
}

func (m *Manager) leave(group string) {
	ctx, cancel := context.WithTimeout(m.ctx, callTimeout)
	defer cancel()
	m.conn.LeaveGroup(ctx, group)
}

func (m *Manager) onState(s realtime.ConnectionState) {
	var lost []string

	m.mu.Lock()
	switch s {
	case realtime.Connected:
		for group, e := range m.entries {
			if !e.joined && !e.joining {
				m.joinLocked(group, e)
			}
		}
	default:
		for group, e := range m.entries {
			e.epoch++
			if e.joined {
				e.joined = false
				lost = append(lost, group)
			}
		}
	}
	m.mu.Unlock()

	for _, g := range lost {
		m.notify(g, false)
	}
}

func (m *Manager) notify(group string, joined bool) {
	m.mu.Lock()
	ls := make([]func(string, bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		ls = append(ls, fn)
	}
	m.mu.Unlock()

	for _, fn := range ls {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.WithField("panic", r).Error("group listener panicked")
				}
			}()
			fn(group, joined)
		}()
	}
}

// Membership is one component's wish to be in a group.
type Membership struct {
	m *Manager

	mu      sync.Mutex
	group   string
	enabled bool
	held    string
	closed  bool
}

// SetGroup switches to another group id, releasing the previous one.
func (ms *Membership) SetGroup(groupID string) {
	ms.mu.Lock()
	if ms.closed || ms.group == groupID {
		ms.mu.Unlock()
		return
	}
	ms.group = groupID
	after := ms.syncLocked()
	ms.mu.Unlock()
	after()
}

func (ms *Membership) SetEnabled(enabled bool) {
	ms.mu.Lock()
	if ms.closed || ms.enabled == enabled {
		ms.mu.Unlock()
		return
	}
	ms.enabled = enabled
	after := ms.syncLocked()
	ms.mu.Unlock()
	after()
}

func (ms *Membership) syncLocked() func() {
	want := ""
	if ms.enabled {
		want = ms.group
	}
	if want == ms.held {
		return func() {}
	}
	after := func() {}
	if ms.held != "" {
		after = ms.m.release(ms.held)
	}
	ms.held = want
	if want != "" {
		ms.m.acquire(want)
	}
	return after
}

// InGroup reports whether the server confirmed the join for the current group.
func (ms *Membership) InGroup() bool {
	ms.mu.Lock()
	held := ms.held
	ms.mu.Unlock()
	return held != "" && ms.m.Joined(held)
}

func (ms *Membership) Group() string {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.group
}

// Err is the last join error for the current group, if any.
func (ms *Membership) Err() error {
	ms.mu.Lock()
	held := ms.held
	ms.mu.Unlock()
	if held == "" {
		return nil
	}
	return ms.m.groupErr(held)
}

// Retry rejoins after a failed join.
func (ms *Membership) Retry() {
	ms.mu.Lock()
	held := ms.held
	ms.mu.Unlock()
	if held != "" {
		ms.m.retry(held)
	}
}

func (ms *Membership) Close() {
	ms.mu.Lock()
	if ms.closed {
		ms.mu.Unlock()
		return
	}
	ms.closed = true
	held := ms.held
	ms.held = ""
	ms.mu.Unlock()

	if held != "" {
		ms.m.release(held)()
	}
}
