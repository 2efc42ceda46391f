package pause

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"example.com/robo-sync/internal/events"
	"example.com/robo-sync/internal/subscription"
	"github.com/sirupsen/logrus"
)

var (
	ErrVoteInProgress   = errors.New("a pause vote is already in progress")
	ErrNoRequest        = errors.New("no pause request to answer")
	ErrOwnRequest       = errors.New("cannot vote on your own pause request")
	ErrAlreadyResponded = errors.New("already responded to this pause request")
	ErrNotRequester     = errors.New("only the requester can cancel")
	ErrNotResolved      = errors.New("pause vote is not resolved")
)

type API interface {
	RequestPause(ctx context.Context, gameID, username string) error
	RespondPause(ctx context.Context, gameID, username string, approved bool) error
}

type closer interface{ Close() }

// Handler owns the pause vote of one player in one game.
type Handler struct {
	log      *logrus.Entry
	api      API
	gameID   string
	username string
	players  func() int
	hooks    []closer

	mu        sync.Mutex
	state     State
	nextID    int
	listeners map[int]func(State)
	resolved  map[int]func(Result)
}

// NewHandler listens for pause events on conn. players reports the current
// number of players in the game; gate drops events while it returns false.
func NewHandler(conn subscription.Source, rest API, gameID, username string, players func() int, gate func() bool, log *logrus.Entry) *Handler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	h := &Handler{
		log:       log.WithFields(logrus.Fields{"component": "pause", "gameId": gameID}),
		api:       rest,
		gameID:    gameID,
		username:  username,
		players:   players,
		listeners: make(map[int]func(State)),
		resolved:  make(map[int]func(Result)),
	}
	var opts []subscription.Option
	if gate != nil {
		opts = append(opts, subscription.WithGate(gate))
	}
	h.hooks = []closer{
		subscription.Bind(conn, func(e events.GamePauseRequested) { h.Apply(e) }, opts...),
		subscription.Bind(conn, func(e events.GamePauseResponse) { h.Apply(e) }, opts...),
		subscription.Bind(conn, func(e events.GamePauseResult) { h.Apply(e) }, opts...),
	}
	return h
}

func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.clone()
}

func (h *Handler) expected() int {
	if h.players == nil {
		return 0
	}
	return max(h.players()-1, 0)
}

// Request asks the other players to pause. The local vote opens before the
// call so responses and the result pushed ahead of the reply are counted; a
// failed call closes it again.
func (h *Handler) Request(ctx context.Context) error {
	opened := false
	h.set(func(s State) (State, bool) {
		if s.Status != Idle {
			return s, false
		}
		opened = true
		return State{Status: RequestPending, Requester: h.username, Responses: map[string]bool{}, Expected: h.expected()}, true
	})
	if !opened {
		return ErrVoteInProgress
	}

	if err := h.api.RequestPause(ctx, h.gameID, h.username); err != nil {
		h.set(func(s State) (State, bool) {
			if s.Status != RequestPending || s.Requester != h.username {
				return s, false
			}
			return State{}, true
		})
		return fmt.Errorf("request pause: %w", err)
	}
	h.log.Info("pause requested")
	return nil
}

func (h *Handler) Respond(ctx context.Context, approved bool) error {
	s := h.State()
	switch {
	case s.Status != RequestPending:
		return ErrNoRequest
	case s.Requester == h.username:
		return ErrOwnRequest
	case s.Responded:
		return ErrAlreadyResponded
	}
	if err := h.api.RespondPause(ctx, h.gameID, h.username, approved); err != nil {
		return fmt.Errorf("respond to pause: %w", err)
	}
	h.set(func(cur State) (State, bool) {
		if cur.Status != RequestPending || cur.Requester != s.Requester {
			return cur, false
		}
		out := cur.clone()
		out.Responded = true
		return out, true
	})
	return nil
}

// Cancel drops the requester's local vote. The backend is not told.
func (h *Handler) Cancel() error {
	var err error
	h.set(func(s State) (State, bool) {
		if s.Status != RequestPending || s.Requester != h.username {
			err = ErrNotRequester
			return s, false
		}
		return State{}, true
	})
	return err
}

// Acknowledge closes a resolved vote. leave reports whether the pause was
// approved, in which case the caller ends its game session.
func (h *Handler) Acknowledge() (leave bool, err error) {
	h.set(func(s State) (State, bool) {
		if s.Status != Resolved || s.Result == nil {
			err = ErrNotResolved
			return s, false
		}
		leave = s.Result.Approved
		return State{}, true
	})
	return leave, err
}

// Apply folds a pause event into the handler's state.
func (h *Handler) Apply(e events.Event) {
	h.mu.Lock()
	next, done := Apply(h.state, h.gameID, h.username, h.expected(), e)
	changed := done || next.Status != h.state.Status || next.Requester != h.state.Requester || len(next.Responses) != len(h.state.Responses) || !sameVotes(next.Responses, h.state.Responses)
	h.state = next
	snap := next.clone()
	ls, rs := h.listenersLocked()
	h.mu.Unlock()

	if !changed {
		h.log.WithField("event", e.Kind()).Debug("pause event ignored")
		return
	}
	for _, fn := range ls {
		h.safely("state listener", func() { fn(snap) })
	}
	if done {
		h.log.WithFields(logrus.Fields{"approved": snap.Result.Approved, "requestedBy": snap.Result.RequestedBy}).Info("pause vote resolved")
		for _, fn := range rs {
			h.safely("result listener", func() { fn(*snap.Result) })
		}
	}
}

func (h *Handler) OnChange(fn func(State)) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.listeners[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// OnResolved is called once per vote with the broadcast result.
func (h *Handler) OnResolved(fn func(Result)) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.resolved[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.resolved, id)
		h.mu.Unlock()
	}
}

func (h *Handler) Close() {
	for _, hk := range h.hooks {
		hk.Close()
	}
}

func (h *Handler) set(fn func(State) (State, bool)) {
	h.mu.Lock()
	next, changed := fn(h.state)
	h.state = next
	snap := next.clone()
	ls, _ := h.listenersLocked()
	h.mu.Unlock()
	if !changed {
		return
	}
	for _, fn := range ls {
		h.safely("state listener", func() { fn(snap) })
	}
}

func (h *Handler) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.log.WithField("panic", r).Error(what + " panicked")
		}
	}()
	fn()
}

func (h *Handler) listenersLocked() ([]func(State), []func(Result)) {
	ls := make([]func(State), 0, len(h.listeners))
	for _, fn := range h.listeners {
		ls = append(ls, fn)
	}
	rs := make([]func(Result), 0, len(h.resolved))
	for _, fn := range h.resolved {
		rs = append(rs, fn)
	}
	return ls, rs
}

func sameVotes(a, b map[string]bool) bool {
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
