package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"example.com/robo-sync/internal/api"
	"example.com/robo-sync/internal/events"
	"example.com/robo-sync/internal/groups"
	"example.com/robo-sync/internal/subscription"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotHost        = errors.New("only a ready host with enough players can start")
	ErrNotInLobby     = errors.New("not in the lobby group")
	ErrAlreadyStarted = errors.New("game already started")
)

// Conn is the lobby hub connection.
type Conn interface {
	subscription.Source
	Invoke(ctx context.Context, method string, args ...any) (json.RawMessage, error)
}

// API is the slice of the REST client a room needs.
type API interface {
	LobbyInfo(ctx context.Context, gameID string) (api.LobbyInfo, error)
	StartGame(ctx context.Context, gameID, username, boardName string) error
	LeaveLobby(ctx context.Context, gameID, username string) error
}

type closer interface{ Close() }

// Room follows one lobby for one user.
type Room struct {
	log      *logrus.Entry
	conn     Conn
	api      API
	username string

	membership *groups.Membership
	hooks      []closer

	mu        sync.Mutex
	state     State
	nextID    int
	listeners map[int]func(State)
}

func NewRoom(conn Conn, gm *groups.Manager, rest API, gameID, username string, log *logrus.Entry) *Room {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	r := &Room{
		log:       log.WithFields(logrus.Fields{"component": "lobby", "gameId": gameID}),
		conn:      conn,
		api:       rest,
		username:  username,
		state:     State{GameID: gameID},
		listeners: make(map[int]func(State)),
	}
	r.membership = gm.Track(gameID, true)

	gate := subscription.WithGate(r.membership.InGroup)
	r.hooks = []closer{
		subscription.Bind(conn, func(e events.UserJoinedLobby) { r.apply(e) }, gate),
		subscription.Bind(conn, func(e events.UserLeftLobby) { r.apply(e) }, gate),
		subscription.Bind(conn, func(e events.PlayerReady) { r.apply(e) }, gate),
		subscription.Bind(conn, func(e events.LobbyUpdated) { r.apply(e) }, gate),
		subscription.Bind(conn, func(e events.GameStarted) { r.apply(e) }, gate),
	}
	return r
}

// Load seeds the roster from the API. Ready flags already known are kept.
func (r *Room) Load(ctx context.Context) error {
	info, err := r.api.LobbyInfo(ctx, r.GameID())
	if err != nil {
		return err
	}
	r.update(func(s State) State { return s.Reseed(info) })
	return nil
}

func (r *Room) GameID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.GameID
}

func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

func (r *Room) InGroup() bool { return r.membership.InGroup() }

// ToggleReady flips this user's ready flag through the lobby hub.
func (r *Room) ToggleReady(ctx context.Context) error {
	if !r.membership.InGroup() {
		return ErrNotInLobby
	}
	_, err := r.conn.Invoke(ctx, "TogglePlayerReady", r.GameID(), r.username)
	return err
}

func (r *Room) Start(ctx context.Context, boardName string) error {
	s := r.State()
	if s.Started {
		return ErrAlreadyStarted
	}
	if !s.CanStart(r.username) {
		return ErrNotHost
	}
	return r.api.StartGame(ctx, s.GameID, r.username, boardName)
}

// Leave tells the backend and drops the group.
func (r *Room) Leave(ctx context.Context) error {
	err := r.api.LeaveLobby(ctx, r.GameID(), r.username)
	r.Close()
	return err
}

func (r *Room) OnChange(fn func(State)) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

func (r *Room) Close() {
	for _, h := range r.hooks {
		h.Close()
	}
	r.membership.Close()
}

func (r *Room) apply(e events.Event) {
	if !r.update(func(s State) State { return Apply(s, e) }) && e.Scope() != r.GameID() {
		r.log.WithField("event", e.Kind()).Debug("ignoring event for another lobby")
	}
}

// update swaps in fn's result and notifies listeners if anything changed.
func (r *Room) update(fn func(State) State) bool {
	r.mu.Lock()
	before := r.state
	r.state = fn(r.state)
	changed := !equal(before, r.state)
	snap := r.state.clone()
	ls := make([]func(State), 0, len(r.listeners))
	for _, fn := range r.listeners {
		ls = append(ls, fn)
	}
	r.mu.Unlock()

	if !changed {
		return false
	}
	for _, fn := range ls {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.log.WithField("panic", rec).Error("lobby listener panicked")
				}
			}()
			fn(snap)
		}()
	}
	return true
}

func equal(a, b State) bool {
	if a.GameID != b.GameID || a.Name != b.Name || a.Host != b.Host ||
		a.MaxPlayers != b.MaxPlayers || a.Started != b.Started || len(a.Players) != len(b.Players) {
		return false
	}
	for i := range a.Players {
		if a.Players[i] != b.Players[i] {
			return false
		}
	}
	return true
}
