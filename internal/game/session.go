package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"example.com/robo-sync/internal/events"
	"example.com/robo-sync/internal/groups"
	"example.com/robo-sync/internal/model"
	"example.com/robo-sync/internal/subscription"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotYourTurn     = errors.New("it is not your turn")
	ErrAlreadyExecuted = errors.New("card already executed for this register")
	ErrNoCard          = errors.New("no revealed card to execute")
	ErrChoiceRequired  = errors.New("card needs a choice")
)

// API is the slice of the REST client a session needs.
type API interface {
	HostAPI
	CurrentState(ctx context.Context, gameID, username string) (model.Snapshot, error)
	SubmitProgram(ctx context.Context, gameID, username string, cards []model.Card) error
	ExecuteCard(ctx context.Context, gameID, username string, card model.Card, choice model.Choice) error
}

// Journal records what a session saw. Snapshots double as a warm start when
// the backend cannot be reached.
type Journal interface {
	Append(ctx context.Context, gameID string, e events.Event) error
	SaveSnapshot(ctx context.Context, gameID string, s model.Snapshot) error
	LoadSnapshot(ctx context.Context, gameID string) (model.Snapshot, bool, error)
}

type Option func(*Session)

func WithJournal(j Journal) Option { return func(s *Session) { s.journal = j } }

func WithLogger(log *logrus.Entry) Option { return func(s *Session) { s.log = log } }

// WithShuffleDuration completes a reshuffle by itself after d. Zero leaves
// it to the caller.
func WithShuffleDuration(d time.Duration) Option {
	return func(s *Session) { s.shuffleAfter = d }
}

type closer interface{ Close() }

type command struct {
	name string
	run  func(ctx context.Context) error
}

// Session follows one game for one player. Events arrive on the connection's
// read goroutine and are reduced under the lock; anything that talks to the
// backend is queued to a single worker so handlers never block on I/O.
type Session struct {
	log          *logrus.Entry
	api          API
	host         *Host
	journal      Journal
	shuffleAfter time.Duration

	membership  *groups.Membership
	hooks       []closer
	unsubGroups func()

	mu        sync.Mutex
	view      View
	batch     bool
	batchKey  string
	nextID    int
	listeners map[int]func(View)
	errorLs   map[int]func(error)

	work      chan command
	refreshQ  atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func NewSession(conn subscription.Source, gm *groups.Manager, rest API, gameID, username string, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		api:       rest,
		view:      NewView(gameID, username),
		listeners: make(map[int]func(View)),
		errorLs:   make(map[int]func(error)),
		work:      make(chan command, 64),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	s.log = s.log.WithFields(logrus.Fields{"component": "game", "gameId": gameID})
	s.host = NewHost(rest, s.log)

	go s.worker()

	// a rejoin means events may have been missed
	s.unsubGroups = gm.OnChange(func(group string, joined bool) {
		if joined && group == gameID {
			s.requestRefresh()
		}
	})
	s.membership = gm.Track(gameID, true)
	if s.membership.InGroup() {
		s.requestRefresh()
	}

	gate := subscription.WithGate(s.membership.InGroup)
	s.hooks = []closer{
		subscription.Bind(conn, func(e events.GameStateUpdated) { s.handle(e) }, gate),
		subscription.Bind(conn, func(e events.PlayerCardsDealt) { s.handle(e) }, gate),
		subscription.Bind(conn, func(e events.PlayerLockedInRegister) { s.handle(e) }, gate),
		subscription.Bind(conn, func(e events.ProgrammingTimeout) { s.handle(e) }, gate),
		subscription.Bind(conn, func(e events.ActivationPhaseStarted) { s.handle(e) }, gate),
		subscription.Bind(conn, func(e events.RegisterRevealed) { s.handle(e) }, gate),
		subscription.Bind(conn, func(e events.NextPlayerInTurn) { s.handle(e) }, gate),
		subscription.Bind(conn, func(e events.RobotMoved) { s.handle(e) }, gate),
		subscription.Bind(conn, func(e events.PlayerExecuted) { s.handle(e) }, gate),
		subscription.Bind(conn, func(e events.CheckpointReached) { s.handle(e) }, gate),
		subscription.Bind(conn, func(e events.GameCompleted) { s.handle(e) }, gate),
	}
	return s
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Clone()
}

func (s *Session) InGroup() bool { return s.membership.InGroup() }

// Load fetches the authoritative state. When the backend is unreachable and
// nothing has been loaded yet, the journal's last snapshot is used instead.
func (s *Session) Load(ctx context.Context) error {
	err := s.Refresh(ctx)
	if err == nil || s.journal == nil || s.View().Loaded {
		return err
	}
	snap, ok, jerr := s.journal.LoadSnapshot(ctx, s.gameID())
	if jerr != nil || !ok {
		return err
	}
	s.log.WithError(err).Warn("backend unreachable, using journaled snapshot")
	s.update(func(v View) View { return MergeSnapshot(v, snap) })
	return nil
}

func (s *Session) Refresh(ctx context.Context) error {
	v := s.View()
	snap, err := s.api.CurrentState(ctx, v.GameID, v.Username)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", v.GameID, err)
	}
	s.update(func(v View) View { return MergeSnapshot(v, snap) })
	if s.journal != nil {
		if err := s.journal.SaveSnapshot(ctx, v.GameID, snap); err != nil {
			s.log.WithError(err).Warn("failed to journal snapshot")
		}
	}
	return nil
}

func (s *Session) PlaceCard(slot int, card model.Card) error {
	return s.mutate(func(v View) (View, error) { return PlaceCard(v, slot, card) })
}

func (s *Session) ClearSlot(slot int) error {
	return s.mutate(func(v View) (View, error) { return ClearSlot(v, slot) })
}

// Dock records a player's docking bay and ready flag. Docking is decided on
// this client, so any seated player may be recorded.
func (s *Session) Dock(username string, bay int, ready bool) error {
	return s.mutate(func(v View) (View, error) { return ApplyDocking(v, username, bay, ready) })
}

// CompleteShuffle ends the reshuffle animation.
func (s *Session) CompleteShuffle() {
	s.update(CompleteShuffle)
}

// LockIn submits the program. The local program is locked only after the
// backend accepts it.
func (s *Session) LockIn(ctx context.Context) error {
	v := s.View()
	if v.Program.Locked() {
		return ErrProgramLocked
	}
	if !v.Program.Complete() {
		return ErrProgramIncomplete
	}
	if err := s.api.SubmitProgram(ctx, v.GameID, v.Username, v.Program.Cards()); err != nil {
		return fmt.Errorf("submit program: %w", err)
	}
	s.update(func(cur View) View {
		if cur.Program.Locked() {
			return cur
		}
		return LockLocal(cur)
	})
	return nil
}

// Execute runs this player's revealed card for the current register.
func (s *Session) Execute(ctx context.Context, choice model.Choice) error {
	v := s.View()
	if v.Cursor.Turn == "" || v.Cursor.Turn != v.Username {
		return ErrNotYourTurn
	}
	if v.Cursor.Executed[v.Username] {
		return ErrAlreadyExecuted
	}
	card := v.CurrentCard()
	if card == "" {
		return ErrNoCard
	}
	if !card.Interactive() {
		choice = model.Choice{}
	} else if !choice.Satisfies(card) {
		return fmt.Errorf("%w: %s", ErrChoiceRequired, card)
	}
	return s.api.ExecuteCard(ctx, v.GameID, v.Username, card, choice)
}

func (s *Session) Deal(ctx context.Context) error {
	return s.host.Deal(ctx, s.View())
}

func (s *Session) StartActivation(ctx context.Context) error {
	return s.host.StartActivation(ctx, s.View())
}

func (s *Session) RevealNext(ctx context.Context) error {
	return s.host.RevealNext(ctx, s.View())
}

func (s *Session) StartNextRound(ctx context.Context) error {
	return s.host.StartNextRound(ctx, s.View())
}

// SetBatch turns the automated activation run on or off. It stops by itself
// once the last register is done or a step fails.
func (s *Session) SetBatch(on bool) error {
	s.mu.Lock()
	if on && !s.view.IsHost() {
		s.mu.Unlock()
		return ErrNotHost
	}
	s.batch = on
	s.batchKey = ""
	s.mu.Unlock()
	s.pumpBatch()
	return nil
}

func (s *Session) Batching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batch
}

func (s *Session) OnChange(fn func(View)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// OnError reports failures of queued work, like board activation.
func (s *Session) OnError(fn func(error)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.errorLs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.errorLs, id)
		s.mu.Unlock()
	}
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		for _, h := range s.hooks {
			h.Close()
		}
		s.unsubGroups()
		s.membership.Close()
		s.cancel()
		<-s.done
	})
}

func (s *Session) gameID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.GameID
}

func (s *Session) handle(e events.Event) {
	s.mu.Lock()
	next, effects := Apply(s.view, e)
	s.view = next
	host := next.IsHost()
	gameID := next.GameID
	s.mu.Unlock()

	if s.journal != nil {
		s.enqueue(command{name: "journal", run: func(ctx context.Context) error {
			return s.journal.Append(ctx, gameID, e)
		}})
	}
	for _, eff := range effects {
		s.runEffect(eff, host)
	}
	s.changed()
}

func (s *Session) runEffect(eff Effect, host bool) {
	switch eff := eff.(type) {
	case ShuffleEffect:
		s.log.WithField("cards", len(eff.Cards)).Debug("deck reshuffled")
		if s.shuffleAfter > 0 {
			time.AfterFunc(s.shuffleAfter, s.CompleteShuffle)
		}
	case AdvanceBoardEffect:
		if !host {
			return
		}
		s.enqueue(command{name: "advance board", run: func(ctx context.Context) error {
			err := s.host.advanceBoardElements(ctx, s.gameID(), eff.Register)
			// not retried: part of the sequence may have run already
			s.update(func(v View) View { return FinishBoard(v, eff.Register) })
			return err
		}})
	case EndGameEffect:
		if !host {
			return
		}
		s.enqueue(command{name: "end game", run: func(ctx context.Context) error {
			res, err := s.host.EndGame(ctx, s.View(), eff.Winner)
			if err != nil {
				return err
			}
			s.update(func(v View) View {
				if v.Result != nil || (res.OldRatings == nil && res.NewRatings == nil) {
					return v
				}
				out := v.Clone()
				out.Result = &Result{OldRatings: res.OldRatings, NewRatings: res.NewRatings}
				return out
			})
			return nil
		}})
	}
}

func (s *Session) update(fn func(View) View) {
	s.mu.Lock()
	s.view = fn(s.view)
	s.mu.Unlock()
	s.changed()
}

func (s *Session) mutate(fn func(View) (View, error)) error {
	s.mu.Lock()
	next, err := fn(s.view)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.view = next
	s.mu.Unlock()
	s.changed()
	return nil
}

func (s *Session) changed() {
	s.mu.Lock()
	v := s.view.Clone()
	ls := make([]func(View), 0, len(s.listeners))
	for _, fn := range s.listeners {
		ls = append(ls, fn)
	}
	s.mu.Unlock()

	for _, fn := range ls {
		s.safely("view listener", func() { fn(v) })
	}
	s.pumpBatch()
}

// safely runs a caller-supplied callback; a panic is logged and does not
// reach the hub read loop or skip the remaining listeners.
func (s *Session) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error(what + " panicked")
		}
	}()
	fn()
}

// pumpBatch queues the next automated step, each step at most once.
func (s *Session) pumpBatch() {
	s.mu.Lock()
	if !s.batch || !s.view.IsHost() {
		s.mu.Unlock()
		return
	}
	step := NextBatchStep(s.view)
	if step.Kind == StepDone {
		s.batch = false
		s.mu.Unlock()
		s.log.Info("batch activation finished")
		return
	}
	if (step.Kind != StepReveal && step.Kind != StepExecute) || step.key() == s.batchKey {
		s.mu.Unlock()
		return
	}
	s.batchKey = step.key()
	s.mu.Unlock()

	s.enqueue(command{name: "batch " + step.Kind.String(), run: func(ctx context.Context) error {
		var err error
		if step.Kind == StepReveal {
			err = s.host.RevealNext(ctx, s.View())
		} else {
			err = s.api.ExecuteCard(ctx, s.gameID(), step.Username, step.Card, model.Choice{})
		}
		if err != nil {
			s.mu.Lock()
			s.batch = false
			s.mu.Unlock()
		}
		return err
	}})
}

// requestRefresh queues a refresh unless one is already waiting.
func (s *Session) requestRefresh() {
	if !s.refreshQ.CompareAndSwap(false, true) {
		return
	}
	s.enqueue(command{name: "refresh", run: func(ctx context.Context) error {
		s.refreshQ.Store(false)
		return s.Refresh(ctx)
	}})
}

// enqueue never blocks: the worker itself enqueues follow-up steps.
func (s *Session) enqueue(cmd command) {
	select {
	case s.work <- cmd:
	default:
		go func() {
			select {
			case s.work <- cmd:
			case <-s.ctx.Done():
			}
		}()
	}
}

func (s *Session) worker() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case cmd := <-s.work:
			err := cmd.run(s.ctx)
			if err == nil || s.ctx.Err() != nil {
				continue
			}
			err = fmt.Errorf("%s: %w", cmd.name, err)
			s.log.WithError(err).Warn("queued command failed")
			s.reportError(err)
		}
	}
}

func (s *Session) reportError(err error) {
	s.mu.Lock()
	ls := make([]func(error), 0, len(s.errorLs))
	for _, fn := range s.errorLs {
		ls = append(ls, fn)
	}
	s.mu.Unlock()
	for _, fn := range ls {
		s.safely("error listener", func() { fn(err) })
	}
}
