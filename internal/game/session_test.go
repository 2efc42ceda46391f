package game

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"example.com/robo-sync/internal/devhub"
	"example.com/robo-sync/internal/events"
	"example.com/robo-sync/internal/groups"
	"example.com/robo-sync/internal/model"
	"example.com/robo-sync/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	wait = 2 * time.Second
	tick = 10 * time.Millisecond
)

type memJournal struct {
	mu     sync.Mutex
	events []events.Kind
	snap   *model.Snapshot
}

func (j *memJournal) Append(_ context.Context, _ string, e events.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e.Kind())
	return nil
}

func (j *memJournal) SaveSnapshot(_ context.Context, _ string, s model.Snapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.snap = &s
	return nil
}

func (j *memJournal) LoadSnapshot(context.Context, string) (model.Snapshot, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.snap == nil {
		return model.Snapshot{}, false, nil
	}
	return *j.snap, true, nil
}

type sessionFixture struct {
	hub     *devhub.Hub
	conn    *realtime.Manager
	gm      *groups.Manager
	api     *fakeAPI
	journal *memJournal
}

func newSessionFixture(t *testing.T, phase model.Phase) *sessionFixture {
	t.Helper()
	gameHub := devhub.New(nil)
	ts := httptest.NewServer(devhub.NewServer(devhub.New(nil), gameHub, devhub.Paths{Lobby: "/game-lobbies", Game: "/game-play"}, nil, nil))
	t.Cleanup(ts.Close)

	conn := realtime.NewManager(nil)
	conn.Initialize(realtime.Config{
		URL:                "ws" + strings.TrimPrefix(ts.URL, "http") + "/game-play",
		AutomaticReconnect: true,
		ReconnectDelays:    []time.Duration{0, 20 * time.Millisecond},
		JoinMethod:         "JoinGame",
		LeaveMethod:        "LeaveGame",
	})
	require.NoError(t, conn.Start(context.Background()))
	t.Cleanup(func() { _ = conn.Stop(context.Background()) })

	gm := groups.NewManager(conn, nil)
	t.Cleanup(gm.Close)

	return &sessionFixture{
		hub:  gameHub,
		conn: conn,
		gm:   gm,
		api: &fakeAPI{snapshot: model.Snapshot{
			GameID:       "g1",
			HostUsername: "alice",
			Name:         "Arena",
			Phase:        phase,
			Players:      []model.Player{{Username: "alice"}, {Username: "bob"}},
			Board:        model.Board{Name: "Starter", Spaces: [][]model.Cell{{{Name: "Checkpoint 1"}, {Name: "Checkpoint 2"}}}},
		}},
		journal: &memJournal{},
	}
}

func (f *sessionFixture) session(t *testing.T, username string) *Session {
	t.Helper()
	s := NewSession(f.conn, f.gm, f.api, "g1", username, WithJournal(f.journal), WithShuffleDuration(5*time.Millisecond))
	t.Cleanup(s.Close)
	require.Eventually(t, func() bool { return s.InGroup() && s.View().Loaded }, wait, tick)
	return s
}

func nine(first model.Card) []model.Card {
	return []model.Card{first, model.Move2, model.Move3, model.RotateLeft, model.RotateRight, model.UTurn, model.MoveBack, model.PowerUp, model.Again}
}

func TestSession_FullRound(t *testing.T) {
	f := newSessionFixture(t, model.PhaseDocking)
	s := f.session(t, "alice")
	ctx := context.Background()

	require.NoError(t, s.Dock("alice", 1, true))
	require.NoError(t, s.Dock("bob", 2, true))
	require.Equal(t, model.PhaseProgramming, s.View().Phase)

	require.NoError(t, s.Deal(ctx))
	f.hub.Emit("g1", events.PlayerCardsDealt{GameID: "g1", Username: "alice", DealtCards: nine(model.Move1), PickPileCount: 11})
	f.hub.Emit("g1", events.PlayerCardsDealt{GameID: "g1", Username: "bob", DealtCards: nine(model.Again), PickPileCount: 11})
	require.Eventually(t, func() bool { return len(s.View().Hand) == 9 }, wait, tick)
	assert.Equal(t, 11, s.View().PickPileCount)

	assert.ErrorIs(t, s.LockIn(ctx), ErrProgramIncomplete)
	for i, c := range []model.Card{model.Move1, model.Move2, model.Move3, model.UTurn, model.Again} {
		require.NoError(t, s.PlaceCard(i, c))
	}
	require.NoError(t, s.LockIn(ctx))
	assert.True(t, s.View().Program.Locked())
	assert.Empty(t, s.View().Hand)
	assert.ErrorIs(t, s.StartActivation(ctx), ErrNotAllLockedIn)

	f.hub.Emit("g1", events.PlayerLockedInRegister{GameID: "g1", Username: "alice"})
	f.hub.Emit("g1", events.PlayerLockedInRegister{GameID: "g1", Username: "bob"})
	require.Eventually(t, func() bool { return s.View().AllLockedIn() }, wait, tick)

	require.NoError(t, s.StartActivation(ctx))
	f.hub.Emit("g1", events.ActivationPhaseStarted{GameID: "g1"})

	require.NoError(t, s.RevealNext(ctx))
	f.hub.Emit("g1", events.RegisterRevealed{GameID: "g1", RegisterNumber: 0, RevealedCards: map[string]model.Card{"alice": model.Move1, "bob": model.Move2}})
	f.hub.Emit("g1", events.NextPlayerInTurn{GameID: "g1", NextPlayerUsername: ptr("alice")})
	require.Eventually(t, func() bool { return s.View().Cursor.Turn == "alice" }, wait, tick)
	assert.ErrorIs(t, s.RevealNext(ctx), ErrRevealBlocked)

	require.NoError(t, s.Execute(ctx, model.Choice{}))
	f.hub.Emit("g1", events.RobotMoved{GameID: "g1", Username: "alice", PositionX: 1, Direction: model.East, ExecutedCard: ptr(model.Move1)})
	f.hub.Emit("g1", events.NextPlayerInTurn{GameID: "g1", NextPlayerUsername: ptr("bob")})
	require.Eventually(t, func() bool { return s.View().Cursor.Turn == "bob" }, wait, tick)
	assert.ErrorIs(t, s.Execute(ctx, model.Choice{}), ErrNotYourTurn)

	f.hub.Emit("g1", events.RobotMoved{GameID: "g1", Username: "bob", PositionX: 2, Direction: model.East, ExecutedCard: ptr(model.Move2)})
	f.hub.Emit("g1", events.NextPlayerInTurn{GameID: "g1"})

	require.Eventually(t, func() bool {
		v := s.View()
		return f.api.count("board") == 3 && v.Cursor.CanReveal()
	}, wait, tick)
	assert.Equal(t, map[string]bool{"alice": true, "bob": true}, s.View().Cursor.Executed)

	calls := f.api.Calls()
	assert.Equal(t, []string{"deal", "submit alice 5", "activation", "reveal", "execute alice Move 1", "board", "board", "board"}, calls[len(calls)-8:])

	// a late duplicate does not trigger the board again
	f.hub.Emit("g1", events.PlayerExecuted{GameID: "g1", Username: "bob"})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, f.api.count("board"))

	f.journal.mu.Lock()
	assert.Contains(t, f.journal.events, events.KindNextPlayerInTurn)
	assert.NotNil(t, f.journal.snap)
	f.journal.mu.Unlock()
}

func TestSession_ShuffleCompletesAfterDelay(t *testing.T) {
	f := newSessionFixture(t, model.PhaseProgramming)
	s := f.session(t, "bob")

	var mu sync.Mutex
	var pending []bool
	s.OnChange(func(v View) {
		mu.Lock()
		pending = append(pending, v.ShufflePending)
		mu.Unlock()
	})

	f.hub.Emit("g1", events.PlayerCardsDealt{GameID: "g1", Username: "bob", DealtCards: nine(model.Move1), IsDeckReshuffled: true})
	require.Eventually(t, func() bool { return len(s.View().Hand) == 9 }, wait, tick)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, pending, true, "hand was held back while shuffling")
}

func TestSession_ExecuteNeedsChoice(t *testing.T) {
	f := newSessionFixture(t, model.PhaseActivation)
	s := f.session(t, "bob")
	ctx := context.Background()

	f.hub.Emit("g1", events.RegisterRevealed{GameID: "g1", RegisterNumber: 0, RevealedCards: map[string]model.Card{"alice": model.Move1, "bob": model.SwapPosition}})
	f.hub.Emit("g1", events.NextPlayerInTurn{GameID: "g1", NextPlayerUsername: ptr("bob")})
	require.Eventually(t, func() bool { return s.View().Cursor.Turn == "bob" }, wait, tick)

	assert.ErrorIs(t, s.Execute(ctx, model.Choice{}), ErrChoiceRequired)
	require.NoError(t, s.Execute(ctx, model.Choice{TargetUsername: "alice"}))
	assert.Equal(t, 1, f.api.count("execute bob Swap Position alice"))

	// board elements are the host's job
	f.hub.Emit("g1", events.PlayerExecuted{GameID: "g1", Username: "alice"})
	f.hub.Emit("g1", events.PlayerExecuted{GameID: "g1", Username: "bob"})
	require.Eventually(t, func() bool { return s.View().Cursor.Executed["bob"] }, wait, tick)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, f.api.count("board"))
}

func TestSession_Batch(t *testing.T) {
	f := newSessionFixture(t, model.PhaseActivation)
	s := f.session(t, "alice")

	assert.ErrorIs(t, f.session(t, "bob").SetBatch(true), ErrNotHost)

	require.NoError(t, s.SetBatch(true))
	require.Eventually(t, func() bool { return f.api.count("reveal") == 1 }, wait, tick)

	f.hub.Emit("g1", events.RegisterRevealed{GameID: "g1", RegisterNumber: 0, RevealedCards: map[string]model.Card{"alice": model.Move1, "bob": model.MovementChoice}})
	f.hub.Emit("g1", events.NextPlayerInTurn{GameID: "g1", NextPlayerUsername: ptr("alice")})
	require.Eventually(t, func() bool { return f.api.count("execute alice Move 1") == 1 }, wait, tick)

	f.hub.Emit("g1", events.PlayerExecuted{GameID: "g1", Username: "alice"})
	f.hub.Emit("g1", events.NextPlayerInTurn{GameID: "g1", NextPlayerUsername: ptr("bob")})
	require.Eventually(t, func() bool { return s.View().Cursor.Turn == "bob" }, wait, tick)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.api.count("reveal"), "waits for bob's choice")
	assert.Zero(t, f.api.count("execute bob Movement Choice"))
	assert.True(t, s.Batching())

	f.hub.Emit("g1", events.PlayerExecuted{GameID: "g1", Username: "bob"})
	f.hub.Emit("g1", events.NextPlayerInTurn{GameID: "g1"})
	require.Eventually(t, func() bool { return f.api.count("board") == 3 && f.api.count("reveal") == 2 }, wait, tick)
}

func TestSession_EndGameByHost(t *testing.T) {
	f := newSessionFixture(t, model.PhaseActivation)
	s := f.session(t, "alice")

	f.hub.Emit("g1", events.CheckpointReached{GameID: "g1", Username: "bob", CheckpointNumber: 1})
	f.hub.Emit("g1", events.CheckpointReached{GameID: "g1", Username: "bob", CheckpointNumber: 2})
	f.hub.Emit("g1", events.CheckpointReached{GameID: "g1", Username: "bob", CheckpointNumber: 2})

	require.Eventually(t, func() bool { return s.View().Result != nil }, wait, tick)
	assert.Equal(t, 1, f.api.count("end bob"))
	assert.Equal(t, "bob", s.View().Winner)
	assert.Equal(t, 1020, s.View().Result.NewRatings["bob"])
}

func TestSession_RefreshesAfterReconnect(t *testing.T) {
	f := newSessionFixture(t, model.PhaseProgramming)
	s := f.session(t, "alice")
	before := f.api.count("state")

	var mu sync.Mutex
	var errs []error
	s.OnError(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})

	f.hub.DropAll()
	require.Eventually(t, func() bool { return f.api.count("state") > before && s.InGroup() }, wait, tick)

	mu.Lock()
	assert.Empty(t, errs)
	mu.Unlock()
}

func TestSession_LoadFallsBackToJournal(t *testing.T) {
	f := newSessionFixture(t, model.PhaseProgramming)
	snap := f.api.snapshot.Clone()
	f.journal.snap = &snap
	f.api.failOn = map[string]error{"state": assert.AnError}

	s := NewSession(f.conn, f.gm, f.api, "g1", "alice", WithJournal(f.journal))
	defer s.Close()

	require.NoError(t, s.Load(context.Background()))
	v := s.View()
	assert.True(t, v.Loaded)
	assert.Equal(t, "alice", v.Host)

	assert.Error(t, s.Refresh(context.Background()))
}

func TestSession_PanickingListener(t *testing.T) {
	f := newSessionFixture(t, model.PhaseProgramming)
	s := f.session(t, "alice")

	var mu sync.Mutex
	var locked []string
	s.OnChange(func(View) { panic("boom") })
	s.OnChange(func(v View) {
		mu.Lock()
		defer mu.Unlock()
		if p, _ := v.Player("bob"); p.HasLockedIn {
			locked = append(locked, "bob")
		}
	})

	f.hub.Emit("g1", events.PlayerLockedInRegister{GameID: "g1", Username: "bob"})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(locked) > 0
	}, wait, tick)

	// the hub connection survives and keeps delivering
	f.hub.Emit("g1", events.ActivationPhaseStarted{GameID: "g1"})
	require.Eventually(t, func() bool { return s.View().Phase == model.PhaseActivation }, wait, tick)
}
