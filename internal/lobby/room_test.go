package lobby

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"example.com/robo-sync/internal/api"
	"example.com/robo-sync/internal/devhub"
	"example.com/robo-sync/internal/events"
	"example.com/robo-sync/internal/groups"
	"example.com/robo-sync/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu      sync.Mutex
	info    api.LobbyInfo
	started []string
	left    []string
}

func (f *fakeAPI) LobbyInfo(context.Context, string) (api.LobbyInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info, nil
}

func (f *fakeAPI) StartGame(_ context.Context, gameID, _, board string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, gameID+"/"+board)
	return nil
}

func (f *fakeAPI) LeaveLobby(_ context.Context, gameID, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, gameID+"/"+username)
	return nil
}

type roomFixture struct {
	hub  *devhub.Hub
	conn *realtime.Manager
	gm   *groups.Manager
	api  *fakeAPI
}

func newRoomFixture(t *testing.T) *roomFixture {
	t.Helper()
	lobbyHub := devhub.New(nil)
	ts := httptest.NewServer(devhub.NewServer(lobbyHub, devhub.New(nil), devhub.Paths{Lobby: "/game-lobbies", Game: "/game-play"}, nil, nil))
	t.Cleanup(ts.Close)

	conn := realtime.NewManager(nil)
	conn.Initialize(realtime.Config{
		URL:         "ws" + strings.TrimPrefix(ts.URL, "http") + "/game-lobbies",
		JoinMethod:  "JoinLobby",
		LeaveMethod: "LeaveLobby",
	})
	require.NoError(t, conn.Start(context.Background()))
	t.Cleanup(func() { _ = conn.Stop(context.Background()) })

	gm := groups.NewManager(conn, nil)
	t.Cleanup(gm.Close)

	return &roomFixture{
		hub:  lobbyHub,
		conn: conn,
		gm:   gm,
		api:  &fakeAPI{info: api.LobbyInfo{GameID: "l1", LobbyName: "Arena", HostUsername: "alice", JoinedUsernames: []string{"alice", "bob"}}},
	}
}

func TestRoom_FollowsLobby(t *testing.T) {
	f := newRoomFixture(t)
	room := NewRoom(f.conn, f.gm, f.api, "l1", "alice", nil)
	defer room.Close()

	require.NoError(t, room.Load(context.Background()))
	require.Eventually(t, room.InGroup, 2*time.Second, 10*time.Millisecond)
	assert.True(t, room.State().CanStart("alice"))

	var mu sync.Mutex
	var seen []State
	room.OnChange(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	f.hub.Emit("l1", events.UserJoinedLobby{GameID: "l1", Username: "carol"})
	f.hub.Emit("l2", events.UserJoinedLobby{GameID: "l2", Username: "dave"})
	require.Eventually(t, func() bool {
		_, ok := room.State().Player("carol")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	_, ok := room.State().Player("dave")
	assert.False(t, ok)

	require.NoError(t, room.ToggleReady(context.Background()))
	require.Eventually(t, func() bool {
		p, _ := room.State().Player("alice")
		return !p.Ready
	}, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, room.Start(context.Background(), "Starter"), ErrNotHost)

	require.NoError(t, room.ToggleReady(context.Background()))
	require.Eventually(t, func() bool { return room.State().AllReady() }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, room.Start(context.Background(), "Starter"))
	assert.Equal(t, []string{"l1/Starter"}, f.api.started)

	mu.Lock()
	assert.GreaterOrEqual(t, len(seen), 3)
	mu.Unlock()
}

func TestRoom_ToggleNeedsGroup(t *testing.T) {
	f := newRoomFixture(t)
	require.NoError(t, f.conn.Stop(context.Background()))

	room := NewRoom(f.conn, f.gm, f.api, "l1", "bob", nil)
	defer room.Close()
	assert.ErrorIs(t, room.ToggleReady(context.Background()), ErrNotInLobby)
}

func TestRoom_Leave(t *testing.T) {
	f := newRoomFixture(t)
	room := NewRoom(f.conn, f.gm, f.api, "l1", "bob", nil)
	require.Eventually(t, room.InGroup, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, room.Leave(context.Background()))
	assert.Equal(t, []string{"l1/bob"}, f.api.left)
	require.Eventually(t, func() bool { return len(f.hub.Members("l1")) == 0 }, 2*time.Second, 10*time.Millisecond)
}
