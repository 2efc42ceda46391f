package journal

import (
	"context"
	"testing"

	"example.com/robo-sync/internal/events"
	"example.com/robo-sync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_AppendAndTrim(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)

	require.NoError(t, m.Append(ctx, "g1", events.PlayerExecuted{GameID: "g1", Username: "alice"}))
	require.NoError(t, m.Append(ctx, "g1", events.NextPlayerInTurn{GameID: "g1"}))
	require.NoError(t, m.Append(ctx, "g1", events.RegisterRevealed{GameID: "g1", RegisterNumber: 1, RevealedCards: map[string]model.Card{"bob": model.Again}}))
	require.NoError(t, m.Append(ctx, "g2", events.PlayerExecuted{GameID: "g2", Username: "carol"}))

	got, err := m.Entries(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, events.KindNextPlayerInTurn, got[0].Kind)

	e, err := got[1].Event()
	require.NoError(t, err)
	rev, ok := e.(events.RegisterRevealed)
	require.True(t, ok)
	assert.Equal(t, model.Again, rev.RevealedCards["bob"])
}

func TestMemory_Snapshot(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	_, ok, err := m.LoadSnapshot(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, ok)

	snap := model.Snapshot{GameID: "g1", Players: []model.Player{{Username: "alice"}}}
	require.NoError(t, m.SaveSnapshot(ctx, "g1", snap))
	snap.Players[0].Username = "changed"

	got, ok, err := m.LoadSnapshot(ctx, "g1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", got.Players[0].Username, "stored copy is independent")
}
