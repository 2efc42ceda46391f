package game

import (
	"testing"

	"example.com/robo-sync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgram_PlaceAndClear(t *testing.T) {
	v := NewView("g1", "alice")
	v.Hand = []model.Card{model.Move1, model.Move2, model.Move1, model.UTurn}

	v, err := PlaceCard(v, 0, model.Move1)
	require.NoError(t, err)
	assert.Equal(t, model.Move1, v.Program.Slot(0))
	assert.Equal(t, []model.Card{model.Move2, model.Move1, model.UTurn}, v.Hand)

	// replacing returns the old card to the hand
	v, err = PlaceCard(v, 0, model.UTurn)
	require.NoError(t, err)
	assert.Equal(t, model.UTurn, v.Program.Slot(0))
	assert.ElementsMatch(t, []model.Card{model.Move2, model.Move1, model.Move1}, v.Hand)

	_, err = PlaceCard(v, 1, model.Again)
	assert.ErrorIs(t, err, ErrCardNotInHand)
	_, err = PlaceCard(v, model.RegisterCount, model.Move2)
	assert.ErrorIs(t, err, ErrSlotRange)

	v, err = ClearSlot(v, 0)
	require.NoError(t, err)
	assert.True(t, v.Program.Empty())
	assert.Len(t, v.Hand, 4)

	_, err = ClearSlot(v, 0)
	assert.ErrorIs(t, err, ErrSlotEmpty)
}

func TestProgram_Locked(t *testing.T) {
	v := NewView("g1", "alice")
	v.Players = []model.Player{{Username: "alice"}}
	v.Hand = []model.Card{model.Move1}
	v = LockLocal(v)

	assert.True(t, v.Program.Locked())
	p, _ := v.Player("alice")
	assert.True(t, p.HasLockedIn)

	v.Hand = []model.Card{model.Move1}
	_, err := PlaceCard(v, 0, model.Move1)
	assert.ErrorIs(t, err, ErrProgramLocked)
}

func TestProgram_FillEmpty(t *testing.T) {
	p := ProgramOf([]model.Card{model.Move1, "", model.Move2}, false)
	p = p.FillEmpty([]model.Card{model.Again, model.PowerUp, model.UTurn})

	assert.Equal(t, []model.Card{model.Move1, model.Again, model.Move2, model.PowerUp, model.UTurn}, p.Cards())
	assert.True(t, p.Complete())
	assert.False(t, p.Locked())
}

func TestDocking(t *testing.T) {
	v := NewView("g1", "alice")
	v.Phase = model.PhaseDocking
	v.Players = []model.Player{{Username: "alice"}, {Username: "bob"}}

	v, err := ApplyDocking(v, "alice", 1, true)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseDocking, v.Phase)

	_, err = ApplyDocking(v, "bob", 1, true)
	assert.ErrorIs(t, err, ErrBayTaken)

	v, err = ApplyDocking(v, "bob", 2, false)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseDocking, v.Phase, "bob not ready")

	v, err = ApplyDocking(v, "bob", 2, true)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseProgramming, v.Phase)
}
