package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"example.com/robo-sync/internal/api"
	"example.com/robo-sync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI records backend calls in order.
type fakeAPI struct {
	mu       sync.Mutex
	calls    []string
	snapshot model.Snapshot
	failOn   map[string]error
}

func (f *fakeAPI) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.failOn[call]
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAPI) DealDecksToAll(_ context.Context, gameID, username string) error {
	return f.record("deal")
}

func (f *fakeAPI) StartActivationPhase(context.Context, string, string) error {
	return f.record("activation")
}

func (f *fakeAPI) RevealNextRegister(context.Context, string, string) error {
	return f.record("reveal")
}

func (f *fakeAPI) ActivateNextBoardElement(context.Context, string) error {
	return f.record("board")
}

func (f *fakeAPI) StartNextRound(context.Context, string) error {
	return f.record("next round")
}

func (f *fakeAPI) EndGame(_ context.Context, _, winner string) (api.EndGameResult, error) {
	return api.EndGameResult{NewRatings: model.Ratings{winner: 1020}}, f.record("end " + winner)
}

func (f *fakeAPI) CurrentState(context.Context, string, string) (model.Snapshot, error) {
	err := f.record("state")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot.Clone(), err
}

func (f *fakeAPI) SubmitProgram(_ context.Context, _, username string, cards []model.Card) error {
	return f.record(fmt.Sprintf("submit %s %d", username, len(cards)))
}

func (f *fakeAPI) ExecuteCard(_ context.Context, _, username string, card model.Card, choice model.Choice) error {
	call := fmt.Sprintf("execute %s %s", username, card)
	if !choice.Empty() {
		call += " " + choice.TargetUsername + string(choice.MovementChoice)
	}
	return f.record(call)
}

func TestHost_Guards(t *testing.T) {
	rest := &fakeAPI{}
	h := NewHost(rest, nil)
	ctx := context.Background()

	guest := twoPlayerView("bob")
	assert.ErrorIs(t, h.Deal(ctx, guest), ErrNotHost)
	assert.ErrorIs(t, h.RevealNext(ctx, guest), ErrNotHost)

	v := twoPlayerView("alice")
	assert.ErrorIs(t, h.StartActivation(ctx, v), ErrNotAllLockedIn)
	assert.ErrorIs(t, h.StartNextRound(ctx, v), ErrRoundNotComplete)

	v.Cursor.Turn = "bob"
	assert.ErrorIs(t, h.RevealNext(ctx, v), ErrRevealBlocked)

	v.Cursor.Turn = ""
	require.NoError(t, h.RevealNext(ctx, v))
	require.NoError(t, h.Deal(ctx, v))

	v.Phase = model.PhaseGameOver
	assert.ErrorIs(t, h.Deal(ctx, v), ErrGameOver)

	assert.Equal(t, []string{"reveal", "deal"}, rest.Calls())
}

func TestHost_AdvanceBoardElements(t *testing.T) {
	rest := &fakeAPI{}
	h := NewHost(rest, nil)
	require.NoError(t, h.advanceBoardElements(context.Background(), "g1", 0))
	assert.Equal(t, []string{"board", "board", "board"}, rest.Calls())

	rest = &fakeAPI{failOn: map[string]error{"board": errors.New("boom")}}
	h = NewHost(rest, nil)
	err := h.advanceBoardElements(context.Background(), "g1", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "board element 1/3 for register 2")
	assert.Equal(t, []string{"board"}, rest.Calls(), "stops at the first failure")
}

func TestNextBatchStep(t *testing.T) {
	cards := func(c0 model.Card) []model.Card { return []model.Card{c0, "", "", "", ""} }
	base := twoPlayerView("alice")
	base.Players[0].RevealedCards = cards(model.Move1)
	base.Players[1].RevealedCards = cards(model.SwapPosition)
	base.Cursor.Revealed = 0

	cases := []struct {
		name string
		edit func(v *View)
		want Step
	}{
		{
			name: "not activation",
			edit: func(v *View) { v.Phase = model.PhaseProgramming },
			want: Step{Kind: StepIdle},
		},
		{
			name: "wait for the register to finish",
			edit: func(v *View) {},
			want: Step{Kind: StepIdle},
		},
		{
			name: "reveal when the register is done",
			edit: func(v *View) { v.Cursor.LastProcessed = 0 },
			want: Step{Kind: StepReveal, Register: 1},
		},
		{
			name: "execute turn player's card",
			edit: func(v *View) { v.Cursor.Turn = "alice" },
			want: Step{Kind: StepExecute, Register: 0, Username: "alice", Card: model.Move1},
		},
		{
			name: "wait on interactive card",
			edit: func(v *View) { v.Cursor.Turn = "bob" },
			want: Step{Kind: StepWait, Register: 0, Username: "bob", Card: model.SwapPosition},
		},
		{
			name: "idle while board elements run",
			edit: func(v *View) { v.Cursor.BoardPending = true },
			want: Step{Kind: StepIdle},
		},
		{
			name: "done after the last register",
			edit: func(v *View) {
				v.Cursor.Revealed = LastRegister
				v.Cursor.Executed = map[string]bool{"alice": true, "bob": true}
			},
			want: Step{Kind: StepDone, Register: LastRegister},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			v := base.Clone()
			tc.edit(&v)
			assert.Equal(t, tc.want, NextBatchStep(v))
		})
	}
}
