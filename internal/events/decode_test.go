package events

import (
	"encoding/json"
	"testing"

	"example.com/robo-sync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func args(payload string) []json.RawMessage {
	return []json.RawMessage{json.RawMessage(payload)}
}

func TestDecode(t *testing.T) {
	cases := []struct {
		name    string
		target  string
		payload string
		check   func(t *testing.T, e Event)
	}{
		{
			name:    "cards_dealt",
			target:  "PlayerCardsDealt",
			payload: `{"gameId":"g1","username":"alice","dealtCards":["Move 1","U-Turn"],"isDeckReshuffled":true,"programmingPickPilesCount":11}`,
			check: func(t *testing.T, e Event) {
				d, ok := e.(PlayerCardsDealt)
				require.True(t, ok)
				assert.Equal(t, []model.Card{model.Move1, model.UTurn}, d.DealtCards)
				assert.True(t, d.IsDeckReshuffled)
				assert.Equal(t, 11, d.PickPileCount)
				assert.Equal(t, "g1", e.Scope())
			},
		},
		{
			name:    "next_player_null",
			target:  "NextPlayerInTurn",
			payload: `{"gameId":"g1","nextPlayerUsername":null}`,
			check: func(t *testing.T, e Event) {
				n, ok := e.(NextPlayerInTurn)
				require.True(t, ok)
				assert.Nil(t, n.NextPlayerUsername)
			},
		},
		{
			name:    "robot_pushed",
			target:  "RobotMoved",
			payload: `{"gameId":"g1","username":"bob","positionX":3,"positionY":4,"direction":"West"}`,
			check: func(t *testing.T, e Event) {
				m, ok := e.(RobotMoved)
				require.True(t, ok)
				assert.Nil(t, m.ExecutedCard)
				assert.Equal(t, model.West, m.Direction)
			},
		},
		{
			name:    "state_updated_inlines_snapshot",
			target:  "GameStateUpdated",
			payload: `{"gameId":"g9","currentPhase":"Activation","currentRevealedRegister":2,"players":[{"username":"alice"}]}`,
			check: func(t *testing.T, e Event) {
				s, ok := e.(GameStateUpdated)
				require.True(t, ok)
				assert.Equal(t, "g9", s.Scope())
				assert.Equal(t, model.PhaseActivation, s.Phase)
				require.NotNil(t, s.RevealedRegister)
				assert.Equal(t, 2, *s.RevealedRegister)
			},
		},
		{
			name:    "pause_result",
			target:  "GamePauseResult",
			payload: `{"gameId":"g1","result":true,"requestedBy":"alice","playerResponses":{"bob":true}}`,
			check: func(t *testing.T, e Event) {
				r, ok := e.(GamePauseResult)
				require.True(t, ok)
				assert.Equal(t, map[string]bool{"bob": true}, r.PlayerResponses)
			},
		},
		{
			name:    "lobby_updated",
			target:  "LobbyUpdated",
			payload: `{"gameId":"l1","lobbyname":"Arena","hostUsername":"alice","joinedUsernames":["alice","bob"],"maxPlayers":6,"timestamp":"2025-11-04T21:25:08.1234567"}`,
			check: func(t *testing.T, e Event) {
				u, ok := e.(LobbyUpdated)
				require.True(t, ok)
				assert.Equal(t, "Arena", u.LobbyName)
				assert.Len(t, u.JoinedUsernames, 2)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, err := Decode(tc.target, args(tc.payload))
			require.NoError(t, err)
			assert.Equal(t, Kind(tc.target), e.Kind())
			tc.check(t, e)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode("SomethingNew", args(`{}`))
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = Decode("RobotMoved", nil)
	assert.ErrorIs(t, err, ErrNoPayload)

	_, err = Decode("RobotMoved", args(`{"positionX":"three"}`))
	assert.Error(t, err)
}

func TestKinds_AllDecodable(t *testing.T) {
	for _, k := range Kinds() {
		e, err := Decode(string(k), args(`{}`))
		require.NoError(t, err, k)
		assert.Equal(t, k, e.Kind())
	}
}
