// Package game keeps the client's copy of a running game in step with the
// server. State changes go through the pure functions Apply and
// MergeSnapshot; Session wires them to the realtime connection and the REST
// backend.
package game

import "example.com/robo-sync/internal/model"

// Result holds the rating change reported when a game completes.
type Result struct {
	OldRatings model.Ratings
	NewRatings model.Ratings
}

// View is one player's picture of a game.
type View struct {
	GameID   string
	Username string
	Host     string
	Name     string
	Phase    model.Phase
	Players  []model.Player
	Board    model.Board

	Cursor  Cursor
	Program Program
	Hand    []model.Card
	Docking Docking

	// PendingDeal holds a dealt hand while the reshuffle animation runs.
	PendingDeal    []model.Card
	ShufflePending bool

	PickPileCount    int
	DiscardPileCount int

	Winner        string
	EndRequested  bool
	Result        *Result
	RoundComplete bool
	Loaded        bool
}

func NewView(gameID, username string) View {
	return View{GameID: gameID, Username: username, Cursor: NewCursor()}
}

func (v View) IsHost() bool { return v.Username != "" && v.Host == v.Username }

func (v View) Clone() View {
	out := v
	out.Players = model.ClonePlayers(v.Players)
	out.Board = v.Board.Clone()
	out.Cursor = v.Cursor.clone()
	out.Hand = append([]model.Card(nil), v.Hand...)
	out.PendingDeal = append([]model.Card(nil), v.PendingDeal...)
	out.Docking = v.Docking.clone()
	if v.Result != nil {
		r := *v.Result
		out.Result = &r
	}
	return out
}

func (v View) Player(username string) (model.Player, bool) {
	for _, p := range v.Players {
		if p.Username == username {
			return p, true
		}
	}
	return model.Player{}, false
}

func (v View) AllLockedIn() bool {
	if len(v.Players) == 0 {
		return false
	}
	for _, p := range v.Players {
		if !p.HasLockedIn {
			return false
		}
	}
	return true
}

// CardAt returns the card username revealed for register, "" if unknown.
func (v View) CardAt(username string, register int) model.Card {
	p, ok := v.Player(username)
	if !ok || register < 0 || register >= len(p.RevealedCards) {
		return ""
	}
	return p.RevealedCards[register]
}

// CurrentCard is the card the player in turn is about to execute.
func (v View) CurrentCard() model.Card {
	return v.CardAt(v.Cursor.Turn, v.Cursor.Revealed)
}

func (v *View) player(username string) *model.Player {
	for i := range v.Players {
		if v.Players[i].Username == username {
			return &v.Players[i]
		}
	}
	return nil
}

func (v *View) setLockedIn(username string) {
	if p := v.player(username); p != nil {
		p.HasLockedIn = true
	}
}

// Effect is work a state change asks for outside the reducer.
type Effect interface{ effect() }

// ShuffleEffect starts the reshuffle animation for a freshly dealt hand.
type ShuffleEffect struct{ Cards []model.Card }

// AdvanceBoardEffect asks the host to run board elements for Register.
type AdvanceBoardEffect struct{ Register int }

// EndGameEffect asks the host to end the game with Winner.
type EndGameEffect struct{ Winner string }

func (ShuffleEffect) effect()      {}
func (AdvanceBoardEffect) effect() {}
func (EndGameEffect) effect()      {}
