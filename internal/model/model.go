// Package model holds the data shapes exchanged with the backend: the
// authoritative game snapshot and the pieces it is made of.
package model

// RegisterCount is the number of program slots per player and round.
const RegisterCount = 5

type Phase string

const (
	PhaseDocking     Phase = "Docking"
	PhaseProgramming Phase = "Programming"
	PhaseActivation  Phase = "Activation"
	PhaseGameOver    Phase = "GameOver"
)

func (p Phase) Valid() bool {
	switch p {
	case PhaseDocking, PhaseProgramming, PhaseActivation, PhaseGameOver:
		return true
	}
	return false
}

type Direction string

const (
	North Direction = "North"
	East  Direction = "East"
	South Direction = "South"
	West  Direction = "West"
)

type Player struct {
	Username   string    `json:"username"`
	Robot      string    `json:"robot"`
	PositionX  int       `json:"positionX"`
	PositionY  int       `json:"positionY"`
	Direction  Direction `json:"direction"`
	Checkpoint int       `json:"currentCheckpoint"`

	IsReady     bool `json:"isReady"`
	HasLockedIn bool `json:"hasLockedIn"`

	// RevealedCards is indexed by register; unrevealed registers are "".
	RevealedCards []Card `json:"revealedCardsInOrder,omitempty"`
}

// PersonalState is the part of a snapshot only the requesting player sees.
type PersonalState struct {
	DealtCards       []Card `json:"dealtCards,omitempty"`
	LockedInCards    []Card `json:"lockedInCards,omitempty"`
	PickPileCount    int    `json:"programmingPickPilesCount"`
	DiscardPileCount int    `json:"discardPileCount"`
}

type Snapshot struct {
	GameID       string   `json:"gameId"`
	HostUsername string   `json:"hostUsername"`
	Name         string   `json:"name"`
	Phase        Phase    `json:"currentPhase"`
	Players      []Player `json:"players"`
	Board        Board    `json:"gameBoard"`

	// nil means nothing revealed yet this round.
	RevealedRegister *int `json:"currentRevealedRegister"`
	// nil means a reveal is needed.
	CurrentTurnUsername *string `json:"currentTurnUsername"`

	Personal PersonalState `json:"personalState"`
}

// Clone returns a deep copy so callers can hand snapshots across goroutines.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Players = ClonePlayers(s.Players)
	out.Board = s.Board.Clone()
	if s.RevealedRegister != nil {
		v := *s.RevealedRegister
		out.RevealedRegister = &v
	}
	if s.CurrentTurnUsername != nil {
		v := *s.CurrentTurnUsername
		out.CurrentTurnUsername = &v
	}
	out.Personal.DealtCards = append([]Card(nil), s.Personal.DealtCards...)
	out.Personal.LockedInCards = append([]Card(nil), s.Personal.LockedInCards...)
	return out
}

func ClonePlayers(ps []Player) []Player {
	if ps == nil {
		return nil
	}
	out := make([]Player, len(ps))
	for i, p := range ps {
		out[i] = p
		out[i].RevealedCards = append([]Card(nil), p.RevealedCards...)
	}
	return out
}

// Ratings maps username to rating.
type Ratings map[string]int
