package game

import (
	"fmt"

	"example.com/robo-sync/internal/model"
)

type StepKind int

const (
	// StepIdle means nothing can be done until another event arrives.
	StepIdle StepKind = iota
	StepReveal
	StepExecute
	// StepWait means the player in turn holds an interactive card and has
	// to choose themselves.
	StepWait
	StepDone
)

func (k StepKind) String() string {
	switch k {
	case StepReveal:
		return "reveal"
	case StepExecute:
		return "execute"
	case StepWait:
		return "wait"
	case StepDone:
		return "done"
	}
	return "idle"
}

// Step is one move of the automated activation run.
type Step struct {
	Kind     StepKind
	Register int
	Username string
	Card     model.Card
}

// key identifies a step so it is issued once.
func (s Step) key() string {
	return fmt.Sprintf("%s/%d/%s", s.Kind, s.Register, s.Username)
}

// NextBatchStep picks what the host does next when running the activation
// phase automatically.
func NextBatchStep(v View) Step {
	c := v.Cursor
	if v.Phase != model.PhaseActivation {
		return Step{Kind: StepIdle}
	}
	if c.AllRevealed() && c.AllExecuted(v.Players) && !c.BoardPending {
		return Step{Kind: StepDone, Register: c.Revealed}
	}
	if c.CanReveal() {
		return Step{Kind: StepReveal, Register: c.Revealed + 1}
	}
	if c.Turn == "" || c.Executed[c.Turn] {
		return Step{Kind: StepIdle}
	}
	card := v.CardAt(c.Turn, c.Revealed)
	switch {
	case card == "":
		return Step{Kind: StepIdle}
	case card.Interactive():
		return Step{Kind: StepWait, Register: c.Revealed, Username: c.Turn, Card: card}
	}
	return Step{Kind: StepExecute, Register: c.Revealed, Username: c.Turn, Card: card}
}
