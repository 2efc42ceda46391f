package game

import "example.com/robo-sync/internal/model"

// MergeSnapshot reconciles v with an authoritative snapshot. Every field the
// snapshot carries wins over local optimistic state; fields it cannot know
// about (shuffle in progress, board activation bookkeeping, end request)
// survive.
func MergeSnapshot(v View, s model.Snapshot) View {
	if s.GameID != "" && s.GameID != v.GameID {
		return v
	}
	s = s.Clone()
	out := v.Clone()

	out.Host = s.HostUsername
	out.Name = s.Name
	if s.Phase.Valid() {
		out.Phase = s.Phase
	}
	out.Players = s.Players
	out.Board = s.Board

	revealed := -1
	if s.RevealedRegister != nil {
		revealed = min(*s.RevealedRegister, LastRegister)
	}
	switch {
	case revealed < v.Cursor.Revealed:
		// the server moved on to a new round
		out.Cursor = NewCursor()
		out.Cursor.Revealed = revealed
		out.RoundComplete = false
	case revealed > v.Cursor.Revealed:
		out.Cursor.Revealed = revealed
		out.Cursor.Executed = map[string]bool{}
	}
	out.Cursor.Turn = ""
	if s.CurrentTurnUsername != nil {
		out.Cursor.Turn = *s.CurrentTurnUsername
	}
	if out.Phase == model.PhaseActivation && revealed >= 0 {
		out = resumeRegister(out, revealed)
	}

	out.PickPileCount = s.Personal.PickPileCount
	out.DiscardPileCount = s.Personal.DiscardPileCount
	switch {
	case len(s.Personal.LockedInCards) > 0:
		out.Program = ProgramOf(s.Personal.LockedInCards, true)
		out.Hand = nil
		out.PendingDeal = nil
		out.ShufflePending = false
	case out.ShufflePending:
		out.Program = Program{}
		out.PendingDeal = s.Personal.DealtCards
	default:
		out.Program = Program{}
		out.Hand = s.Personal.DealtCards
	}
	if p, ok := out.Player(out.Username); ok && p.HasLockedIn && !out.Program.Locked() {
		out.Program = out.Program.Lock()
		out.Hand = nil
	}

	out.Loaded = true
	return out
}

// resumeRegister rebuilds the register bookkeeping a missed event stream
// leaves behind. Players are listed in execution order, so everyone ahead of
// the player in turn has executed. With no turn the register is over and a
// reveal is due, unless this client is still activating its board elements.
func resumeRegister(v View, revealed int) View {
	c := v.Cursor
	if c.Turn != "" {
		for _, p := range v.Players {
			if p.Username == c.Turn {
				break
			}
			c.Executed[p.Username] = true
		}
		v.Cursor = c
		return v
	}
	if c.BoardPending && c.LastProcessed == revealed {
		return v
	}
	for _, p := range v.Players {
		c.Executed[p.Username] = true
	}
	c.LastProcessed = revealed
	c.BoardPending = false
	v.Cursor = c
	if revealed == LastRegister {
		v.RoundComplete = true
	}
	return v
}
