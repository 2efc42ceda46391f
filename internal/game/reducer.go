package game

import (
	"example.com/robo-sync/internal/events"
	"example.com/robo-sync/internal/model"
)

// Apply folds one server event into v. It never mutates v and returns the
// effects the transition asks for. Events for other games are ignored.
func Apply(v View, e events.Event) (View, []Effect) {
	if e.Scope() != v.GameID {
		return v, nil
	}

	out := v.Clone()
	var effects []Effect

	switch ev := e.(type) {
	case events.GameStateUpdated:
		out = MergeSnapshot(v, ev.Snapshot)

	case events.GameStarted:
		if out.Phase == "" {
			out.Phase = model.PhaseProgramming
		}

	case events.PlayerCardsDealt:
		if ev.Username != v.Username {
			return v, nil
		}
		out = newRound(out)
		out.PickPileCount = ev.PickPileCount
		cards := append([]model.Card(nil), ev.DealtCards...)
		if ev.IsDeckReshuffled {
			out.PendingDeal = cards
			out.ShufflePending = true
			effects = append(effects, ShuffleEffect{Cards: append([]model.Card(nil), cards...)})
		} else {
			out.Hand = cards
		}

	case events.PlayerLockedInRegister:
		out.setLockedIn(ev.Username)
		if ev.Username == v.Username {
			if len(ev.LockedCards) == model.RegisterCount {
				out.Program = ProgramOf(ev.LockedCards, true)
			} else {
				out.Program = out.Program.Lock()
			}
			out.Hand = nil
		}

	case events.ProgrammingTimeout:
		out.setLockedIn(ev.Username)
		if ev.Username == v.Username && !out.Program.Locked() {
			out.Program = out.Program.FillEmpty(ev.AssignedCards).Lock()
			out.Hand = nil
		}

	case events.ActivationPhaseStarted:
		out.Phase = model.PhaseActivation

	case events.RegisterRevealed:
		cur, ok := out.Cursor.ApplyReveal(ev.RegisterNumber)
		if !ok {
			return v, nil
		}
		out.Cursor = cur
		out.Phase = model.PhaseActivation
		for i := range out.Players {
			card, ok := ev.RevealedCards[out.Players[i].Username]
			if !ok {
				continue
			}
			p := &out.Players[i]
			for len(p.RevealedCards) < model.RegisterCount {
				p.RevealedCards = append(p.RevealedCards, "")
			}
			p.RevealedCards[ev.RegisterNumber] = card
		}

	case events.NextPlayerInTurn:
		out.Cursor.Turn = ""
		if ev.NextPlayerUsername != nil {
			out.Cursor.Turn = *ev.NextPlayerUsername
		}

	case events.RobotMoved:
		if p := out.player(ev.Username); p != nil {
			p.PositionX, p.PositionY = ev.PositionX, ev.PositionY
			if ev.Direction != "" {
				p.Direction = ev.Direction
			}
		}
		// pushes by other robots or board elements do not count as a turn
		if ev.ExecutedCard != nil {
			out.Cursor = out.Cursor.MarkExecuted(ev.Username)
		}

	case events.PlayerExecuted:
		out.Cursor = out.Cursor.MarkExecuted(ev.Username)

	case events.CheckpointReached:
		if p := out.player(ev.Username); p != nil && ev.CheckpointNumber > p.Checkpoint {
			p.Checkpoint = ev.CheckpointNumber
		}
		last := out.Board.MaxCheckpoint()
		if last > 0 && ev.CheckpointNumber >= last && !out.EndRequested {
			out.EndRequested = true
			out.Winner = ev.Username
			out.Phase = model.PhaseGameOver
			effects = append(effects, EndGameEffect{Winner: ev.Username})
		}

	case events.GameCompleted:
		out.Phase = model.PhaseGameOver
		out.EndRequested = true
		if ev.Winner != "" {
			out.Winner = ev.Winner
		}
		out.Result = &Result{OldRatings: ev.OldRatings, NewRatings: ev.NewRatings}

	default:
		// lobby and pause events are handled elsewhere
		return v, nil
	}

	if eff, ok := boardDue(&out); ok {
		effects = append(effects, eff)
	}
	return out, effects
}

// boardDue marks the current register for board activation once every
// player has executed for it. It fires at most once per register.
func boardDue(v *View) (Effect, bool) {
	c := v.Cursor
	if v.Phase != model.PhaseActivation || c.Revealed < 0 || c.Revealed == c.LastProcessed {
		return nil, false
	}
	if !c.AllExecuted(v.Players) {
		return nil, false
	}
	v.Cursor.LastProcessed = c.Revealed
	v.Cursor.BoardPending = true
	return AdvanceBoardEffect{Register: c.Revealed}, true
}

func newRound(v View) View {
	v.Phase = model.PhaseProgramming
	for i := range v.Players {
		v.Players[i].HasLockedIn = false
		v.Players[i].RevealedCards = nil
	}
	v.Cursor = NewCursor()
	v.Program = Program{}
	v.Hand = nil
	v.PendingDeal = nil
	v.ShufflePending = false
	v.RoundComplete = false
	return v
}

// CompleteShuffle ends the reshuffle animation and hands the held cards over.
func CompleteShuffle(v View) View {
	if !v.ShufflePending {
		return v
	}
	out := v.Clone()
	out.Hand = out.PendingDeal
	out.PendingDeal = nil
	out.ShufflePending = false
	return out
}

// FinishBoard records that board elements for register have run.
func FinishBoard(v View, register int) View {
	if register != v.Cursor.LastProcessed {
		return v
	}
	out := v.Clone()
	out.Cursor.BoardPending = false
	if register == LastRegister {
		out.RoundComplete = true
	}
	return out
}
