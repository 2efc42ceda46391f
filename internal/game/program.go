package game

import (
	"errors"
	"fmt"

	"example.com/robo-sync/internal/model"
)

var (
	ErrProgramLocked     = errors.New("program is locked for this round")
	ErrSlotRange         = fmt.Errorf("register slot out of range 0..%d", model.RegisterCount-1)
	ErrProgramIncomplete = errors.New("program needs a card in every register")
	ErrCardNotInHand     = errors.New("card is not in hand")
	ErrSlotEmpty         = errors.New("register slot is empty")
)

// Program is the five register program for the current round. It is a
// value: every change returns a new Program.
type Program struct {
	slots  [model.RegisterCount]model.Card
	locked bool
}

// ProgramOf builds a program from cards in register order.
func ProgramOf(cards []model.Card, locked bool) Program {
	var p Program
	copy(p.slots[:], cards)
	p.locked = locked
	return p
}

func (p Program) Locked() bool { return p.locked }

func (p Program) Slot(i int) model.Card {
	if i < 0 || i >= model.RegisterCount {
		return ""
	}
	return p.slots[i]
}

// Cards returns the slots in order, empty slots as "".
func (p Program) Cards() []model.Card {
	return append([]model.Card(nil), p.slots[:]...)
}

func (p Program) Complete() bool {
	for _, c := range p.slots {
		if c == "" {
			return false
		}
	}
	return true
}

func (p Program) Empty() bool {
	for _, c := range p.slots {
		if c != "" {
			return false
		}
	}
	return true
}

// Place puts card in slot i and returns the card it replaced.
func (p Program) Place(i int, card model.Card) (Program, model.Card, error) {
	if p.locked {
		return p, "", ErrProgramLocked
	}
	if i < 0 || i >= model.RegisterCount {
		return p, "", ErrSlotRange
	}
	prev := p.slots[i]
	p.slots[i] = card
	return p, prev, nil
}

func (p Program) Clear(i int) (Program, model.Card, error) {
	return p.Place(i, "")
}

func (p Program) Lock() Program {
	p.locked = true
	return p
}

// FillEmpty assigns cards to the empty slots in register order. Extra cards
// are ignored; missing ones leave slots empty.
func (p Program) FillEmpty(cards []model.Card) Program {
	next := 0
	for i := range p.slots {
		if next >= len(cards) {
			break
		}
		if p.slots[i] == "" {
			p.slots[i] = cards[next]
			next++
		}
	}
	return p
}

// removeCard drops one copy of card from hand.
func removeCard(hand []model.Card, card model.Card) ([]model.Card, bool) {
	for i, c := range hand {
		if c == card {
			out := make([]model.Card, 0, len(hand)-1)
			out = append(out, hand[:i]...)
			return append(out, hand[i+1:]...), true
		}
	}
	return hand, false
}

// PlaceCard moves a card from the hand into register slot. A card already in
// that slot goes back to the hand.
func PlaceCard(v View, slot int, card model.Card) (View, error) {
	if v.Program.Locked() {
		return v, ErrProgramLocked
	}
	hand, ok := removeCard(v.Hand, card)
	if !ok {
		return v, ErrCardNotInHand
	}
	prog, prev, err := v.Program.Place(slot, card)
	if err != nil {
		return v, err
	}
	if prev != "" {
		hand = append(hand, prev)
	}
	out := v.Clone()
	out.Program = prog
	out.Hand = hand
	return out, nil
}

// ClearSlot returns the card in slot to the hand.
func ClearSlot(v View, slot int) (View, error) {
	prog, prev, err := v.Program.Clear(slot)
	if err != nil {
		return v, err
	}
	if prev == "" {
		return v, ErrSlotEmpty
	}
	out := v.Clone()
	out.Program = prog
	out.Hand = append(out.Hand, prev)
	return out, nil
}

// LockLocal applies a successful program submission before the server
// confirms it.
func LockLocal(v View) View {
	out := v.Clone()
	out.Program = out.Program.Lock()
	out.Hand = nil
	out.setLockedIn(v.Username)
	return out
}
