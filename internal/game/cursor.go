package game

import "example.com/robo-sync/internal/model"

// LastRegister is the index of the final register in a round.
const LastRegister = model.RegisterCount - 1

// Cursor tracks progress through the activation phase of one round.
type Cursor struct {
	// Revealed is the highest revealed register, -1 before the first reveal.
	Revealed int
	// Turn is the player whose card must execute next; "" means the
	// register's turn cycle is over and a reveal is due.
	Turn     string
	Executed map[string]bool

	// LastProcessed is the register whose board elements were triggered.
	LastProcessed int
	// BoardPending is set while board elements are being activated.
	BoardPending bool
}

func NewCursor() Cursor {
	return Cursor{Revealed: -1, LastProcessed: -1, Executed: map[string]bool{}}
}

func (c Cursor) clone() Cursor {
	out := c
	out.Executed = make(map[string]bool, len(c.Executed))
	for k, v := range c.Executed {
		out.Executed[k] = v
	}
	return out
}

// CanReveal reports whether the next register may be revealed: no turn is
// running and the current register's board elements have been triggered
// and finished.
func (c Cursor) CanReveal() bool {
	if c.Turn != "" || c.BoardPending || c.Revealed >= LastRegister {
		return false
	}
	return c.Revealed < 0 || c.LastProcessed == c.Revealed
}

// AllRevealed is true once the last register is showing.
func (c Cursor) AllRevealed() bool { return c.Revealed >= LastRegister }

// ApplyReveal moves to register n. Registers at or below the current one,
// and out of range ones, are ignored.
func (c Cursor) ApplyReveal(n int) (Cursor, bool) {
	if n <= c.Revealed || n < 0 || n > LastRegister {
		return c, false
	}
	out := c.clone()
	out.Revealed = n
	out.Executed = map[string]bool{}
	return out, true
}

func (c Cursor) MarkExecuted(username string) Cursor {
	if username == "" || c.Executed[username] {
		return c
	}
	out := c.clone()
	out.Executed[username] = true
	return out
}

func (c Cursor) AllExecuted(players []model.Player) bool {
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		if !c.Executed[p.Username] {
			return false
		}
	}
	return true
}
