package model

// Card is a programming card identifier as the backend names it.
type Card string

const (
	Move1          Card = "Move 1"
	Move2          Card = "Move 2"
	Move3          Card = "Move 3"
	RotateLeft     Card = "Rotate Left"
	RotateRight    Card = "Rotate Right"
	UTurn          Card = "U-Turn"
	MoveBack       Card = "Move Back"
	PowerUp        Card = "Power Up"
	Again          Card = "Again"
	SwapPosition   Card = "Swap Position"
	MovementChoice Card = "Movement Choice"
)

// Interactive reports whether executing the card needs a player choice.
func (c Card) Interactive() bool {
	return c == SwapPosition || c == MovementChoice
}

// Choice is the extra parameter an interactive card is executed with.
type Choice struct {
	TargetUsername string `json:"targetUsername,omitempty"`
	MovementChoice Card   `json:"movementChoice,omitempty"`
}

func (c Choice) Empty() bool {
	return c.TargetUsername == "" && c.MovementChoice == ""
}

// Satisfies reports whether the choice carries what card needs.
func (c Choice) Satisfies(card Card) bool {
	switch card {
	case SwapPosition:
		return c.TargetUsername != ""
	case MovementChoice:
		return c.MovementChoice != ""
	}
	return true
}
