package game

import (
	"errors"

	"example.com/robo-sync/internal/model"
)

var ErrBayTaken = errors.New("docking bay already taken")

// Docking is the client-side pre-game gate: every player picks a distinct
// docking bay and marks ready.
type Docking struct {
	Bays  map[string]int
	Ready map[string]bool
}

func (d Docking) clone() Docking {
	out := Docking{Bays: make(map[string]int, len(d.Bays)), Ready: make(map[string]bool, len(d.Ready))}
	for k, v := range d.Bays {
		out.Bays[k] = v
	}
	for k, v := range d.Ready {
		out.Ready[k] = v
	}
	return out
}

func (d Docking) Choose(username string, bay int) (Docking, error) {
	for u, b := range d.Bays {
		if b == bay && u != username {
			return d, ErrBayTaken
		}
	}
	out := d.clone()
	out.Bays[username] = bay
	return out, nil
}

func (d Docking) SetReady(username string, ready bool) Docking {
	out := d.clone()
	out.Ready[username] = ready
	return out
}

// Complete reports whether every player has a bay and is ready.
func (d Docking) Complete(players []model.Player) bool {
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		if _, ok := d.Bays[p.Username]; !ok || !d.Ready[p.Username] {
			return false
		}
	}
	return true
}

// ApplyDocking records a docking choice and moves the game to programming
// once the gate is complete.
func ApplyDocking(v View, username string, bay int, ready bool) (View, error) {
	if v.Phase != model.PhaseDocking {
		return v, nil
	}
	d, err := v.Docking.Choose(username, bay)
	if err != nil {
		return v, err
	}
	out := v.Clone()
	out.Docking = d.SetReady(username, ready)
	if out.Docking.Complete(out.Players) {
		out.Phase = model.PhaseProgramming
	}
	return out, nil
}
