// Package lobby tracks who is waiting in a game lobby and whether the game
// can be started.
package lobby

import (
	"example.com/robo-sync/internal/api"
	"example.com/robo-sync/internal/events"
)

// MinPlayers is the smallest roster a game can start with.
const MinPlayers = 2

type Player struct {
	Username string
	Ready    bool
}

type State struct {
	GameID     string
	Name       string
	Host       string
	MaxPlayers int
	Players    []Player
	Started    bool
}

// FromInfo seeds the roster from the API. Everyone starts ready, the same
// as a live join.
func FromInfo(info api.LobbyInfo) State {
	s := State{GameID: info.GameID, Name: info.LobbyName, Host: info.HostUsername}
	for _, u := range info.JoinedUsernames {
		s = s.withJoined(u)
	}
	return s
}

// Reseed replaces the roster with the one in info. Ready flags of players
// already known, and what info does not carry, are kept.
func (s State) Reseed(info api.LobbyInfo) State {
	out := FromInfo(info)
	out.GameID = s.GameID
	out.MaxPlayers = s.MaxPlayers
	out.Started = s.Started
	for i, p := range out.Players {
		if known, ok := s.Player(p.Username); ok {
			out.Players[i].Ready = known.Ready
		}
	}
	return out
}

// Apply folds one lobby event into the state. Events for other lobbies and
// non-lobby events leave it unchanged.
func Apply(s State, e events.Event) State {
	if e.Scope() != s.GameID {
		return s
	}

	switch ev := e.(type) {
	case events.UserJoinedLobby:
		return s.withJoined(ev.Username)

	case events.UserLeftLobby:
		out := s.clone()
		out.Players = out.Players[:0]
		for _, p := range s.Players {
			if p.Username != ev.Username {
				out.Players = append(out.Players, p)
			}
		}
		return out

	case events.PlayerReady:
		out := s.clone()
		for i := range out.Players {
			if out.Players[i].Username == ev.Username {
				out.Players[i].Ready = ev.IsReady
			}
		}
		return out

	case events.LobbyUpdated:
		ready := make(map[string]bool, len(s.Players))
		for _, p := range s.Players {
			ready[p.Username] = p.Ready
		}
		out := s.clone()
		out.Name = ev.LobbyName
		out.Host = ev.HostUsername
		out.MaxPlayers = ev.MaxPlayers
		out.Players = make([]Player, 0, len(ev.JoinedUsernames))
		seen := make(map[string]bool, len(ev.JoinedUsernames))
		for _, u := range ev.JoinedUsernames {
			if seen[u] {
				continue
			}
			seen[u] = true
			r, known := ready[u]
			if !known {
				r = true
			}
			out.Players = append(out.Players, Player{Username: u, Ready: r})
		}
		return out

	case events.GameStarted:
		out := s.clone()
		out.Started = true
		return out
	}
	return s
}

func (s State) withJoined(username string) State {
	if _, ok := s.Player(username); ok || username == "" {
		return s
	}
	out := s.clone()
	out.Players = append(out.Players, Player{Username: username, Ready: true})
	return out
}

func (s State) clone() State {
	out := s
	out.Players = append([]Player(nil), s.Players...)
	return out
}

func (s State) Player(username string) (Player, bool) {
	for _, p := range s.Players {
		if p.Username == username {
			return p, true
		}
	}
	return Player{}, false
}

func (s State) AllReady() bool {
	for _, p := range s.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// CanStart reports whether username may start the game now.
func (s State) CanStart(username string) bool {
	return !s.Started &&
		username != "" &&
		username == s.Host &&
		len(s.Players) >= MinPlayers &&
		s.AllReady()
}
