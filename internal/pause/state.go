// Package pause runs the pause vote: one player asks, everyone else answers,
// and the server broadcasts the outcome.
package pause

import "example.com/robo-sync/internal/events"

type Status int

const (
	Idle Status = iota
	RequestPending
	Resolved
)

func (s Status) String() string {
	switch s {
	case RequestPending:
		return "RequestPending"
	case Resolved:
		return "Resolved"
	}
	return "Idle"
}

// Result is the outcome the server broadcast.
type Result struct {
	Approved    bool
	RequestedBy string
	Responses   map[string]bool
}

// State is one client's view of the current vote.
type State struct {
	Status    Status
	Requester string
	Responses map[string]bool
	// Expected is how many players besides the requester must answer.
	Expected  int
	Responded bool
	Result    *Result
}

func (s State) clone() State {
	out := s
	out.Responses = copyVotes(s.Responses)
	if s.Result != nil {
		r := *s.Result
		r.Responses = copyVotes(s.Result.Responses)
		out.Result = &r
	}
	return out
}

func (s State) IsRequester(username string) bool {
	return s.Status != Idle && s.Requester == username
}

func copyVotes(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Apply folds a pause event into s for the player self in game gameID.
// resolved is true only for the event that ends the vote.
func Apply(s State, gameID, self string, expected int, e events.Event) (out State, resolved bool) {
	if e.Scope() != gameID {
		return s, false
	}
	switch ev := e.(type) {
	case events.GamePauseRequested:
		// our own request echoed back; the local session already exists
		if ev.RequesterUsername == self {
			return s, false
		}
		return State{
			Status:    RequestPending,
			Requester: ev.RequesterUsername,
			Responses: map[string]bool{},
			Expected:  expected,
		}, false

	case events.GamePauseResponse:
		if s.Status != RequestPending {
			return s, false
		}
		out = s.clone()
		out.Responses[ev.Username] = ev.Approved
		return out, false

	case events.GamePauseResult:
		if s.Status != RequestPending {
			return s, false
		}
		out = s.clone()
		out.Status = Resolved
		out.Result = &Result{
			Approved:    ev.Result,
			RequestedBy: ev.RequestedBy,
			Responses:   copyVotes(ev.PlayerResponses),
		}
		out.Responses = copyVotes(ev.PlayerResponses)
		return out, true
	}
	return s, false
}
