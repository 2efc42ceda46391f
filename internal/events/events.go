// Package events is the closed set of server-pushed events. Payloads are
// decoded once, at the transport boundary, into one of the concrete types
// below; consumers switch on the type.
package events

import "example.com/robo-sync/internal/model"

type Kind string

const (
	KindUserJoinedLobby        Kind = "UserJoinedLobby"
	KindUserLeftLobby          Kind = "UserLeftLobby"
	KindPlayerReady            Kind = "PlayerReady"
	KindGameStarted            Kind = "GameStarted"
	KindLobbyUpdated           Kind = "LobbyUpdated"
	KindGameStateUpdated       Kind = "GameStateUpdated"
	KindPlayerCardsDealt       Kind = "PlayerCardsDealt"
	KindPlayerLockedInRegister Kind = "PlayerLockedInRegister"
	KindProgrammingTimeout     Kind = "ProgrammingTimeout"
	KindActivationPhaseStarted Kind = "ActivationPhaseStarted"
	KindRegisterRevealed       Kind = "RegisterRevealed"
	KindNextPlayerInTurn       Kind = "NextPlayerInTurn"
	KindRobotMoved             Kind = "RobotMoved"
	KindPlayerExecuted         Kind = "PlayerExecuted"
	KindCheckpointReached      Kind = "CheckpointReached"
	KindGameCompleted          Kind = "GameCompleted"
	KindGamePauseRequested     Kind = "GamePauseRequested"
	KindGamePauseResponse      Kind = "GamePauseResponse"
	KindGamePauseResult        Kind = "GamePauseResult"
)

// Event is implemented only by the types in this package.
type Event interface {
	Kind() Kind
	// Scope is the lobby/game id the event belongs to.
	Scope() string
	sealed()
}

type UserJoinedLobby struct {
	GameID   string `json:"gameId"`
	Username string `json:"username"`
}

type UserLeftLobby struct {
	GameID   string `json:"gameId"`
	Username string `json:"username"`
}

type PlayerReady struct {
	GameID    string `json:"gameId"`
	Username  string `json:"username"`
	IsReady   bool   `json:"isReady"`
	Timestamp string `json:"timestamp"`
}

type GameStarted struct {
	GameID string `json:"gameId"`
}

type LobbyUpdated struct {
	GameID          string   `json:"gameId"`
	LobbyName       string   `json:"lobbyname"`
	HostUsername    string   `json:"hostUsername"`
	JoinedUsernames []string `json:"joinedUsernames"`
	MaxPlayers      int      `json:"maxPlayers"`
	Timestamp       string   `json:"timestamp"`
}

type GameStateUpdated struct {
	model.Snapshot
}

type PlayerCardsDealt struct {
	GameID           string       `json:"gameId"`
	Username         string       `json:"username"`
	DealtCards       []model.Card `json:"dealtCards"`
	IsDeckReshuffled bool         `json:"isDeckReshuffled"`
	PickPileCount    int          `json:"programmingPickPilesCount"`
}

type PlayerLockedInRegister struct {
	GameID   string `json:"gameId"`
	Username string `json:"username"`
	// Only filled when the event is addressed to the locking player.
	LockedCards []model.Card `json:"lockedCards,omitempty"`
}

type ProgrammingTimeout struct {
	GameID   string `json:"gameId"`
	Username string `json:"username"`
	// Cards for the still empty registers, in slot order.
	AssignedCards []model.Card `json:"assignedCards"`
}

type ActivationPhaseStarted struct {
	GameID string `json:"gameId"`
}

type RegisterRevealed struct {
	GameID         string                `json:"gameId"`
	RegisterNumber int                   `json:"registerNumber"`
	RevealedCards  map[string]model.Card `json:"revealedCards"`
}

type NextPlayerInTurn struct {
	GameID string `json:"gameId"`
	// nil when every player has executed for the current register.
	NextPlayerUsername *string `json:"nextPlayerUsername"`
}

type RobotMoved struct {
	GameID    string          `json:"gameId"`
	Username  string          `json:"username"`
	PositionX int             `json:"positionX"`
	PositionY int             `json:"positionY"`
	Direction model.Direction `json:"direction"`
	// nil when the robot was pushed by something else.
	ExecutedCard *model.Card `json:"executedCard"`
}

type PlayerExecuted struct {
	GameID   string `json:"gameId"`
	Username string `json:"username"`
}

type CheckpointReached struct {
	GameID           string `json:"gameId"`
	Username         string `json:"username"`
	CheckpointNumber int    `json:"checkpointNumber"`
}

type GameCompleted struct {
	GameID     string        `json:"gameId"`
	Winner     string        `json:"winner"`
	OldRatings model.Ratings `json:"oldRatings"`
	NewRatings model.Ratings `json:"newRatings"`
}

type GamePauseRequested struct {
	GameID            string `json:"gameId"`
	RequesterUsername string `json:"requesterUsername"`
}

type GamePauseResponse struct {
	GameID   string `json:"gameId"`
	Username string `json:"username"`
	Approved bool   `json:"approved"`
}

type GamePauseResult struct {
	GameID          string          `json:"gameId"`
	Result          bool            `json:"result"`
	RequestedBy     string          `json:"requestedBy"`
	PlayerResponses map[string]bool `json:"playerResponses"`
}

func (UserJoinedLobby) Kind() Kind        { return KindUserJoinedLobby }
func (UserLeftLobby) Kind() Kind          { return KindUserLeftLobby }
func (PlayerReady) Kind() Kind            { return KindPlayerReady }
func (GameStarted) Kind() Kind            { return KindGameStarted }
func (LobbyUpdated) Kind() Kind           { return KindLobbyUpdated }
func (GameStateUpdated) Kind() Kind       { return KindGameStateUpdated }
func (PlayerCardsDealt) Kind() Kind       { return KindPlayerCardsDealt }
func (PlayerLockedInRegister) Kind() Kind { return KindPlayerLockedInRegister }
func (ProgrammingTimeout) Kind() Kind     { return KindProgrammingTimeout }
func (ActivationPhaseStarted) Kind() Kind { return KindActivationPhaseStarted }
func (RegisterRevealed) Kind() Kind       { return KindRegisterRevealed }
func (NextPlayerInTurn) Kind() Kind       { return KindNextPlayerInTurn }
func (RobotMoved) Kind() Kind             { return KindRobotMoved }
func (PlayerExecuted) Kind() Kind         { return KindPlayerExecuted }
func (CheckpointReached) Kind() Kind      { return KindCheckpointReached }
func (GameCompleted) Kind() Kind          { return KindGameCompleted }
func (GamePauseRequested) Kind() Kind     { return KindGamePauseRequested }
func (GamePauseResponse) Kind() Kind      { return KindGamePauseResponse }
func (GamePauseResult) Kind() Kind        { return KindGamePauseResult }

func (e UserJoinedLobby) Scope() string        { return e.GameID }
func (e UserLeftLobby) Scope() string          { return e.GameID }
func (e PlayerReady) Scope() string            { return e.GameID }
func (e GameStarted) Scope() string            { return e.GameID }
func (e LobbyUpdated) Scope() string           { return e.GameID }
func (e GameStateUpdated) Scope() string       { return e.GameID }
func (e PlayerCardsDealt) Scope() string       { return e.GameID }
func (e PlayerLockedInRegister) Scope() string { return e.GameID }
func (e ProgrammingTimeout) Scope() string     { return e.GameID }
func (e ActivationPhaseStarted) Scope() string { return e.GameID }
func (e RegisterRevealed) Scope() string       { return e.GameID }
func (e NextPlayerInTurn) Scope() string       { return e.GameID }
func (e RobotMoved) Scope() string             { return e.GameID }
func (e PlayerExecuted) Scope() string         { return e.GameID }
func (e CheckpointReached) Scope() string      { return e.GameID }
func (e GameCompleted) Scope() string          { return e.GameID }
func (e GamePauseRequested) Scope() string     { return e.GameID }
func (e GamePauseResponse) Scope() string      { return e.GameID }
func (e GamePauseResult) Scope() string        { return e.GameID }

func (UserJoinedLobby) sealed()        {}
func (UserLeftLobby) sealed()          {}
func (PlayerReady) sealed()            {}
func (GameStarted) sealed()            {}
func (LobbyUpdated) sealed()           {}
func (GameStateUpdated) sealed()       {}
func (PlayerCardsDealt) sealed()       {}
func (PlayerLockedInRegister) sealed() {}
func (ProgrammingTimeout) sealed()     {}
func (ActivationPhaseStarted) sealed() {}
func (RegisterRevealed) sealed()       {}
func (NextPlayerInTurn) sealed()       {}
func (RobotMoved) sealed()             {}
func (PlayerExecuted) sealed()         {}
func (CheckpointReached) sealed()      {}
func (GameCompleted) sealed()          {}
func (GamePauseRequested) sealed()     {}
func (GamePauseResponse) sealed()      {}
func (GamePauseResult) sealed()        {}
