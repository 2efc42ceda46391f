package api

import "example.com/robo-sync/internal/model"

type LobbyPlayer struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type Lobby struct {
	GameID       string        `json:"gameId"`
	GameRoomName string        `json:"gameRoomName"`
	IsPrivate    bool          `json:"isPrivate"`
	MaxPlayers   int           `json:"maxPlayers"`
	JoinedUsers  []LobbyPlayer `json:"joinedUsers"`
	GameStarted  bool          `json:"gameStarted"`
	CreatedAt    string        `json:"createdAt"`
	HostUsername string        `json:"hostUsername"`
}

type LobbyList struct {
	PublicLobbies []Lobby `json:"publicLobbies"`
}

type CreateLobbyRequest struct {
	HostUsername string `json:"hostUsername"`
	GameRoomName string `json:"gameRoomName"`
	IsPrivate    bool   `json:"isPrivate"`
}

type CreateLobbyResponse struct {
	GameRoomID string `json:"gameRoomId"`
}

type LobbyInfo struct {
	GameID          string   `json:"gameId"`
	LobbyName       string   `json:"lobbyname"`
	JoinedUsernames []string `json:"joinedUsernames"`
	HostUsername    string   `json:"hostUsername"`
}

type JoinLobbyResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

type usernameBody struct {
	Username string `json:"username"`
}

type gameIDBody struct {
	GameID string `json:"gameId"`
}

type startGameBody struct {
	Username      string `json:"username"`
	GameBoardName string `json:"gameBoardName"`
}

type programBody struct {
	Username           string       `json:"username"`
	LockedCardsInOrder []model.Card `json:"lockedCardsInOrder"`
}

type executeCardBody struct {
	CardName       model.Card `json:"cardName"`
	TargetUsername string     `json:"targetUsername,omitempty"`
	MovementChoice model.Card `json:"movementChoice,omitempty"`
}

type pauseResponseBody struct {
	Username string `json:"username"`
	Approved bool   `json:"approved"`
}

type endGameBody struct {
	WinnerUsername string `json:"winnerUsername"`
}

// EndGameResult carries rating changes when the backend reports them.
type EndGameResult struct {
	OldRatings model.Ratings `json:"oldRatings,omitempty"`
	NewRatings model.Ratings `json:"newRatings,omitempty"`
}

type GameSummary struct {
	GameID       string   `json:"gameId"`
	GameRoomName string   `json:"gameRoomName"`
	HostUsername string   `json:"hostUsername"`
	IsPrivate    bool     `json:"isPrivate"`
	IsFinished   bool     `json:"isFinished"`
	Winner       string   `json:"winner,omitempty"`
	Players      []string `json:"playerUsernames,omitempty"`
	CreatedAt    string   `json:"createdAt,omitempty"`
}

// GamesFilter narrows UserGames; zero values are not sent.
type GamesFilter struct {
	IsPrivate  *bool
	IsFinished *bool
	From       string
	To         string
	SearchTag  string
}
