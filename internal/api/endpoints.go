package api

import (
	"context"
	"net/url"
	"strconv"

	"example.com/robo-sync/internal/model"
)

// --- lobbies ---

func (c *Client) ListLobbies(ctx context.Context) ([]Lobby, error) {
	var res LobbyList
	if err := c.get(ctx, "/game-lobbies", nil, &res); err != nil {
		return nil, err
	}
	return res.PublicLobbies, nil
}

func (c *Client) CreateLobby(ctx context.Context, req CreateLobbyRequest) (string, error) {
	var res CreateLobbyResponse
	if err := c.post(ctx, "/game-lobbies", req, &res); err != nil {
		return "", err
	}
	return res.GameRoomID, nil
}

func (c *Client) LobbyInfo(ctx context.Context, gameID string) (LobbyInfo, error) {
	var res LobbyInfo
	err := c.get(ctx, "/game-lobbies/"+seg(gameID), nil, &res)
	return res, err
}

func (c *Client) JoinLobby(ctx context.Context, gameID, username string) (JoinLobbyResponse, error) {
	var res JoinLobbyResponse
	err := c.post(ctx, "/game-lobbies/"+seg(gameID)+"/join", usernameBody{Username: username}, &res)
	return res, err
}

func (c *Client) LeaveLobby(ctx context.Context, gameID, username string) error {
	return c.post(ctx, "/game-lobbies/"+seg(gameID)+"/leave", usernameBody{Username: username}, nil)
}

func (c *Client) StartGame(ctx context.Context, gameID, username, boardName string) error {
	return c.post(ctx, "/game-lobbies/"+seg(gameID)+"/start", startGameBody{Username: username, GameBoardName: boardName}, nil)
}

// --- game ---

// CurrentState fetches the authoritative snapshot as seen by username.
func (c *Client) CurrentState(ctx context.Context, gameID, username string) (model.Snapshot, error) {
	var snap model.Snapshot
	err := c.get(ctx, "/games/"+seg(gameID)+"/current-state", url.Values{"username": {username}}, &snap)
	return snap, err
}

func (c *Client) DealDecksToAll(ctx context.Context, gameID, username string) error {
	return c.post(ctx, "/games/"+seg(gameID)+"/deal-decks-to-all", usernameBody{Username: username}, nil)
}

func (c *Client) SubmitProgram(ctx context.Context, gameID, username string, cards []model.Card) error {
	return c.post(ctx, "/games/"+seg(gameID)+"/registers-programmed", programBody{Username: username, LockedCardsInOrder: cards}, nil)
}

func (c *Client) StartActivationPhase(ctx context.Context, gameID, username string) error {
	return c.post(ctx, "/games/"+seg(gameID)+"/start-activation-phase", usernameBody{Username: username}, nil)
}

func (c *Client) RevealNextRegister(ctx context.Context, gameID, username string) error {
	return c.post(ctx, "/games/"+seg(gameID)+"/reveal-next-register", usernameBody{Username: username}, nil)
}

func (c *Client) ExecuteCard(ctx context.Context, gameID, username string, card model.Card, choice model.Choice) error {
	body := executeCardBody{
		CardName:       card,
		TargetUsername: choice.TargetUsername,
		MovementChoice: choice.MovementChoice,
	}
	return c.post(ctx, "/games/"+seg(gameID)+"/players/"+seg(username)+"/execute-card", body, nil)
}

func (c *Client) ActivateNextBoardElement(ctx context.Context, gameID string) error {
	return c.post(ctx, "/games/"+seg(gameID)+"/activate-next-board-element", gameIDBody{GameID: gameID}, nil)
}

func (c *Client) StartNextRound(ctx context.Context, gameID string) error {
	return c.post(ctx, "/games/"+seg(gameID)+"/start-next-round", gameIDBody{GameID: gameID}, nil)
}

func (c *Client) EndGame(ctx context.Context, gameID, winner string) (EndGameResult, error) {
	var res EndGameResult
	err := c.post(ctx, "/games/"+seg(gameID)+"/end", endGameBody{WinnerUsername: winner}, &res)
	return res, err
}

// --- pause ---

func (c *Client) RequestPause(ctx context.Context, gameID, username string) error {
	return c.post(ctx, "/games/"+seg(gameID)+"/pause/request", usernameBody{Username: username}, nil)
}

func (c *Client) RespondPause(ctx context.Context, gameID, username string, approved bool) error {
	return c.post(ctx, "/games/"+seg(gameID)+"/pause/respond", pauseResponseBody{Username: username, Approved: approved}, nil)
}

func (c *Client) PausedGames(ctx context.Context, username string) ([]GameSummary, error) {
	var res []GameSummary
	err := c.get(ctx, "/games/paused", url.Values{"username": {username}}, &res)
	return res, err
}

// --- history ---

func (c *Client) UserGames(ctx context.Context, username string, f GamesFilter) ([]GameSummary, error) {
	q := url.Values{}
	if f.IsPrivate != nil {
		q.Set("isPrivate", strconv.FormatBool(*f.IsPrivate))
	}
	if f.IsFinished != nil {
		q.Set("isFinished", strconv.FormatBool(*f.IsFinished))
	}
	if f.From != "" {
		q.Set("from", f.From)
	}
	if f.To != "" {
		q.Set("to", f.To)
	}
	if f.SearchTag != "" {
		q.Set("searchTag", f.SearchTag)
	}

	var res []GameSummary
	err := c.get(ctx, "/users/"+seg(username)+"/games", q, &res)
	return res, err
}
