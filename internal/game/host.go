package game

import (
	"context"
	"errors"
	"fmt"

	"example.com/robo-sync/internal/api"
	"example.com/robo-sync/internal/model"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotHost          = errors.New("only the host can do this")
	ErrNotAllLockedIn   = errors.New("not every player has locked in")
	ErrRevealBlocked    = errors.New("next register cannot be revealed yet")
	ErrRoundNotComplete = errors.New("round is not complete")
	ErrGameOver         = errors.New("game is over")
)

// boardElementActivations is how many ActivateNextBoardElement calls make
// up one board activation: blue belts, green belts, gears. It is fixed by
// the server protocol and is not a setting.
const boardElementActivations = 3

// HostAPI is the slice of the REST client the host drives the round with.
type HostAPI interface {
	DealDecksToAll(ctx context.Context, gameID, username string) error
	StartActivationPhase(ctx context.Context, gameID, username string) error
	RevealNextRegister(ctx context.Context, gameID, username string) error
	ActivateNextBoardElement(ctx context.Context, gameID string) error
	StartNextRound(ctx context.Context, gameID string) error
	EndGame(ctx context.Context, gameID, winner string) (api.EndGameResult, error)
}

// Host issues the round-driving calls only the game host may make. Each
// action checks the view it is handed first.
type Host struct {
	api HostAPI
	log *logrus.Entry
}

func NewHost(rest HostAPI, log *logrus.Entry) *Host {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Host{api: rest, log: log.WithField("component", "host")}
}

func (h *Host) Deal(ctx context.Context, v View) error {
	if err := checkHost(v); err != nil {
		return err
	}
	return h.api.DealDecksToAll(ctx, v.GameID, v.Username)
}

func (h *Host) StartActivation(ctx context.Context, v View) error {
	if err := checkHost(v); err != nil {
		return err
	}
	if !v.AllLockedIn() {
		return ErrNotAllLockedIn
	}
	return h.api.StartActivationPhase(ctx, v.GameID, v.Username)
}

func (h *Host) RevealNext(ctx context.Context, v View) error {
	if err := checkHost(v); err != nil {
		return err
	}
	if !v.Cursor.CanReveal() {
		return ErrRevealBlocked
	}
	return h.api.RevealNextRegister(ctx, v.GameID, v.Username)
}

func (h *Host) StartNextRound(ctx context.Context, v View) error {
	if err := checkHost(v); err != nil {
		return err
	}
	if !v.RoundComplete {
		return ErrRoundNotComplete
	}
	return h.api.StartNextRound(ctx, v.GameID)
}

func (h *Host) EndGame(ctx context.Context, v View, winner string) (api.EndGameResult, error) {
	if !v.IsHost() {
		return api.EndGameResult{}, ErrNotHost
	}
	res, err := h.api.EndGame(ctx, v.GameID, winner)
	if err != nil {
		return res, fmt.Errorf("end game %s: %w", v.GameID, err)
	}
	h.log.WithFields(logrus.Fields{"gameId": v.GameID, "winner": winner}).Info("game ended")
	return res, nil
}

// advanceBoardElements runs every board element for the register once.
// The calls are strictly sequential; the first failure stops the sequence.
func (h *Host) advanceBoardElements(ctx context.Context, gameID string, register int) error {
	for i := 0; i < boardElementActivations; i++ {
		if err := h.api.ActivateNextBoardElement(ctx, gameID); err != nil {
			return fmt.Errorf("board element %d/%d for register %d: %w", i+1, boardElementActivations, register, err)
		}
	}
	h.log.WithFields(logrus.Fields{"gameId": gameID, "register": register}).Debug("board elements activated")
	return nil
}

func checkHost(v View) error {
	if !v.IsHost() {
		return ErrNotHost
	}
	if v.Phase == model.PhaseGameOver {
		return ErrGameOver
	}
	return nil
}
