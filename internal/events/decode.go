package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrNoPayload    = errors.New("event has no payload")
)

// Kinds lists every event the client understands.
func Kinds() []Kind {
	return []Kind{
		KindUserJoinedLobby, KindUserLeftLobby, KindPlayerReady, KindGameStarted, KindLobbyUpdated,
		KindGameStateUpdated, KindPlayerCardsDealt, KindPlayerLockedInRegister, KindProgrammingTimeout,
		KindActivationPhaseStarted, KindRegisterRevealed, KindNextPlayerInTurn, KindRobotMoved,
		KindPlayerExecuted, KindCheckpointReached, KindGameCompleted,
		KindGamePauseRequested, KindGamePauseResponse, KindGamePauseResult,
	}
}

// Decode turns a hub invocation (target + arguments) into a typed event.
// The payload is the first argument.
func Decode(target string, args []json.RawMessage) (Event, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: %w", target, ErrNoPayload)
	}
	raw := args[0]

	switch Kind(target) {
	case KindUserJoinedLobby:
		return decodeAs[UserJoinedLobby](target, raw)
	case KindUserLeftLobby:
		return decodeAs[UserLeftLobby](target, raw)
	case KindPlayerReady:
		return decodeAs[PlayerReady](target, raw)
	case KindGameStarted:
		return decodeAs[GameStarted](target, raw)
	case KindLobbyUpdated:
		return decodeAs[LobbyUpdated](target, raw)
	case KindGameStateUpdated:
		return decodeAs[GameStateUpdated](target, raw)
	case KindPlayerCardsDealt:
		return decodeAs[PlayerCardsDealt](target, raw)
	case KindPlayerLockedInRegister:
		return decodeAs[PlayerLockedInRegister](target, raw)
	case KindProgrammingTimeout:
		return decodeAs[ProgrammingTimeout](target, raw)
	case KindActivationPhaseStarted:
		return decodeAs[ActivationPhaseStarted](target, raw)
	case KindRegisterRevealed:
		return decodeAs[RegisterRevealed](target, raw)
	case KindNextPlayerInTurn:
		return decodeAs[NextPlayerInTurn](target, raw)
	case KindRobotMoved:
		return decodeAs[RobotMoved](target, raw)
	case KindPlayerExecuted:
		return decodeAs[PlayerExecuted](target, raw)
	case KindCheckpointReached:
		return decodeAs[CheckpointReached](target, raw)
	case KindGameCompleted:
		return decodeAs[GameCompleted](target, raw)
	case KindGamePauseRequested:
		return decodeAs[GamePauseRequested](target, raw)
	case KindGamePauseResponse:
		return decodeAs[GamePauseResponse](target, raw)
	case KindGamePauseResult:
		return decodeAs[GamePauseResult](target, raw)
	}
	return nil, fmt.Errorf("%q: %w", target, ErrUnknownEvent)
}

func decodeAs[E Event](target string, raw json.RawMessage) (Event, error) {
	var e E
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", target, err)
	}
	return e, nil
}
