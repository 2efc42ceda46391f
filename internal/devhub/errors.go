package devhub

import (
	"encoding/json"
	"errors"
	"net/http"

	"example.com/robo-sync/internal/events"
)

// ErrorCode is the machine-readable part of an error body.
type ErrorCode string

const (
	CodeNotFound     ErrorCode = "not_found"
	CodeBadInput     ErrorCode = "bad_input"
	CodeUnknownEvent ErrorCode = "unknown_event"
	CodeUnauthorized ErrorCode = "unauthorized"
)

type errorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, msg string) {
	writeJSON(w, status, errorBody{Code: code, Message: msg})
}

// writeDecodeError reports an injected payload clients could not decode.
func writeDecodeError(w http.ResponseWriter, err error) {
	code := CodeBadInput
	if errors.Is(err, events.ErrUnknownEvent) {
		code = CodeUnknownEvent
	}
	writeError(w, http.StatusBadRequest, code, err.Error())
}
