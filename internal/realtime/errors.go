package realtime

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized     = errors.New("connection not initialized")
	ErrNotConnected       = errors.New("connection is not established")
	ErrConnectionLost     = errors.New("connection lost")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	ErrNoGroupMethod      = errors.New("no group method configured")
)

const (
	OpStart      = "start"
	OpInvoke     = "invoke"
	OpReconnect  = "reconnect"
	OpConnection = "connection"
)

// Error is what the manager hands to error listeners and returns to callers.
type Error struct {
	Op     string
	Method string // set for OpInvoke
	Err    error
}

func (e *Error) Error() string {
	switch e.Op {
	case OpStart:
		return fmt.Sprintf("failed to start connection: %v", e.Err)
	case OpInvoke:
		return fmt.Sprintf("failed to invoke %s: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ServerError is a failed completion reported by the hub.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return "hub: " + e.Message }
