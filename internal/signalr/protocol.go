// Package signalr implements the JSON hub protocol framing used on the push
// channel: record separated JSON frames, the handshake, and the handful of
// message types the client needs.
package signalr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// RecordSeparator terminates every frame.
const RecordSeparator byte = 0x1e

const (
	ProtocolName    = "json"
	ProtocolVersion = 1
)

type MessageType int

const (
	TypeInvocation       MessageType = 1
	TypeStreamItem       MessageType = 2
	TypeCompletion       MessageType = 3
	TypeStreamInvocation MessageType = 4
	TypeCancelInvocation MessageType = 5
	TypePing             MessageType = 6
	TypeClose            MessageType = 7
)

var ErrEmptyFrame = errors.New("signalr: empty frame")

type HandshakeRequest struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

type HandshakeResponse struct {
	Error string `json:"error,omitempty"`
}

// Message is the decoded union of every frame we can receive.
type Message struct {
	Type           MessageType       `json:"type"`
	InvocationID   string            `json:"invocationId,omitempty"`
	Target         string            `json:"target,omitempty"`
	Arguments      []json.RawMessage `json:"arguments,omitempty"`
	Result         json.RawMessage   `json:"result,omitempty"`
	Error          string            `json:"error,omitempty"`
	AllowReconnect bool              `json:"allowReconnect,omitempty"`
}

// invocation always serializes its arguments array, even when empty.
type invocation struct {
	Type         MessageType       `json:"type"`
	InvocationID string            `json:"invocationId,omitempty"`
	Target       string            `json:"target"`
	Arguments    []json.RawMessage `json:"arguments"`
}

type completion struct {
	Type         MessageType     `json:"type"`
	InvocationID string          `json:"invocationId"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
}

type bare struct {
	Type  MessageType `json:"type"`
	Error string      `json:"error,omitempty"`
}

// Frame marshals v and appends the record separator.
func Frame(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, RecordSeparator), nil
}

// Split cuts a websocket payload into frames. Trailing bytes without a
// separator are dropped.
func Split(data []byte) [][]byte {
	var frames [][]byte
	for len(data) > 0 {
		i := bytes.IndexByte(data, RecordSeparator)
		if i < 0 {
			break
		}
		if i > 0 {
			frames = append(frames, data[:i])
		}
		data = data[i+1:]
	}
	return frames
}

func Parse(frame []byte) (Message, error) {
	if len(bytes.TrimSpace(frame)) == 0 {
		return Message{}, ErrEmptyFrame
	}
	var m Message
	if err := json.Unmarshal(frame, &m); err != nil {
		return Message{}, fmt.Errorf("signalr: decode frame: %w", err)
	}
	return m, nil
}

func HandshakeFrame() []byte {
	b, _ := Frame(HandshakeRequest{Protocol: ProtocolName, Version: ProtocolVersion})
	return b
}

// ParseHandshakeResponse reads the first frame the server sends back.
// Anything after the handshake frame is returned as rest.
func ParseHandshakeResponse(data []byte) (rest []byte, err error) {
	i := bytes.IndexByte(data, RecordSeparator)
	if i < 0 {
		return nil, errors.New("signalr: incomplete handshake response")
	}
	var resp HandshakeResponse
	if err := json.Unmarshal(data[:i], &resp); err != nil {
		return nil, fmt.Errorf("signalr: decode handshake: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("signalr: handshake rejected: %s", resp.Error)
	}
	return data[i+1:], nil
}

// ParseHandshakeRequest is the server side of the handshake.
func ParseHandshakeRequest(data []byte) (HandshakeRequest, []byte, error) {
	i := bytes.IndexByte(data, RecordSeparator)
	if i < 0 {
		return HandshakeRequest{}, nil, errors.New("signalr: incomplete handshake request")
	}
	var req HandshakeRequest
	if err := json.Unmarshal(data[:i], &req); err != nil {
		return HandshakeRequest{}, nil, fmt.Errorf("signalr: decode handshake: %w", err)
	}
	if req.Protocol != ProtocolName {
		return req, nil, fmt.Errorf("signalr: unsupported protocol %q", req.Protocol)
	}
	return req, data[i+1:], nil
}

// InvocationFrame encodes a call. An empty id means no completion is expected.
func InvocationFrame(id, target string, args ...any) ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("signalr: encode argument for %s: %w", target, err)
		}
		raw = append(raw, b)
	}
	return Frame(invocation{Type: TypeInvocation, InvocationID: id, Target: target, Arguments: raw})
}

func CompletionFrame(id string, result any, errMsg string) ([]byte, error) {
	c := completion{Type: TypeCompletion, InvocationID: id, Error: errMsg}
	if errMsg == "" && result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		c.Result = b
	}
	return Frame(c)
}

func PingFrame() []byte {
	b, _ := Frame(bare{Type: TypePing})
	return b
}

func CloseFrame(errMsg string) []byte {
	b, _ := Frame(bare{Type: TypeClose, Error: errMsg})
	return b
}
