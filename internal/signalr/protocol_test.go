package signalr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{name: "single", in: "{\"type\":6}\x1e", want: []string{`{"type":6}`}},
		{name: "two", in: "{\"type\":6}\x1e{\"type\":7}\x1e", want: []string{`{"type":6}`, `{"type":7}`}},
		{name: "empty_records_skipped", in: "\x1e\x1e{}\x1e", want: []string{`{}`}},
		{name: "partial_tail_dropped", in: "{}\x1e{\"ty", want: []string{`{}`}},
		{name: "nothing", in: "", want: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got []string
			for _, f := range Split([]byte(tc.in)) {
				got = append(got, string(f))
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHandshake(t *testing.T) {
	req, rest, err := ParseHandshakeRequest(HandshakeFrame())
	require.NoError(t, err)
	assert.Equal(t, "json", req.Protocol)
	assert.Equal(t, 1, req.Version)
	assert.Empty(t, rest)

	rest, err = ParseHandshakeResponse([]byte("{}\x1e{\"type\":6}\x1e"))
	require.NoError(t, err)
	assert.Equal(t, "{\"type\":6}\x1e", string(rest))

	_, err = ParseHandshakeResponse([]byte("{\"error\":\"nope\"}\x1e"))
	assert.ErrorContains(t, err, "nope")

	_, err = ParseHandshakeResponse([]byte("{}"))
	assert.Error(t, err)

	_, _, err = ParseHandshakeRequest([]byte("{\"protocol\":\"messagepack\",\"version\":1}\x1e"))
	assert.Error(t, err)
}

func TestInvocationFrame_AlwaysHasArguments(t *testing.T) {
	b, err := InvocationFrame("", "LeaveGame")
	require.NoError(t, err)
	require.Equal(t, RecordSeparator, b[len(b)-1])

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b[:len(b)-1], &raw))
	assert.Equal(t, []any{}, raw["arguments"])
	assert.NotContains(t, raw, "invocationId")

	b, err = InvocationFrame("7", "JoinGame", "g1")
	require.NoError(t, err)
	m, err := Parse(b[:len(b)-1])
	require.NoError(t, err)
	assert.Equal(t, TypeInvocation, m.Type)
	assert.Equal(t, "7", m.InvocationID)
	assert.Equal(t, "JoinGame", m.Target)
	require.Len(t, m.Arguments, 1)
	assert.JSONEq(t, `"g1"`, string(m.Arguments[0]))
}

func TestCompletionFrame(t *testing.T) {
	b, err := CompletionFrame("1", map[string]int{"n": 2}, "")
	require.NoError(t, err)
	m, err := Parse(b[:len(b)-1])
	require.NoError(t, err)
	assert.Equal(t, TypeCompletion, m.Type)
	assert.JSONEq(t, `{"n":2}`, string(m.Result))

	b, err = CompletionFrame("2", "ignored", "boom")
	require.NoError(t, err)
	m, err = Parse(b[:len(b)-1])
	require.NoError(t, err)
	assert.Equal(t, "boom", m.Error)
	assert.Empty(t, m.Result)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("  "))
	assert.ErrorIs(t, err, ErrEmptyFrame)

	_, err = Parse([]byte("{nope"))
	assert.Error(t, err)
}
