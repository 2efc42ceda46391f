package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("HUB_RECONNECT_DELAYS", "")
	t.Setenv("LOG_FORMAT", "")

	c, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "text", c.Log.Format)
	assert.Equal(t, []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}, c.Hub.ReconnectDelays)
	assert.Equal(t, 5, c.Hub.MaxReconnectAttempts)
	assert.True(t, c.Hub.AutoReconnect)
	assert.Equal(t, "/game-play", c.Hub.GamePath)
}

func TestLoadFromEnv_ReconnectDelays(t *testing.T) {
	cases := []struct {
		name string
		env  string
		want []time.Duration
	}{
		{name: "custom", env: "100ms, 1s", want: []time.Duration{100 * time.Millisecond, time.Second}},
		{name: "garbage_falls_back", env: "1s,soon", want: defaultReconnectDelays},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("HUB_RECONNECT_DELAYS", tc.env)
			c, err := LoadFromEnv()
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.Hub.ReconnectDelays)
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		var c Config
		c.Env = "dev"
		c.Log.Format = "text"
		c.Log.Level = "info"
		c.API.BaseURL = "http://localhost:5100/api"
		c.Hub.BaseURL = "http://localhost:5100"
		c.Hub.LobbyPath = "/game-lobbies"
		c.Hub.GamePath = "/game-play"
		c.Hub.ReconnectDelays = []time.Duration{0}
		return c
	}

	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "bad_log_format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: true},
		{name: "bad_log_level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: true},
		{name: "no_delays", mutate: func(c *Config) { c.Hub.ReconnectDelays = nil }, wantErr: true},
		{name: "negative_delay", mutate: func(c *Config) { c.Hub.ReconnectDelays = []time.Duration{-time.Second} }, wantErr: true},
		{name: "empty_api", mutate: func(c *Config) { c.API.BaseURL = "" }, wantErr: true},
		{name: "prod_devhub_without_secret", mutate: func(c *Config) {
			c.Env = "prod"
			c.DevHub.Addr = ":5100"
		}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(&c)
			err := c.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHubURL(t *testing.T) {
	var c Config
	c.Hub.BaseURL = "https://arena.example.com/"

	got, err := c.HubURL("/game-play")
	require.NoError(t, err)
	assert.Equal(t, "wss://arena.example.com/game-play", got)

	c.Hub.BaseURL = "ftp://nope"
	_, err = c.HubURL("/x")
	assert.Error(t, err)
}
