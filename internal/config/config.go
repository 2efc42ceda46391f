package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config describes all runtime settings for the sync client and the dev hub.
//
// Loaded once in main, validated, then passed down explicitly.
type Config struct {
	Env string // dev|stage|prod

	Log struct {
		Format string // text|json
		Level  string
	}

	API struct {
		BaseURL string
		Timeout time.Duration
	}

	Hub struct {
		BaseURL   string
		LobbyPath string
		GamePath  string

		AutoReconnect        bool
		ReconnectDelays      []time.Duration
		MaxReconnectAttempts int

		HandshakeTimeout  time.Duration
		KeepAliveInterval time.Duration
		ServerTimeout     time.Duration
	}

	Auth struct {
		AccessToken string
		Username    string
	}

	Journal struct {
		RedisAddr string
		DB        int
		TTL       time.Duration
	}

	DevHub struct {
		Addr      string
		JWTSecret string
	}
}

var defaultReconnectDelays = []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}

// LoadFromEnv reads .env (if present) and then the process environment.
func LoadFromEnv() (Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	var c Config

	c.Env = envString("APP_ENV", "dev")
	c.Log.Format = envString("LOG_FORMAT", "text")
	c.Log.Level = envString("LOG_LEVEL", "info")

	c.API.BaseURL = envString("API_BASE_URL", "http://localhost:5100/api")
	c.API.Timeout = envDuration("API_TIMEOUT", 10*time.Second)

	c.Hub.BaseURL = envString("HUB_BASE_URL", "http://localhost:5100")
	c.Hub.LobbyPath = envString("LOBBY_HUB_PATH", "/game-lobbies")
	c.Hub.GamePath = envString("GAME_HUB_PATH", "/game-play")
	c.Hub.AutoReconnect = envBool("HUB_AUTO_RECONNECT", true)
	c.Hub.ReconnectDelays = envDurations("HUB_RECONNECT_DELAYS", defaultReconnectDelays)
	c.Hub.MaxReconnectAttempts = envInt("HUB_MAX_RECONNECT_ATTEMPTS", 5)
	c.Hub.HandshakeTimeout = envDuration("HUB_HANDSHAKE_TIMEOUT", 15*time.Second)
	c.Hub.KeepAliveInterval = envDuration("HUB_KEEPALIVE_INTERVAL", 15*time.Second)
	c.Hub.ServerTimeout = envDuration("HUB_SERVER_TIMEOUT", 30*time.Second)

	c.Auth.AccessToken = envString("ACCESS_TOKEN", "")
	c.Auth.Username = envString("USERNAME", "")

	c.Journal.RedisAddr = envString("JOURNAL_REDIS_ADDR", "")
	c.Journal.DB = envInt("JOURNAL_REDIS_DB", 0)
	c.Journal.TTL = envDuration("JOURNAL_TTL", 24*time.Hour)

	c.DevHub.Addr = envString("DEVHUB_ADDR", ":5100")
	c.DevHub.JWTSecret = envString("DEVHUB_JWT_SECRET", "")

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("API_BASE_URL is empty")
	}
	if _, err := url.Parse(c.API.BaseURL); err != nil {
		return fmt.Errorf("API_BASE_URL: %w", err)
	}
	if c.Hub.BaseURL == "" {
		return errors.New("HUB_BASE_URL is empty")
	}
	if _, err := url.Parse(c.Hub.BaseURL); err != nil {
		return fmt.Errorf("HUB_BASE_URL: %w", err)
	}
	if c.Hub.LobbyPath == "" || c.Hub.GamePath == "" {
		return errors.New("hub paths must not be empty")
	}
	if len(c.Hub.ReconnectDelays) == 0 {
		return errors.New("HUB_RECONNECT_DELAYS needs at least one delay")
	}
	for _, d := range c.Hub.ReconnectDelays {
		if d < 0 {
			return fmt.Errorf("negative reconnect delay %s", d)
		}
	}
	if c.Hub.MaxReconnectAttempts < 0 {
		return errors.New("HUB_MAX_RECONNECT_ATTEMPTS must be >= 0")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unsupported LOG_FORMAT=%q (want text|json)", c.Log.Format)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.Env != "dev" && c.DevHub.JWTSecret == "" && c.DevHub.Addr != "" {
		return fmt.Errorf("refuse to run the dev hub without DEVHUB_JWT_SECRET in %s", c.Env)
	}
	return nil
}

// HubURL returns the websocket URL for a hub path.
func (c Config) HubURL(path string) (string, error) {
	u, err := url.Parse(c.Hub.BaseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported hub scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String(), nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

// envDurations parses a comma separated list like "0s,2s,10s".
// Any unparsable element falls back to def as a whole.
func envDurations(key string, def []time.Duration) []time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return append([]time.Duration(nil), def...)
	}
	parts := strings.Split(v, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(p))
		if err != nil {
			return append([]time.Duration(nil), def...)
		}
		out = append(out, d)
	}
	return out
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
