package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"example.com/robo-sync/internal/api"
	"example.com/robo-sync/internal/auth"
	"example.com/robo-sync/internal/config"
	"example.com/robo-sync/internal/game"
	"example.com/robo-sync/internal/groups"
	"example.com/robo-sync/internal/journal"
	"example.com/robo-sync/internal/lobby"
	"example.com/robo-sync/internal/pause"
	"example.com/robo-sync/internal/realtime"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// memoryJournalLimit bounds the in-process journal used without Redis.
const memoryJournalLimit = 2000

// Journal is what the app needs from a journal backend.
type Journal interface {
	game.Journal
	Entries(ctx context.Context, gameID string) ([]journal.Entry, error)
}

// App owns one connection per hub and everything built on top of them.
// Components get their collaborators from here; there are no package-level
// instances.
type App struct {
	cfg      config.Config
	log      *logrus.Entry
	username string

	API     *api.Client
	Lobby   *realtime.Manager
	Game    *realtime.Manager
	Journal Journal

	lobbyGroups *groups.Manager
	gameGroups  *groups.Manager
	rdb         *redis.Client
}

// NewLogger builds the process logger from config.
func NewLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if cfg.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if lvl, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

func New(ctx context.Context, cfg config.Config, log *logrus.Entry) (*App, error) {
	if log == nil {
		log = logrus.NewEntry(NewLogger(cfg))
	}

	username := cfg.Auth.Username
	if username == "" && cfg.Auth.AccessToken != "" {
		u, err := auth.UsernameFromToken(cfg.Auth.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("username from token: %w", err)
		}
		username = u
	}
	if username == "" {
		return nil, errors.New("no username: set USERNAME or ACCESS_TOKEN")
	}

	var token auth.TokenSource
	if cfg.Auth.AccessToken != "" {
		token = auth.StaticToken(cfg.Auth.AccessToken)
	}

	a := &App{cfg: cfg, log: log, username: username}
	a.API = api.New(cfg.API.BaseURL, cfg.API.Timeout, api.WithToken(token), api.WithLogger(log))

	var err error
	if a.Lobby, err = a.hub(cfg.Hub.LobbyPath, "JoinLobby", "LeaveLobby", token); err != nil {
		return nil, err
	}
	if a.Game, err = a.hub(cfg.Hub.GamePath, "JoinGame", "LeaveGame", token); err != nil {
		return nil, err
	}
	a.lobbyGroups = groups.NewManager(a.Lobby, log)
	a.gameGroups = groups.NewManager(a.Game, log)

	// --- Journal ---
	if cfg.Journal.RedisAddr == "" {
		a.Journal = journal.NewMemory(memoryJournalLimit)
		return a, nil
	}
	a.rdb = redis.NewClient(&redis.Options{Addr: cfg.Journal.RedisAddr, DB: cfg.Journal.DB})
	rj := journal.NewRedis(a.rdb, cfg.Journal.TTL)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rj.Ping(pingCtx); err != nil {
		_ = a.rdb.Close()
		return nil, fmt.Errorf("redis ping (%s db=%d): %w", cfg.Journal.RedisAddr, cfg.Journal.DB, err)
	}
	a.Journal = rj
	return a, nil
}

func (a *App) hub(path, join, leave string, token auth.TokenSource) (*realtime.Manager, error) {
	u, err := a.cfg.HubURL(path)
	if err != nil {
		return nil, fmt.Errorf("hub url %s: %w", path, err)
	}
	m := realtime.NewManager(a.log.WithField("hub", path))
	m.Initialize(realtime.Config{
		URL:                  u,
		AccessToken:          token,
		AutomaticReconnect:   a.cfg.Hub.AutoReconnect,
		ReconnectDelays:      a.cfg.Hub.ReconnectDelays,
		MaxReconnectAttempts: a.cfg.Hub.MaxReconnectAttempts,
		HandshakeTimeout:     a.cfg.Hub.HandshakeTimeout,
		KeepAliveInterval:    a.cfg.Hub.KeepAliveInterval,
		ServerTimeout:        a.cfg.Hub.ServerTimeout,
		JoinMethod:           join,
		LeaveMethod:          leave,
	})
	return m, nil
}

func (a *App) Username() string { return a.username }

func (a *App) Logger() *logrus.Entry { return a.log }

// Start connects both hubs.
func (a *App) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Lobby.Start(gctx) })
	g.Go(func() error { return a.Game.Start(gctx) })
	return g.Wait()
}

// GameHandle bundles what following one game needs.
type GameHandle struct {
	Session *game.Session
	Pause   *pause.Handler
}

func (h *GameHandle) Close() {
	h.Pause.Close()
	h.Session.Close()
}

func (a *App) OpenGame(gameID string, opts ...game.Option) *GameHandle {
	opts = append([]game.Option{game.WithJournal(a.Journal), game.WithLogger(a.log)}, opts...)
	s := game.NewSession(a.Game, a.gameGroups, a.API, gameID, a.username, opts...)
	players := func() int { return len(s.View().Players) }
	p := pause.NewHandler(a.Game, a.API, gameID, a.username, players, s.InGroup, a.log)
	return &GameHandle{Session: s, Pause: p}
}

func (a *App) OpenLobby(gameID string) *lobby.Room {
	return lobby.NewRoom(a.Lobby, a.lobbyGroups, a.API, gameID, a.username, a.log)
}

// Run starts the hubs, runs fn, and keeps logging connection trouble until
// fn returns or ctx is cancelled.
func (a *App) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := a.Start(ctx); err != nil {
		_ = a.Close(context.Background())
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		defer stop()
		return fn(runCtx)
	})

	g.Go(func() error {
		var unsub []func()
		for name, m := range map[string]*realtime.Manager{"lobby": a.Lobby, "game": a.Game} {
			l := a.log.WithField("hub", name)
			unsub = append(unsub,
				m.OnStateChange(func(s realtime.ConnectionState) { l.WithField("state", s).Info("hub state") }),
				m.OnError(func(err error) { l.WithError(err).Warn("hub error") }),
			)
		}
		<-runCtx.Done()
		for _, u := range unsub {
			u()
		}
		return nil
	})

	err := g.Wait()
	_ = a.Close(context.Background())
	return err
}

func (a *App) Close(ctx context.Context) error {
	// best-effort
	a.lobbyGroups.Close()
	a.gameGroups.Close()
	_ = a.Lobby.Stop(ctx)
	_ = a.Game.Stop(ctx)
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	return nil
}
