package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/robo-sync/internal/api"
	"example.com/robo-sync/internal/app"
	"example.com/robo-sync/internal/config"
	"example.com/robo-sync/internal/game"
	"example.com/robo-sync/internal/lobby"
	"example.com/robo-sync/internal/model"
	"example.com/robo-sync/internal/pause"
	"github.com/sirupsen/logrus"
)

var (
	gameID    = flag.String("game", "", "follow this game")
	lobbyID   = flag.String("lobby", "", "wait in this lobby until the game starts, then follow it")
	board     = flag.String("board", "Starter", "board to start with when hosting a lobby")
	list      = flag.Bool("list", false, "list lobbies, paused games and history, then exit")
	auto      = flag.Bool("auto", false, "program and execute cards automatically")
	batch     = flag.Bool("batch", false, "as host, reveal and execute registers without prompting")
	pauseVote = flag.String("pause-vote", "", "answer pause requests with yes or no")
	shuffle   = flag.Duration("shuffle", 1500*time.Millisecond, "how long the reshuffle animation lasts")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		dangerFmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log := logrus.NewEntry(app.NewLogger(cfg)).WithField("component", "roboclient")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		dangerFmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}

	if *list {
		err = listAll(ctx, a)
		_ = a.Close(context.Background())
	} else {
		err = a.Run(ctx, func(ctx context.Context) error { return follow(ctx, a) })
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		dangerFmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func listAll(ctx context.Context, a *app.App) error {
	lobbies, err := a.API.ListLobbies(ctx)
	if err != nil {
		return fmt.Errorf("lobbies: %w", err)
	}
	paused, err := a.API.PausedGames(ctx, a.Username())
	if err != nil {
		return fmt.Errorf("paused games: %w", err)
	}
	finished := true
	history, err := a.API.UserGames(ctx, a.Username(), api.GamesFilter{IsFinished: &finished})
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	listings(lobbies, paused, history)
	return nil
}

func follow(ctx context.Context, a *app.App) error {
	id := *gameID
	if *lobbyID != "" {
		started, err := waitInLobby(ctx, a, *lobbyID)
		if err != nil {
			return err
		}
		id = started
	}
	if id == "" {
		return errors.New("one of -game, -lobby or -list is required")
	}
	return playGame(ctx, a, id)
}

func waitInLobby(ctx context.Context, a *app.App, id string) (string, error) {
	room := a.OpenLobby(id)
	defer room.Close()

	var p printer
	states := make(chan lobby.State, 1)
	defer room.OnChange(func(s lobby.State) { latest(states, s) })()

	if err := room.Load(ctx); err != nil {
		return "", fmt.Errorf("lobby %s: %w", id, err)
	}
	latest(states, room.State())

	startRequested := false
	for {
		select {
		case <-ctx.Done():
			_ = room.Leave(context.Background())
			return "", ctx.Err()
		case s := <-states:
			p.lobby(s)
			if s.Started {
				return s.GameID, nil
			}
			if !startRequested && s.CanStart(a.Username()) {
				startRequested = true
				if err := room.Start(ctx, *board); err != nil {
					p.err(err)
					startRequested = false
				}
			}
		}
	}
}

func playGame(ctx context.Context, a *app.App, id string) error {
	h := a.OpenGame(id, game.WithShuffleDuration(*shuffle))
	defer h.Close()

	var p printer
	views := make(chan game.View, 1)
	votes := make(chan pause.State, 1)
	results := make(chan pause.Result, 1)
	defer h.Session.OnChange(func(v game.View) { latest(views, v) })()
	defer h.Session.OnError(p.err)()
	defer h.Pause.OnChange(func(s pause.State) { latest(votes, s) })()
	defer h.Pause.OnResolved(func(r pause.Result) { latest(results, r) })()

	if err := h.Session.Load(ctx); err != nil {
		return fmt.Errorf("game %s: %w", id, err)
	}
	latest(views, h.Session.View())

	d := driver{s: h.Session, p: &p, log: a.Logger().WithField("game", id)}
	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-views:
			p.view(v)
			if v.Result != nil {
				return nil
			}
			d.step(ctx, v)
		case s := <-votes:
			p.pause(s)
			if s.Status == pause.RequestPending && s.Requester != a.Username() && *pauseVote != "" {
				if err := h.Pause.Respond(ctx, *pauseVote == "yes"); err != nil && !errors.Is(err, pause.ErrAlreadyResponded) {
					p.err(err)
				}
			}
		case <-results:
			leave, err := h.Pause.Acknowledge()
			if err != nil {
				p.err(err)
				continue
			}
			if leave {
				warningFmt.Println("game paused, leaving")
				return nil
			}
		}
	}
}

// driver makes the moves -auto and -batch ask for. Each move is sent at most
// once per round and register; the view catches up when the event arrives.
type driver struct {
	s   *game.Session
	p   *printer
	log *logrus.Entry

	phase model.Phase
	round int
	sent  map[string]bool
}

func (d *driver) step(ctx context.Context, v game.View) {
	if v.Phase != d.phase {
		if v.Phase == model.PhaseProgramming {
			d.round++
			d.sent = nil
		}
		d.phase = v.Phase
	}
	if v.ShufflePending {
		return
	}
	if *batch && v.IsHost() && !d.s.Batching() && v.Phase == model.PhaseActivation {
		if err := d.s.SetBatch(true); err != nil {
			d.p.err(err)
		}
	}

	switch v.Phase {
	case model.PhaseProgramming:
		if v.IsHost() && len(v.Hand) == 0 && len(v.PendingDeal) == 0 && !v.Program.Locked() {
			d.once("deal", func() error { return d.s.Deal(ctx) })
			return
		}
		if *auto && !v.Program.Locked() && len(v.Hand) >= model.RegisterCount {
			d.once("program", func() error {
				for i, c := range v.Hand[:model.RegisterCount] {
					if err := d.s.PlaceCard(i, c); err != nil {
						return err
					}
				}
				return d.s.LockIn(ctx)
			})
			return
		}
		if v.IsHost() && v.AllLockedIn() {
			d.once("activation", func() error { return d.s.StartActivation(ctx) })
		}

	case model.PhaseActivation:
		if v.IsHost() && v.RoundComplete {
			d.once("next round", func() error { return d.s.StartNextRound(ctx) })
			return
		}
		batched := d.s.Batching() && !v.CurrentCard().Interactive()
		if *auto && !batched && v.Cursor.Turn == v.Username && !v.Cursor.Executed[v.Username] {
			d.once(fmt.Sprintf("execute %d", v.Cursor.Revealed), func() error { return d.s.Execute(ctx, choose(v)) })
			return
		}
		if v.IsHost() && !d.s.Batching() && v.Cursor.CanReveal() {
			d.once(fmt.Sprintf("reveal %d", v.Cursor.Revealed+1), func() error { return d.s.RevealNext(ctx) })
		}
	}
}

func (d *driver) once(key string, fn func() error) {
	if d.sent[key] {
		return
	}
	if d.sent == nil {
		d.sent = map[string]bool{}
	}
	d.sent[key] = true
	if err := fn(); err != nil {
		d.log.WithError(err).WithFields(logrus.Fields{"move": key, "round": d.round}).Debug("move rejected")
		d.p.err(err)
		delete(d.sent, key)
	}
}

// choose picks a fixed answer for interactive cards: the first other player
// to swap with, or a single step forward.
func choose(v game.View) model.Choice {
	switch v.CurrentCard() {
	case model.SwapPosition:
		for _, pl := range v.Players {
			if pl.Username != v.Username {
				return model.Choice{TargetUsername: pl.Username}
			}
		}
	case model.MovementChoice:
		return model.Choice{MovementChoice: model.Move1}
	}
	return model.Choice{}
}

// latest replaces whatever is buffered in ch with v.
func latest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
