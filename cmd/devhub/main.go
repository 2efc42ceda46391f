// Command devhub runs a local stand-in for the lobby and game hubs so clients
// can be exercised without the real backend. Events are injected over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/robo-sync/internal/app"
	"example.com/robo-sync/internal/config"
	"example.com/robo-sync/internal/devhub"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logrus.NewEntry(app.NewLogger(cfg)).WithField("component", "devhub")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	keepAlive := devhub.WithKeepAlive(cfg.Hub.KeepAliveInterval)
	handler := devhub.NewServer(
		devhub.New(log.WithField("hub", "lobby"), keepAlive),
		devhub.New(log.WithField("hub", "game"), keepAlive),
		devhub.Paths{Lobby: cfg.Hub.LobbyPath, Game: cfg.Hub.GamePath},
		[]byte(cfg.DevHub.JWTSecret),
		log,
	)
	srv := &http.Server{
		Addr:              cfg.DevHub.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	log.WithFields(logrus.Fields{"addr": srv.Addr, "auth": cfg.DevHub.JWTSecret != ""}).Info("dev hub starting")

	g.Go(func() error {
		err := srv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("dev hub shutting down")
		_ = srv.Shutdown(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("dev hub stopped")
	}
}
