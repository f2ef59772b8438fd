package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ewilliams-labs/tapestry/internal/adapters/anthropic"
	"github.com/ewilliams-labs/tapestry/internal/adapters/filestore"
	"github.com/ewilliams-labs/tapestry/internal/adapters/rest"
	"github.com/ewilliams-labs/tapestry/internal/adapters/spotify"
	"github.com/ewilliams-labs/tapestry/internal/adapters/sqlite"
	"github.com/ewilliams-labs/tapestry/internal/config"
	"github.com/ewilliams-labs/tapestry/internal/core/ports"
	"github.com/ewilliams-labs/tapestry/internal/core/services"
	"github.com/ewilliams-labs/tapestry/internal/logger"
	"github.com/ewilliams-labs/tapestry/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger not up yet
		panic(err)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Reference data. A missing or broken manifold degrades the engine to
	// the sample playlist instead of refusing to start.
	manifold, err := filestore.LoadManifold(cfg.Storage.ManifoldPath)
	if err != nil {
		log.Warn("manifold unavailable, running degraded", "path", cfg.Storage.ManifoldPath, "error", err)
		manifold = nil
	}

	var store ports.TapestryStore
	switch cfg.Storage.Driver {
	case "filestore":
		store = filestore.New(cfg.Storage.TapestryPath, cfg.Storage.DownvotesPath, manifold, log.With("component", "filestore"))
	case "sqlite":
		store, err = sqlite.New(cfg.Storage.SQLitePath, manifold, log.With("component", "sqlite"))
		if err != nil {
			log.Fatal("failed to initialize database", "error", err)
		}
	default:
		log.Fatal("unknown storage driver", "driver", cfg.Storage.Driver)
	}
	defer store.Close()

	planner := anthropic.NewClient(
		cfg.Anthropic.BaseURL,
		cfg.Anthropic.APIKey,
		cfg.Anthropic.Model,
		time.Duration(cfg.Anthropic.TimeoutSeconds)*time.Second,
		log.With("component", "anthropic"),
	)

	var enricher ports.MetadataProvider
	var creator rest.PlaylistCreator
	if cfg.Spotify.ClientID != "" && cfg.Spotify.ClientSecret != "" {
		spotifyClient := spotify.NewClient(spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			UserToken:    cfg.Spotify.UserToken,
			MaxRetries:   cfg.Spotify.MaxRetries,
			BaseBackoff:  time.Duration(cfg.Spotify.BackoffMs) * time.Millisecond,
		}, log.With("component", "spotify"))
		enricher = spotifyClient
		creator = spotifyClient
	} else {
		log.Warn("spotify credentials not set, enrichment and export disabled")
	}

	pool := worker.NewPool(store, cfg.Worker.QueueSize, log.With("component", "worker"))
	pool.Start(cfg.Worker.Count)
	defer pool.Stop()

	selector := services.NewSelector(planner, manifold, log.With("component", "selector"))
	compositor := services.NewCompositor(selector, planner, store, manifold, enricher, pool, log.With("component", "compositor"))
	feedback := services.NewFeedback(store, log.With("component", "feedback"))

	handler := rest.NewHandler(compositor, feedback, store, creator, log.With("component", "rest"))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	log.Info("tapestry api listening", "addr", cfg.Server.Addr, "driver", cfg.Storage.Driver, "manifold_loaded", manifold != nil)

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatal("server failed", "error", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", "error", err)
		}
	}
}
