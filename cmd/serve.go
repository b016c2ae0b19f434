package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/playr/internal/auth"
	"github.com/desertthunder/playr/internal/server"
	"github.com/desertthunder/playr/internal/services"
	"github.com/desertthunder/playr/internal/shared"
	"github.com/desertthunder/playr/internal/store"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	if port := cmd.Int("port"); port > 0 {
		config.Server.Port = port
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if err := shared.SetLogLevel(r.logger, config.Log.Level); err != nil {
		return err
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	if cmd.Bool("migrate") {
		applied, err := shared.RunMigrations(ctx, db, config.Database.Driver)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		for _, m := range applied {
			r.logger.Info("applied migration", "version", m.Version, "path", m.Path)
		}
	}

	spotify, err := services.NewSpotifyService(config.Credentials.Spotify, nil)
	if err != nil {
		return err
	}

	issuer, err := auth.NewIssuer(config.Auth.JWTSecret, auth.WithTTL(config.Auth.TokenTTL.Duration))
	if err != nil {
		return err
	}
	r.logger.Info("session tokens", "ttl", issuer.TTL())

	denylist, closeDenylist, err := r.newDenylist(ctx, config)
	if err != nil {
		return err
	}
	defer closeDenylist()

	opts := server.Options{
		Config:   config,
		Store:    store.New(db, config.Database.Driver),
		OAuth:    spotify,
		Catalog:  spotify,
		Playlist: spotify,
		Issuer:   issuer,
		Denylist: denylist,
		Logger:   r.logger,
	}
	if config.Credentials.Musixmatch.APIKey == "" {
		r.logger.Info("no musixmatch api_key, serving cached lyrics only")
	} else {
		lyrics, err := services.NewMusixmatchService(config.Credentials.Musixmatch, nil)
		if err != nil {
			return err
		}
		opts.Lyrics = lyrics
	}

	srv, err := server.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

// newDenylist connects to Redis when a URL is configured and otherwise keeps revocations in memory.
func (r *Runner) newDenylist(ctx context.Context, config *shared.Config) (auth.Denylist, func(), error) {
	if config.Redis.URL == "" {
		r.logger.Info("token denylist kept in memory")
		return auth.NewMemoryDenylist(nil), func() {}, nil
	}

	denylist, err := auth.NewRedisDenylist(ctx, config.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	r.logger.Info("token denylist backed by redis")
	return denylist, func() {
		if err := denylist.Close(); err != nil {
			r.logger.Warn("failed to close redis client", "error", err)
		}
	}, nil
}
