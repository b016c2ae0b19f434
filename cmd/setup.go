package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/playr/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the bundled config template to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", configPath)
	r.writePlain("%s %s\n", r.palette.OK("✓ Config written to"), configPath)
	r.writePlain("%s\n", r.palette.Help("Set credentials.spotify and auth.jwt_secret, or export SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET and JWT_SECRET."))
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "driver", config.Database.Driver, "path", config.Database.Path)

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Info("running database migrations")
	applied, err := shared.RunMigrations(ctx, db, config.Database.Driver)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if len(applied) == 0 {
		return r.writePlain("%s\n", r.palette.OK("✓ Database is up to date"))
	}

	r.writePlainHeader("Applied migrations")
	for _, m := range applied {
		r.writePlain("%5d  %s\n", m.Version, m.Path)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}

// SetupRollback rolls back the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	rolled, err := shared.RollbackMigration(ctx, db, config.Database.Driver)
	if err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}

	r.logger.Warn("rolled back migration", "version", rolled.Version)
	return r.writePlain("%s %d (%s)\n", r.palette.Warn("Rolled back migration"), rolled.Version, rolled.Path)
}

// SetupStatus prints the current schema version.
func (r *Runner) SetupStatus(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := shared.MigrationVersion(ctx, db, config.Database.Driver)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	return r.writePlain("schema version: %d\n", version)
}
