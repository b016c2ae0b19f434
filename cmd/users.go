package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/playr/internal/formatter"
	"github.com/desertthunder/playr/internal/models"
	"github.com/desertthunder/playr/internal/repositories"
	"github.com/desertthunder/playr/internal/store"
	"github.com/urfave/cli/v3"
)

type userRow struct {
	ID           int64     `json:"id"`
	SpotifyID    string    `json:"spotify_id"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email,omitempty"`
	ProfileImage string    `json:"profile_image,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// UsersList prints every registered user. Cached upstream tokens are never printed.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := repositories.NewUserRepository(store.New(db, config.Database.Driver)).List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if cmd.Bool("json") {
		rows := make([]userRow, len(users))
		for i, u := range users {
			rows[i] = userRow{
				ID:           u.ID(),
				SpotifyID:    u.SpotifyID(),
				DisplayName:  u.DisplayName(),
				Email:        u.Email(),
				ProfileImage: u.ProfileImage(),
				CreatedAt:    u.CreatedAt().UTC(),
			}
		}
		return r.writeJSON(rows, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Users (%d)", len(users)))
	_, err = r.output.Write(formatter.UsersTable(users))
	return err
}

// FavoritesExport writes one user's favorites of a single type to a file or stdout.
func (r *Runner) FavoritesExport(ctx context.Context, cmd *cli.Command) error {
	spotifyID := cmd.String("spotify-id")
	itemType := cmd.String("type")
	format := cmd.String("format")
	output := cmd.String("output")

	if !models.ValidItemType(itemType) {
		return fmt.Errorf("unknown item type %q", itemType)
	}

	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	s := store.New(db, config.Database.Driver)
	owner, err := repositories.NewUserRepository(s).GetBySpotifyID(ctx, spotifyID)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", spotifyID, err)
	}

	favorites, err := repositories.NewFavoriteRepository(s).ListByType(ctx, spotifyID, itemType)
	if err != nil {
		return fmt.Errorf("failed to list favorites: %w", err)
	}

	export := &formatter.FavoritesExport{Owner: owner, ItemType: itemType, Favorites: favorites}
	r.logger.Info("exporting favorites", "spotify_id", spotifyID, "type", itemType, "count", len(favorites), "format", format)

	if output == "-" {
		data, err := formatter.Export(export, format)
		if err != nil {
			return err
		}
		_, err = r.output.Write(data)
		return err
	}

	path, err := formatter.WriteExport(export, format, output)
	if err != nil {
		return err
	}
	return r.writePlain("%s %d favorites to %s\n", r.palette.OK("✓ Exported"), len(favorites), path)
}
