// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/playr/internal/formatter"
	"github.com/desertthunder/playr/internal/models"
	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// serveCommand starts the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides config and PORT)",
			},
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "Apply pending migrations before serving",
				Value: true,
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml from the bundled template",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupRollback,
			},
			{
				Name:   "status",
				Usage:  "Print the current schema version",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupStatus,
			},
		},
	}
}

// tokenCommand mints and decodes session tokens.
func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Session token utilities",
		Commands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "Sign a session token for a user",
				Flags: []cli.Flag{
					configFlag(),
					&cli.IntFlag{
						Name:     "user-id",
						Usage:    "Internal user id",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "spotify-id",
						Usage:    "Spotify account id",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "email",
						Usage: "Email claim",
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime (defaults to auth.token_ttl)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output token and expiry as JSON",
					},
				},
				Action: r.TokenIssue,
			},
			{
				Name:  "inspect",
				Usage: "Verify a session token and print its claims",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "token"},
				},
				Flags: []cli.Flag{
					configFlag(),
				},
				Action: r.TokenInspect,
			},
		},
	}
}

// usersCommand reads the users table.
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Inspect registered users",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List every user",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.UsersList,
			},
		},
	}
}

// favoritesCommand exports a user's favorites.
func favoritesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "favorites",
		Aliases: []string{"fav"},
		Usage:   "Favorites operations",
		Commands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Export a user's favorites to CSV, Markdown, text or JSON",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "spotify-id",
						Usage:    "Owner's Spotify account id",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Item type: track, playlist or lyrics",
						Value: models.ItemTrack,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: csv, markdown, text or json",
						Value:   formatter.FormatCSV,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (\"-\" writes to stdout)",
					},
				},
				Action: r.FavoritesExport,
			},
		},
	}
}
