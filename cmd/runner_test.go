package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/playr/internal/models"
	"github.com/desertthunder/playr/internal/repositories"
	"github.com/desertthunder/playr/internal/shared"
	"github.com/desertthunder/playr/internal/store"
	tu "github.com/desertthunder/playr/internal/testing"
	"github.com/urfave/cli/v3"
)

func noEnv(string) (string, bool) { return "", false }

// writeTestConfig writes a config pointing at a sqlite file in a temp dir and returns its path.
func writeTestConfig(t *testing.T) (configPath, dbPath string) {
	t.Helper()

	dir := t.TempDir()
	configPath = filepath.Join(dir, "config.toml")
	dbPath = filepath.Join(dir, "playr.db")

	body := fmt.Sprintf(`[database]
driver = "sqlite3"
path = %q

[auth]
jwt_secret = "cli-secret"
`, dbPath)
	if err := os.WriteFile(configPath, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath, dbPath
}

func run(t *testing.T, runner *Runner, args ...string) error {
	t.Helper()

	app := &cli.Command{Name: "playr", Commands: runner.register()}
	return app.Run(context.Background(), append([]string{"playr"}, args...))
}

func newTestRunner(output *bytes.Buffer) *Runner {
	return NewRunner(RunnerOpts{
		Output:    output,
		Logger:    shared.NewLogger(&bytes.Buffer{}),
		LookupEnv: noEnv,
	})
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil lookup uses the environment", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.lookupEnv == nil {
				t.Error("expected lookupEnv to default to os.LookupEnv")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}

		for _, want := range []string{"serve", "setup", "token", "users", "favorites"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})

	t.Run("loadConfig", func(t *testing.T) {
		t.Run("missing file keeps runner config", func(t *testing.T) {
			config := shared.DefaultConfig()
			runner := NewRunner(RunnerOpts{Config: config, LookupEnv: noEnv})

			loaded, err := runner.loadConfig(filepath.Join(t.TempDir(), "absent.toml"))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if loaded != config {
				t.Error("expected runner config when file is absent")
			}
		})

		t.Run("reads file and applies environment", func(t *testing.T) {
			configPath, dbPath := writeTestConfig(t)
			env := map[string]string{"SPOTIFY_CLIENT_ID": "from-env"}
			runner := NewRunner(RunnerOpts{LookupEnv: func(k string) (string, bool) {
				v, ok := env[k]
				return v, ok
			}})

			loaded, err := runner.loadConfig(configPath)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if loaded.Database.Path != dbPath {
				t.Errorf("expected database path %s, got %s", dbPath, loaded.Database.Path)
			}
			if loaded.Credentials.Spotify.ClientID != "from-env" {
				t.Errorf("expected client id from env, got %s", loaded.Credentials.Spotify.ClientID)
			}
		})

		t.Run("invalid file", func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(configPath, []byte("[database\n"), 0600); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			runner := NewRunner(RunnerOpts{LookupEnv: noEnv})
			if _, err := runner.loadConfig(configPath); err == nil {
				t.Error("expected parse error")
			}
		})
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("setup config", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := newTestRunner(output)
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := run(t, runner, "setup", "config", "--config", configPath); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("expected config file: %v", err)
		}
		if !strings.Contains(output.String(), configPath) {
			t.Errorf("expected path in output, got %q", output.String())
		}

		if err := run(t, runner, "setup", "config", "--config", configPath); err == nil {
			t.Error("expected error when config already exists")
		}
	})

	t.Run("setup database, status and rollback", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := newTestRunner(output)
		configPath, _ := writeTestConfig(t)

		if err := run(t, runner, "setup", "database", "--config", configPath); err != nil {
			t.Fatalf("setup database failed: %v", err)
		}
		if !strings.Contains(output.String(), "Applied migrations") {
			t.Errorf("expected applied migrations, got %q", output.String())
		}

		output.Reset()
		if err := run(t, runner, "setup", "database", "--config", configPath); err != nil {
			t.Fatalf("second setup database failed: %v", err)
		}
		if !strings.Contains(output.String(), "up to date") {
			t.Errorf("expected up to date message, got %q", output.String())
		}

		output.Reset()
		if err := run(t, runner, "setup", "status", "--config", configPath); err != nil {
			t.Fatalf("setup status failed: %v", err)
		}
		if !strings.HasPrefix(output.String(), "schema version: ") || strings.Contains(output.String(), "version: 0\n") {
			t.Errorf("expected non-zero schema version, got %q", output.String())
		}

		output.Reset()
		if err := run(t, runner, "setup", "rollback", "--config", configPath); err != nil {
			t.Fatalf("setup rollback failed: %v", err)
		}
		if !strings.Contains(output.String(), "Rolled back migration") {
			t.Errorf("expected rollback message, got %q", output.String())
		}
	})
}

func TestTokenCommands(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	t.Run("issue then inspect", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := newTestRunner(output)

		err := run(t, runner, "token", "issue", "--config", configPath,
			"--user-id", "7", "--spotify-id", "U7", "--email", "u7@x.com", "--ttl", "2h", "--json")
		if err != nil {
			t.Fatalf("token issue failed: %v", err)
		}

		var issued issuedToken
		if err := json.Unmarshal(output.Bytes(), &issued); err != nil {
			t.Fatalf("invalid JSON output %q: %v", output.String(), err)
		}
		if issued.Token == "" {
			t.Fatal("expected a token")
		}
		if d := time.Until(issued.ExpiresAt); d < 119*time.Minute || d > 121*time.Minute {
			t.Errorf("expected expiry about 2h out, got %v", d)
		}

		output.Reset()
		if err := run(t, runner, "token", "inspect", "--config", configPath, issued.Token); err != nil {
			t.Fatalf("token inspect failed: %v", err)
		}

		var inspected inspectedToken
		if err := json.Unmarshal(output.Bytes(), &inspected); err != nil {
			t.Fatalf("invalid JSON output %q: %v", output.String(), err)
		}
		if inspected.UserID != 7 || inspected.SpotifyID != "U7" || inspected.Email != "u7@x.com" {
			t.Errorf("unexpected claims: %+v", inspected)
		}
		if inspected.TokenID == "" {
			t.Error("expected a token id")
		}
	})

	t.Run("inspect rejects garbage", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := newTestRunner(output)

		if err := run(t, runner, "token", "inspect", "--config", configPath, "not.a.token"); err == nil {
			t.Error("expected verification error")
		}
		if !strings.Contains(output.String(), "Invalid token") {
			t.Errorf("expected failure line, got %q", output.String())
		}
	})

	t.Run("inspect requires a token", func(t *testing.T) {
		runner := newTestRunner(&bytes.Buffer{})

		err := run(t, runner, "token", "inspect", "--config", configPath)
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("issue without secret", func(t *testing.T) {
		runner := newTestRunner(&bytes.Buffer{})
		empty := filepath.Join(t.TempDir(), "absent.toml")

		err := run(t, runner, "token", "issue", "--config", empty, "--user-id", "1", "--spotify-id", "U1")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestDataCommands(t *testing.T) {
	configPath, dbPath := writeTestConfig(t)

	db, err := shared.NewDatabase(shared.DriverSQLite, dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := shared.RunMigrations(context.Background(), db, shared.DriverSQLite); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	s := store.New(db, shared.DriverSQLite)
	ctx := context.Background()
	user := models.NewUser("U1", "Alice", "a@x.com", "")
	if err := repositories.NewUserRepository(s).Create(ctx, user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if err := repositories.NewUserRepository(s).SetAccessToken(ctx, user.ID(), "SECRET-AT"); err != nil {
		t.Fatalf("failed to cache token: %v", err)
	}
	favorites := repositories.NewFavoriteRepository(s)
	for _, id := range []string{"t1", "t2"} {
		if err := favorites.Add(ctx, models.NewFavorite("U1", models.ItemTrack, id, "Song "+id, "Artist")); err != nil {
			t.Fatalf("failed to add favorite: %v", err)
		}
	}

	t.Run("users list", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := newTestRunner(output)

		if err := run(t, runner, "users", "list", "--config", configPath); err != nil {
			t.Fatalf("users list failed: %v", err)
		}
		if !strings.Contains(output.String(), "Alice") || !strings.Contains(output.String(), "U1") {
			t.Errorf("expected user row, got %q", output.String())
		}
		if strings.Contains(output.String(), "SECRET-AT") {
			t.Error("cached access token must not be printed")
		}
	})

	t.Run("users list json", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := newTestRunner(output)

		if err := run(t, runner, "users", "list", "--config", configPath, "--json", "--pretty=false"); err != nil {
			t.Fatalf("users list failed: %v", err)
		}

		var rows []userRow
		if err := json.Unmarshal(output.Bytes(), &rows); err != nil {
			t.Fatalf("invalid JSON output %q: %v", output.String(), err)
		}
		if len(rows) != 1 || rows[0].SpotifyID != "U1" {
			t.Errorf("unexpected rows: %+v", rows)
		}
		if strings.Contains(output.String(), "SECRET-AT") {
			t.Error("cached access token must not be printed")
		}
	})

	t.Run("favorites export to stdout", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := newTestRunner(output)

		err := run(t, runner, "favorites", "export", "--config", configPath, "--spotify-id", "U1", "--format", "text", "--output", "-")
		if err != nil {
			t.Fatalf("favorites export failed: %v", err)
		}
		if !strings.Contains(output.String(), "Items: 2") {
			t.Errorf("expected text export, got %q", output.String())
		}
	})

	t.Run("favorites export to file", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := newTestRunner(output)
		path := filepath.Join(t.TempDir(), "favs.csv")

		err := run(t, runner, "favorites", "export", "--config", configPath, "--spotify-id", "U1", "-o", path)
		if err != nil {
			t.Fatalf("favorites export failed: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("expected export file: %v", err)
		}
		if !strings.Contains(string(data), "t1,Song t1,Artist") {
			t.Errorf("unexpected CSV: %s", data)
		}
		if !strings.Contains(output.String(), "2 favorites") {
			t.Errorf("expected summary line, got %q", output.String())
		}
	})

	t.Run("favorites export unknown user", func(t *testing.T) {
		runner := newTestRunner(&bytes.Buffer{})

		err := run(t, runner, "favorites", "export", "--config", configPath, "--spotify-id", "nobody", "--output", "-")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("favorites export unknown type", func(t *testing.T) {
		runner := newTestRunner(&bytes.Buffer{})

		err := run(t, runner, "favorites", "export", "--config", configPath, "--spotify-id", "U1", "--type", "album")
		if err == nil {
			t.Error("expected error for unknown item type")
		}
	})
}

func TestServeValidatesConfig(t *testing.T) {
	runner := newTestRunner(&bytes.Buffer{})
	configPath, _ := writeTestConfig(t)

	err := run(t, runner, "serve", "--config", configPath)
	if !errors.Is(err, shared.ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}
