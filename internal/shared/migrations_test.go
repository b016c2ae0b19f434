package shared

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	ctx := context.Background()

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(DriverSQLite, ":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		applied, err := RunMigrations(ctx, db, DriverSQLite)
		if err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		if len(applied) == 0 {
			t.Fatal("expected at least one migration to be applied")
		}

		for i := 1; i < len(applied); i++ {
			if applied[i].Version <= applied[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", applied[i].Version, applied[i-1].Version)
			}
		}

		version, err := MigrationVersion(ctx, db, DriverSQLite)
		if err != nil {
			t.Fatalf("failed to get version: %v", err)
		}
		if version != applied[len(applied)-1].Version {
			t.Errorf("expected version %d, got %d", applied[len(applied)-1].Version, version)
		}

		for _, table := range []string{"users", "favorites", "playlists", "lyrics"} {
			var name string
			err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
			if err != nil {
				t.Errorf("expected table %s to exist: %v", table, err)
			}
		}

		again, err := RunMigrations(ctx, db, DriverSQLite)
		if err != nil {
			t.Fatalf("re-running migrations should be a no-op: %v", err)
		}
		if len(again) != 0 {
			t.Errorf("expected no migrations on second run, got %d", len(again))
		}

		rolled, err := RollbackMigration(ctx, db, DriverSQLite)
		if err != nil {
			t.Fatalf("failed to rollback: %v", err)
		}
		if rolled.Version != version {
			t.Errorf("expected rollback of version %d, got %d", version, rolled.Version)
		}

		var name string
		err = db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'lyrics'").Scan(&name)
		if err == nil {
			t.Error("expected lyrics table to be dropped after rollback")
		}
		err = db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'playlists'").Scan(&name)
		if err != nil {
			t.Errorf("expected playlists table to survive a single rollback: %v", err)
		}
	})

	t.Run("Users Spotify ID Is Unique", func(t *testing.T) {
		db, err := NewDatabase(DriverSQLite, filepath.Join(t.TempDir(), "unique.db"))
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if _, err := RunMigrations(ctx, db, DriverSQLite); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		if _, err := db.Exec("INSERT INTO users (spotify_id) VALUES (?)", "U1"); err != nil {
			t.Fatalf("first insert failed: %v", err)
		}
		if _, err := db.Exec("INSERT INTO users (spotify_id) VALUES (?)", "U1"); err == nil {
			t.Error("expected duplicate spotify_id insert to fail")
		}
	})

	t.Run("Unsupported Driver", func(t *testing.T) {
		db, err := NewDatabase(DriverSQLite, ":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if _, err := RunMigrations(ctx, db, "mysql"); err == nil {
			t.Error("expected error for unsupported driver")
		}
	})
}
