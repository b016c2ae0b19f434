package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/playr/internal/models"
	"github.com/desertthunder/playr/internal/shared"
	"github.com/desertthunder/playr/internal/store"
)

const playlistsTable = "playlists"

// PlaylistRepository persists [models.Playlist] rows in the playlists table.
type PlaylistRepository struct {
	store *store.Store
}

// NewPlaylistRepository creates a new [PlaylistRepository] over the given store
func NewPlaylistRepository(s *store.Store) *PlaylistRepository {
	return &PlaylistRepository{store: s}
}

// Create inserts a playlist and assigns the generated id.
func (r *PlaylistRepository) Create(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id, err := r.store.Insert(ctx, playlistsTable, store.Fields{
		"user_id":     nullable(playlist.UserID()),
		"name":        playlist.Name(),
		"description": nullable(playlist.Description()),
		"spotify_id":  playlist.SpotifyID(),
		"created_at":  playlist.CreatedAt().UTC(),
		"updated_at":  playlist.UpdatedAt().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	playlist.SetID(id)
	return nil
}

// Get retrieves a playlist by internal id. Returns [shared.ErrNotFound] when absent.
func (r *PlaylistRepository) Get(ctx context.Context, id int64) (*models.Playlist, error) {
	rec, err := r.store.FindOne(ctx, playlistsTable, store.Predicate{"id": id})
	if err != nil {
		return nil, err
	}
	return playlistFromRecord(rec), nil
}

// List retrieves playlists ordered by id. A non-empty userSpotifyID keeps only that user's playlists.
func (r *PlaylistRepository) List(ctx context.Context, userSpotifyID string) ([]*models.Playlist, error) {
	var where store.Predicate
	if userSpotifyID != "" {
		where = store.Predicate{"user_id": userSpotifyID}
	}

	recs, err := r.store.FindAll(ctx, playlistsTable, where, "id")
	if err != nil {
		return nil, err
	}

	playlists := make([]*models.Playlist, 0, len(recs))
	for _, rec := range recs {
		playlists = append(playlists, playlistFromRecord(rec))
	}
	return playlists, nil
}

// Update writes the name, description and update time of a persisted playlist.
func (r *PlaylistRepository) Update(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	n, err := r.store.Update(ctx, playlistsTable, store.Fields{
		"name":        playlist.Name(),
		"description": nullable(playlist.Description()),
		"updated_at":  playlist.UpdatedAt().UTC(),
	}, store.Predicate{"id": playlist.ID()})
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: playlist %d", shared.ErrNotFound, playlist.ID())
	}
	return nil
}

// Delete removes a playlist. Returns [shared.ErrNotFound] when nothing matched.
func (r *PlaylistRepository) Delete(ctx context.Context, id int64) error {
	n, err := r.store.Delete(ctx, playlistsTable, store.Predicate{"id": id})
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: playlist %d", shared.ErrNotFound, id)
	}
	return nil
}

func playlistFromRecord(rec store.Record) *models.Playlist {
	p := models.NewPlaylist(
		rec.String("user_id"),
		rec.String("name"),
		rec.String("description"),
		rec.String("spotify_id"),
	)
	p.SetID(rec.Int64("id"))
	p.SetTimestamps(rec.Time("created_at"), rec.Time("updated_at"))
	return p
}
