package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/playr/internal/models"
	"github.com/desertthunder/playr/internal/shared"
	"github.com/desertthunder/playr/internal/store"
)

const lyricsTable = "lyrics"

// LyricsRepository caches [models.Lyrics] rows keyed by track and artist name.
type LyricsRepository struct {
	store *store.Store
}

// NewLyricsRepository creates a new [LyricsRepository] over the given store
func NewLyricsRepository(s *store.Store) *LyricsRepository {
	return &LyricsRepository{store: s}
}

// Find returns the cached lyrics for the pair. Returns [shared.ErrNotFound] on a cache miss.
func (r *LyricsRepository) Find(ctx context.Context, trackName, artistName string) (*models.Lyrics, error) {
	rec, err := r.store.FindOne(ctx, lyricsTable, store.Predicate{
		"track_name":  trackName,
		"artist_name": artistName,
	})
	if err != nil {
		return nil, err
	}

	l := models.NewLyrics(rec.String("track_name"), rec.String("artist_name"), rec.String("lyrics"))
	l.SetID(rec.Int64("id"))
	l.SetCreatedAt(rec.Time("created_at"))
	return l, nil
}

// Save caches lyrics. A pair cached concurrently by another request is not an error.
func (r *LyricsRepository) Save(ctx context.Context, lyrics *models.Lyrics) error {
	if err := lyrics.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id, err := r.store.Insert(ctx, lyricsTable, store.Fields{
		"track_name":  lyrics.TrackName(),
		"artist_name": lyrics.ArtistName(),
		"lyrics":      lyrics.Text(),
		"created_at":  lyrics.CreatedAt().UTC(),
	})
	if errors.Is(err, shared.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to cache lyrics: %w", err)
	}

	lyrics.SetID(id)
	return nil
}
