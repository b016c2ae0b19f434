package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/playr/internal/shared"
)

// Playlist is a local record of a playlist created on Spotify through this backend.
type Playlist struct {
	id          int64
	userID      string
	name        string
	description string
	spotifyID   string
	createdAt   time.Time
	updatedAt   time.Time
}

// NewPlaylist creates an unsaved [Playlist] for the Spotify playlist spotifyID owned by userSpotifyID.
func NewPlaylist(userSpotifyID, name, description, spotifyID string) *Playlist {
	now := time.Now()
	return &Playlist{
		userID:      userSpotifyID,
		name:        name,
		description: description,
		spotifyID:   spotifyID,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (p *Playlist) ID() int64            { return p.id }
func (p *Playlist) UserID() string       { return p.userID }
func (p *Playlist) Name() string         { return p.name }
func (p *Playlist) Description() string  { return p.description }
func (p *Playlist) SpotifyID() string    { return p.spotifyID }
func (p *Playlist) CreatedAt() time.Time { return p.createdAt }
func (p *Playlist) UpdatedAt() time.Time { return p.updatedAt }

func (p *Playlist) SetID(id int64) { p.id = id }

// Rename replaces the name and description and bumps the update time.
func (p *Playlist) Rename(name, description string) {
	p.name = name
	p.description = description
	p.updatedAt = time.Now()
}

// SetTimestamps restores the times of a persisted playlist. Zero values are ignored.
func (p *Playlist) SetTimestamps(created, updated time.Time) {
	if !created.IsZero() {
		p.createdAt = created
	}
	if !updated.IsZero() {
		p.updatedAt = updated
	}
}

// Validate checks the name and the Spotify playlist id.
func (p *Playlist) Validate() error {
	if p.name == "" {
		return fmt.Errorf("%w: playlist name is required", shared.ErrInvalidInput)
	}
	if p.spotifyID == "" {
		return fmt.Errorf("%w: spotify playlist id is required", shared.ErrInvalidInput)
	}
	return nil
}
