package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/playr/internal/shared"
)

// Lyrics caches the text found for one track and artist name pair.
type Lyrics struct {
	id         int64
	trackName  string
	artistName string
	text       string
	createdAt  time.Time
}

func NewLyrics(trackName, artistName, text string) *Lyrics {
	return &Lyrics{
		trackName:  trackName,
		artistName: artistName,
		text:       text,
		createdAt:  time.Now(),
	}
}

func (l *Lyrics) ID() int64            { return l.id }
func (l *Lyrics) TrackName() string    { return l.trackName }
func (l *Lyrics) ArtistName() string   { return l.artistName }
func (l *Lyrics) Text() string         { return l.text }
func (l *Lyrics) CreatedAt() time.Time { return l.createdAt }

func (l *Lyrics) SetID(id int64) { l.id = id }

func (l *Lyrics) SetCreatedAt(t time.Time) {
	if !t.IsZero() {
		l.createdAt = t
	}
}

// Validate checks that both lookup names are present.
func (l *Lyrics) Validate() error {
	if l.trackName == "" || l.artistName == "" {
		return fmt.Errorf("%w: track and artist name are required", shared.ErrInvalidInput)
	}
	return nil
}
