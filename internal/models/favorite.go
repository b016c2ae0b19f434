package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/playr/internal/shared"
)

// Favorite item types.
const (
	ItemTrack    = "track"
	ItemPlaylist = "playlist"
	ItemLyrics   = "lyrics"
)

// Favorite is an item a user marked as favorite. It is owned by the user's Spotify id.
type Favorite struct {
	id         int64
	userID     string
	itemType   string
	itemID     string
	itemName   string
	itemArtist string
	createdAt  time.Time
}

// NewFavorite creates an unsaved [Favorite] for the user with the given Spotify id.
func NewFavorite(userSpotifyID, itemType, itemID, itemName, itemArtist string) *Favorite {
	return &Favorite{
		userID:     userSpotifyID,
		itemType:   itemType,
		itemID:     itemID,
		itemName:   itemName,
		itemArtist: itemArtist,
		createdAt:  time.Now(),
	}
}

func (f *Favorite) ID() int64            { return f.id }
func (f *Favorite) UserID() string       { return f.userID }
func (f *Favorite) ItemType() string     { return f.itemType }
func (f *Favorite) ItemID() string       { return f.itemID }
func (f *Favorite) ItemName() string     { return f.itemName }
func (f *Favorite) ItemArtist() string   { return f.itemArtist }
func (f *Favorite) CreatedAt() time.Time { return f.createdAt }

func (f *Favorite) SetID(id int64) { f.id = id }

// SetCreatedAt restores the creation time of a persisted favorite.
func (f *Favorite) SetCreatedAt(t time.Time) {
	if !t.IsZero() {
		f.createdAt = t
	}
}

// ValidItemType reports whether t is one of track, playlist or lyrics.
func ValidItemType(t string) bool {
	switch t {
	case ItemTrack, ItemPlaylist, ItemLyrics:
		return true
	}
	return false
}

// Validate checks the owner, item type and item id.
func (f *Favorite) Validate() error {
	if f.userID == "" {
		return fmt.Errorf("%w: user id is required", shared.ErrInvalidInput)
	}
	if !ValidItemType(f.itemType) {
		return fmt.Errorf("%w: unknown item type %q", shared.ErrInvalidInput, f.itemType)
	}
	if f.itemID == "" {
		return fmt.Errorf("%w: item id is required", shared.ErrInvalidInput)
	}
	return nil
}
