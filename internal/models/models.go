// package models defines the data model for the playr backend
package models

import (
	"time"
)

// Model defines the base interface for all persistent models.
// Implementations include User, Favorite, Playlist and Lyrics.
type Model interface {
	ID() int64            // ID returns the store-generated identifier, 0 until persisted
	CreatedAt() time.Time // CreatedAt returns when this model was created
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}
