package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/playr/internal/shared"
)

// User is an end-user linked to one Spotify account.
type User struct {
	id           int64
	spotifyID    string
	displayName  string
	email        string
	profileImage string
	accessToken  string
	createdAt    time.Time
}

// NewUser creates an unsaved [User]. Email and profileImage may be empty when Spotify withholds them.
func NewUser(spotifyID, displayName, email, profileImage string) *User {
	return &User{
		spotifyID:    spotifyID,
		displayName:  displayName,
		email:        email,
		profileImage: profileImage,
		createdAt:    time.Now(),
	}
}

func (u *User) ID() int64            { return u.id }
func (u *User) SpotifyID() string    { return u.spotifyID }
func (u *User) DisplayName() string  { return u.displayName }
func (u *User) Email() string        { return u.email }
func (u *User) ProfileImage() string { return u.profileImage }
func (u *User) AccessToken() string  { return u.accessToken }
func (u *User) CreatedAt() time.Time { return u.createdAt }

// SetID assigns the store-generated id. Once assigned it cannot be changed.
func (u *User) SetID(id int64) error {
	if u.id != 0 && u.id != id {
		return fmt.Errorf("%w: user id is immutable (have %d, got %d)", shared.ErrInvalidArgument, u.id, id)
	}
	u.id = id
	return nil
}

// SetAccessToken caches the upstream access token on the user.
func (u *User) SetAccessToken(token string) {
	u.accessToken = token
}

// SetCreatedAt restores the creation time of a persisted user.
func (u *User) SetCreatedAt(t time.Time) {
	if !t.IsZero() {
		u.createdAt = t
	}
}

// Validate checks that the Spotify id is present.
func (u *User) Validate() error {
	if u.spotifyID == "" {
		return fmt.Errorf("%w: spotify id is required", shared.ErrInvalidInput)
	}
	return nil
}
