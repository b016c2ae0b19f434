package services

import (
	"context"
	"encoding/json"

	"golang.org/x/oauth2"
)

// OAuthService is the upstream OAuth client used by the login, callback and refresh routes.
type OAuthService interface {
	// AuthURL returns the provider consent URL carrying state.
	AuthURL(state string) string

	// Exchange trades an authorization code for a token pair.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// Refresh trades a refresh token for a new access token.
	Refresh(ctx context.Context, refreshToken string) (*RefreshedToken, error)

	// UserProfile reads the profile of the account that owns accessToken.
	UserProfile(ctx context.Context, accessToken string) (*SpotifyUser, error)
}

// CatalogService forwards Web API reads made on behalf of a user.
type CatalogService interface {
	Search(ctx context.Context, accessToken string, params SearchParams) (json.RawMessage, error)
	RecentlyPlayed(ctx context.Context, accessToken string, limit int) (json.RawMessage, error)
	TopItems(ctx context.Context, accessToken, kind, timeRange string, limit int) (json.RawMessage, error)
}

// PlaylistService writes playlists on behalf of a user.
type PlaylistService interface {
	CreatePlaylist(ctx context.Context, accessToken, userID string, details PlaylistDetails) (*SpotifyPlaylist, error)
	UpdatePlaylist(ctx context.Context, accessToken, playlistID string, details PlaylistDetails) error
	UnfollowPlaylist(ctx context.Context, accessToken, playlistID string) error
}

// LyricsService looks up the lyrics of a track.
type LyricsService interface {
	Lyrics(ctx context.Context, trackName, artistName string) (string, error)
}

// RefreshedToken is the result of a refresh-token grant.
type RefreshedToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// SearchParams are the query parameters forwarded to the search endpoint.
type SearchParams struct {
	Query string
	Type  string
	Limit int
}

// PlaylistDetails is the body of playlist create and update calls.
type PlaylistDetails struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      *bool  `json:"public,omitempty"`
}

// SpotifyPlaylist is the subset of a playlist object returned on creation.
type SpotifyPlaylist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
	Owner       struct {
		ID string `json:"id"`
	} `json:"owner"`
}
