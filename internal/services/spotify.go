// Spotify accounts service and Web API client
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/playr/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// SpotifyUser represents a Spotify user profile. Email is only present with the user-read-email scope.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// ProfileImage returns the first image URL, or "" when the profile has none.
func (u *SpotifyUser) ProfileImage() string {
	if len(u.Images) == 0 {
		return ""
	}
	return u.Images[0].URL
}

// APIError is a failed answer from an upstream API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream API error: status %d", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return shared.ErrAPIRequest
}

// SpotifyService implements [OAuthService] and [CatalogService] against Spotify.
type SpotifyService struct {
	config     *oauth2.Config
	apiURL     string
	httpClient *http.Client
	now        func() time.Time
}

// NewSpotifyService creates a new Spotify service from the configured credentials and endpoints.
//
// client may be nil, in which case an [http.Client] bounded by cfg.Timeout is used.
func NewSpotifyService(cfg shared.SpotifyConfig, client *http.Client) (*SpotifyService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("%w: missing redirect_uri", shared.ErrMissingCredentials)
	}

	authURL := orDefault(cfg.AuthURL, spotifyAuthURL)
	tokenURL := orDefault(cfg.TokenURL, spotifyTokenURL)
	apiURL := strings.TrimSuffix(orDefault(cfg.APIURL, spotifyBaseURL), "/")

	if client == nil {
		timeout := cfg.Timeout.Duration
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	return &SpotifyService{
		config:     config,
		apiURL:     apiURL,
		httpClient: client,
		now:        time.Now,
	}, nil
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for an access and refresh token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, shared.ErrMissingCode
	}

	token, err := s.config.Exchange(s.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenExchange, err)
	}
	return token, nil
}

// Refresh requests a new access token. A 4xx from the token endpoint means the refresh token was rejected.
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (*RefreshedToken, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	src := s.config.TokenSource(s.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil &&
			rerr.Response.StatusCode >= 400 && rerr.Response.StatusCode < 500 {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidRefreshToken, err)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	return &RefreshedToken{
		AccessToken: token.AccessToken,
		ExpiresIn:   expiresIn(token, s.now()),
	}, nil
}

// UserProfile retrieves the profile of the account that owns accessToken.
func (s *SpotifyService) UserProfile(ctx context.Context, accessToken string) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, accessToken, "/me", nil, nil, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: profile has no id", shared.ErrAPIRequest)
	}
	return &user, nil
}

// Search forwards a catalog search and returns the upstream body unchanged.
func (s *SpotifyService) Search(ctx context.Context, accessToken string, params SearchParams) (json.RawMessage, error) {
	if params.Query == "" {
		return nil, fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	q := url.Values{}
	q.Set("q", params.Query)
	q.Set("type", orDefault(params.Type, "track,artist,album"))
	q.Set("limit", strconv.Itoa(clampLimit(params.Limit, 10)))

	var body json.RawMessage
	if err := s.doRequest(ctx, http.MethodGet, accessToken, "/search", q, nil, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// RecentlyPlayed returns the items of the user's recently played tracks.
func (s *SpotifyService) RecentlyPlayed(ctx context.Context, accessToken string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(clampLimit(limit, 20)))

	var page struct {
		Items json.RawMessage `json:"items"`
	}
	if err := s.doRequest(ctx, http.MethodGet, accessToken, "/me/player/recently-played", q, nil, &page); err != nil {
		return nil, err
	}
	return emptyArray(page.Items), nil
}

// TopItems returns the items of the user's top tracks or artists. kind is "tracks" or "artists".
func (s *SpotifyService) TopItems(ctx context.Context, accessToken, kind, timeRange string, limit int) (json.RawMessage, error) {
	switch kind {
	case "tracks", "artists":
	default:
		return nil, fmt.Errorf("%w: top item kind %q", shared.ErrInvalidArgument, kind)
	}

	q := url.Values{}
	q.Set("time_range", orDefault(timeRange, "medium_term"))
	q.Set("limit", strconv.Itoa(clampLimit(limit, 20)))

	var page struct {
		Items json.RawMessage `json:"items"`
	}
	if err := s.doRequest(ctx, http.MethodGet, accessToken, "/me/top/"+kind, q, nil, &page); err != nil {
		return nil, err
	}
	return emptyArray(page.Items), nil
}

// CreatePlaylist creates a playlist owned by the Spotify account userID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, accessToken, userID string, details PlaylistDetails) (*SpotifyPlaylist, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: playlist owner", shared.ErrMissingArgument)
	}
	if details.Name == "" {
		return nil, fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	var playlist SpotifyPlaylist
	endpoint := "/users/" + url.PathEscape(userID) + "/playlists"
	if err := s.doRequest(ctx, http.MethodPost, accessToken, endpoint, nil, details, &playlist); err != nil {
		return nil, err
	}
	if playlist.ID == "" {
		return nil, fmt.Errorf("%w: created playlist has no id", shared.ErrAPIRequest)
	}
	return &playlist, nil
}

// UpdatePlaylist changes the name and description of a playlist.
func (s *SpotifyService) UpdatePlaylist(ctx context.Context, accessToken, playlistID string, details PlaylistDetails) error {
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	return s.doRequest(ctx, http.MethodPut, accessToken, "/playlists/"+url.PathEscape(playlistID), nil, details, nil)
}

// UnfollowPlaylist removes a playlist from the user's library. The Web API has no hard delete;
// unfollowing a playlist you own is how it is deleted.
func (s *SpotifyService) UnfollowPlaylist(ctx context.Context, accessToken, playlistID string) error {
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	return s.doRequest(ctx, http.MethodDelete, accessToken, "/playlists/"+url.PathEscape(playlistID)+"/followers", nil, nil, nil)
}

// doRequest performs an authenticated request against the Web API.
//
// A non-nil body is sent as JSON. A non-nil result is decoded from the JSON answer; empty answers
// (201/204 without content) leave it untouched.
func (s *SpotifyService) doRequest(ctx context.Context, method, accessToken, endpoint string, query url.Values, body, result any) error {
	if accessToken == "" {
		return shared.ErrNotAuthenticated
	}

	apiURL := s.apiURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: string(msg)}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// clientContext carries the bounded client into the oauth2 package.
func (s *SpotifyService) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// expiresIn prefers the raw expires_in field of the token response and falls back to the parsed expiry.
func expiresIn(token *oauth2.Token, now time.Time) int64 {
	switch v := token.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}

	if token.Expiry.IsZero() {
		return 0
	}
	return int64(token.Expiry.Sub(now).Round(time.Second) / time.Second)
}

func clampLimit(limit, fallback int) int {
	switch {
	case limit <= 0:
		return fallback
	case limit > 50:
		return 50
	default:
		return limit
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func emptyArray(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage("[]")
	}
	return raw
}
