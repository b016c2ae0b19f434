package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playr/internal/auth"
	"github.com/desertthunder/playr/internal/models"
	"github.com/desertthunder/playr/internal/repositories"
	"github.com/desertthunder/playr/internal/services"
	"github.com/desertthunder/playr/internal/shared"
	"github.com/go-chi/chi/v5"
)

// PlaylistHandler creates, renames and deletes playlists on Spotify and mirrors them locally.
//
// Writes are made with the caller's upstream access token, resolved like the catalog passthroughs.
// Renaming or deleting a playlist recorded with an owner requires the caller to be that owner.
type PlaylistHandler struct {
	playlists *repositories.PlaylistRepository
	spotify   services.PlaylistService
	profiles  services.OAuthService
	upstream  upstreamAuth
	logger    *log.Logger
}

// NewPlaylistHandler creates a [PlaylistHandler]. swap enables trading session tokens for cached upstream tokens.
func NewPlaylistHandler(playlists *repositories.PlaylistRepository, spotify services.PlaylistService, profiles services.OAuthService, authn *Authenticator, swap bool, logger *log.Logger) *PlaylistHandler {
	return &PlaylistHandler{
		playlists: playlists,
		spotify:   spotify,
		profiles:  profiles,
		upstream:  upstreamAuth{authn: authn, swap: swap},
		logger:    logger,
	}
}

func (h *PlaylistHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/api/playlists", Handler: h.Create},
		{Method: http.MethodGet, Path: "/api/playlists", Handler: h.List},
		{Method: http.MethodPut, Path: "/api/playlists/{id}", Handler: h.Update},
		{Method: http.MethodDelete, Path: "/api/playlists/{id}", Handler: h.Delete},
	}
}

type playlistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	UserID      string `json:"userId"`
}

type playlistJSON struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	SpotifyID   string    `json:"spotify_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toPlaylistJSON(p *models.Playlist) playlistJSON {
	return playlistJSON{
		ID:          p.ID(),
		UserID:      p.UserID(),
		Name:        p.Name(),
		Description: p.Description(),
		SpotifyID:   p.SpotifyID(),
		CreatedAt:   p.CreatedAt(),
		UpdatedAt:   p.UpdatedAt(),
	}
}

// Create makes a private playlist on Spotify, then records it. userId defaults to the caller's account.
func (h *PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePlaylistRequest(w, r)
	if !ok {
		return
	}
	if req.Name == "" {
		writeMessage(w, http.StatusBadRequest, "Playlist name is required.")
		return
	}

	token, identity, ok := h.upstream.token(w, r)
	if !ok {
		return
	}

	owner := req.UserID
	if owner == "" {
		caller, err := h.caller(r.Context(), token, identity)
		if err != nil {
			upstreamFailure(w, h.logger, err, "Error creating playlist")
			return
		}
		owner = caller
	}

	private := false
	created, err := h.spotify.CreatePlaylist(r.Context(), token, owner, services.PlaylistDetails{
		Name:        req.Name,
		Description: req.Description,
		Public:      &private,
	})
	if err != nil {
		upstreamFailure(w, h.logger, err, "Error creating playlist")
		return
	}

	playlist := models.NewPlaylist(owner, req.Name, req.Description, created.ID)
	if err := h.playlists.Create(r.Context(), playlist); err != nil {
		h.logger.Error("playlist created upstream but not recorded", "spotify_id", created.ID, "err", err)
		writeMessage(w, http.StatusInternalServerError, "Error creating playlist")
		return
	}

	h.logger.Info("playlist created", "id", playlist.ID(), "spotify_id", created.ID, "owner", owner)
	writeJSON(w, http.StatusCreated, toPlaylistJSON(playlist))
}

// List returns the recorded playlists, optionally only those of ?userId=.
func (h *PlaylistHandler) List(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.playlists.List(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		h.logger.Error("failed to list playlists", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Error fetching playlists")
		return
	}

	out := make([]playlistJSON, 0, len(playlists))
	for _, p := range playlists {
		out = append(out, toPlaylistJSON(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// Update renames a playlist on Spotify, then locally. An empty name keeps the current one.
func (h *PlaylistHandler) Update(w http.ResponseWriter, r *http.Request) {
	playlist, ok := h.lookup(w, r, "Error updating playlist")
	if !ok {
		return
	}
	req, ok := decodePlaylistRequest(w, r)
	if !ok {
		return
	}
	if req.Name == "" {
		req.Name = playlist.Name()
	}

	token, ok := h.authorize(w, r, playlist, "Error updating playlist")
	if !ok {
		return
	}

	err := h.spotify.UpdatePlaylist(r.Context(), token, playlist.SpotifyID(), services.PlaylistDetails{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		upstreamFailure(w, h.logger, err, "Error updating playlist")
		return
	}

	playlist.Rename(req.Name, req.Description)
	if err := h.playlists.Update(r.Context(), playlist); err != nil {
		h.logger.Error("playlist renamed upstream but not locally", "id", playlist.ID(), "err", err)
		writeMessage(w, http.StatusInternalServerError, "Error updating playlist")
		return
	}
	writeMessage(w, http.StatusOK, "Playlist updated successfully")
}

// Delete unfollows the playlist on Spotify and removes the local record.
func (h *PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	playlist, ok := h.lookup(w, r, "Error deleting playlist")
	if !ok {
		return
	}

	token, ok := h.authorize(w, r, playlist, "Error deleting playlist")
	if !ok {
		return
	}

	if err := h.spotify.UnfollowPlaylist(r.Context(), token, playlist.SpotifyID()); err != nil {
		upstreamFailure(w, h.logger, err, "Error deleting playlist")
		return
	}

	if err := h.playlists.Delete(r.Context(), playlist.ID()); err != nil && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error("playlist unfollowed upstream but not deleted locally", "id", playlist.ID(), "err", err)
		writeMessage(w, http.StatusInternalServerError, "Error deleting playlist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// lookup loads the playlist named by the {id} path parameter.
func (h *PlaylistHandler) lookup(w http.ResponseWriter, r *http.Request, failure string) (*models.Playlist, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusNotFound, "Playlist not found in local database.")
		return nil, false
	}

	playlist, err := h.playlists.Get(r.Context(), id)
	if errors.Is(err, shared.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Playlist not found in local database.")
		return nil, false
	}
	if err != nil {
		h.logger.Error("failed to load playlist", "id", id, "err", err)
		writeMessage(w, http.StatusInternalServerError, failure)
		return nil, false
	}
	return playlist, true
}

// authorize resolves the upstream token and checks that the caller owns playlist.
func (h *PlaylistHandler) authorize(w http.ResponseWriter, r *http.Request, playlist *models.Playlist, failure string) (string, bool) {
	token, identity, ok := h.upstream.token(w, r)
	if !ok {
		return "", false
	}
	if playlist.UserID() == "" {
		return token, true
	}

	caller, err := h.caller(r.Context(), token, identity)
	if err != nil {
		upstreamFailure(w, h.logger, err, failure)
		return "", false
	}
	if caller != playlist.UserID() {
		writeMessage(w, http.StatusForbidden, "Playlist belongs to another user.")
		return "", false
	}
	return token, true
}

// caller returns the Spotify account behind the request: from the session identity when there is
// one, otherwise from the profile of the upstream token.
func (h *PlaylistHandler) caller(ctx context.Context, token string, identity *auth.Identity) (string, error) {
	if identity != nil {
		return identity.SpotifyID, nil
	}
	profile, err := h.profiles.UserProfile(ctx, token)
	if err != nil {
		return "", err
	}
	return profile.ID, nil
}

func decodePlaylistRequest(w http.ResponseWriter, r *http.Request) (playlistRequest, bool) {
	var req playlistRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeMessage(w, http.StatusBadRequest, "Invalid request body.")
		return req, false
	}
	return req, true
}
