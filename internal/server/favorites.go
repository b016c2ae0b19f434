package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playr/internal/auth"
	"github.com/desertthunder/playr/internal/models"
	"github.com/desertthunder/playr/internal/repositories"
	"github.com/desertthunder/playr/internal/shared"
	"github.com/go-chi/chi/v5"
)

// FavoriteHandler serves the caller's favorites.
type FavoriteHandler struct {
	favorites *repositories.FavoriteRepository
	authn     *Authenticator
	logger    *log.Logger
}

func NewFavoriteHandler(favorites *repositories.FavoriteRepository, authn *Authenticator, logger *log.Logger) *FavoriteHandler {
	return &FavoriteHandler{favorites: favorites, authn: authn, logger: logger}
}

func (h *FavoriteHandler) Routes() []Route {
	protected := []Middleware{h.authn.RequireAuth}
	return []Route{
		{Method: http.MethodPost, Path: "/api/favorites", Handler: h.Add, Middleware: protected},
		{Method: http.MethodGet, Path: "/api/favorites/track/{trackId}", Handler: h.IsFavorite, Middleware: protected},
		{Method: http.MethodDelete, Path: "/api/favorites/track/{trackId}", Handler: h.RemoveTrack, Middleware: protected},
		{Method: http.MethodGet, Path: "/api/favorites/{itemType}", Handler: h.List, Middleware: protected},
	}
}

type favoriteRequest struct {
	ItemType   string `json:"itemType"`
	ItemID     string `json:"itemId"`
	ItemName   string `json:"itemName"`
	ItemArtist string `json:"itemArtist"`
}

type favoriteJSON struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	ItemType   string    `json:"item_type"`
	ItemID     string    `json:"item_id"`
	ItemName   string    `json:"item_name"`
	ItemArtist string    `json:"item_artist"`
	CreatedAt  time.Time `json:"created_at"`
}

func (h *FavoriteHandler) Add(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	var req favoriteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeMessage(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.ItemType == "" || req.ItemID == "" {
		writeMessage(w, http.StatusBadRequest, "Item type and item ID are required.")
		return
	}

	fav := models.NewFavorite(id.SpotifyID, req.ItemType, req.ItemID, req.ItemName, req.ItemArtist)
	err := h.favorites.Add(r.Context(), fav)
	switch {
	case err == nil:
		writeMessage(w, http.StatusCreated, "Favorite added successfully")
	case errors.Is(err, shared.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, "Unknown item type.")
	case errors.Is(err, shared.ErrAlreadyExists):
		writeMessage(w, http.StatusConflict, "Favorite already exists.")
	default:
		h.logger.Error("failed to add favorite", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Error adding favorite")
	}
}

func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	itemType := chi.URLParam(r, "itemType")
	if !models.ValidItemType(itemType) {
		writeMessage(w, http.StatusBadRequest, "Unknown item type.")
		return
	}

	favorites, err := h.favorites.ListByType(r.Context(), id.SpotifyID, itemType)
	if err != nil {
		h.logger.Error("failed to list favorites", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Error fetching favorites")
		return
	}

	out := make([]favoriteJSON, 0, len(favorites))
	for _, f := range favorites {
		out = append(out, favoriteJSON{
			ID:         f.ID(),
			UserID:     f.UserID(),
			ItemType:   f.ItemType(),
			ItemID:     f.ItemID(),
			ItemName:   f.ItemName(),
			ItemArtist: f.ItemArtist(),
			CreatedAt:  f.CreatedAt(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *FavoriteHandler) IsFavorite(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	ok, err := h.favorites.Exists(r.Context(), id.SpotifyID, models.ItemTrack, chi.URLParam(r, "trackId"))
	if err != nil {
		h.logger.Error("failed to check favorite", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Error checking favorite status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isFavorite": ok})
}

func (h *FavoriteHandler) RemoveTrack(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	err := h.favorites.Remove(r.Context(), id.SpotifyID, models.ItemTrack, chi.URLParam(r, "trackId"))
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, "Track removed from favorites.")
	case errors.Is(err, shared.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Favorite not found.")
	default:
		h.logger.Error("failed to remove favorite", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to delete favorite.")
	}
}
