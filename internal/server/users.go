package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playr/internal/models"
	"github.com/desertthunder/playr/internal/repositories"
	"github.com/desertthunder/playr/internal/shared"
	"github.com/go-chi/chi/v5"
)

// UserHandler serves read-only user lookups.
type UserHandler struct {
	users  *repositories.UserRepository
	authn  *Authenticator
	logger *log.Logger
}

func NewUserHandler(users *repositories.UserRepository, authn *Authenticator, logger *log.Logger) *UserHandler {
	return &UserHandler{users: users, authn: authn, logger: logger}
}

func (h *UserHandler) Routes() []Route {
	protected := []Middleware{h.authn.RequireAuth}
	return []Route{
		{Method: http.MethodGet, Path: "/auth/users", Handler: h.List, Middleware: protected},
		{Method: http.MethodGet, Path: "/auth/users/{spotify_id}", Handler: h.Get, Middleware: protected},
	}
}

// userJSON is the public view of a user. The cached upstream token is never exposed.
type userJSON struct {
	ID           int64     `json:"id"`
	SpotifyID    string    `json:"spotify_id"`
	DisplayName  string    `json:"display_name"`
	Email        *string   `json:"email"`
	ProfileImage *string   `json:"profile_image"`
	CreatedAt    time.Time `json:"created_at"`
}

func toUserJSON(u *models.User) userJSON {
	return userJSON{
		ID:           u.ID(),
		SpotifyID:    u.SpotifyID(),
		DisplayName:  u.DisplayName(),
		Email:        optional(u.Email()),
		ProfileImage: optional(u.ProfileImage()),
		CreatedAt:    u.CreatedAt(),
	}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list users", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Error fetching users")
		return
	}

	out := make([]userJSON, 0, len(users))
	for _, u := range users {
		out = append(out, toUserJSON(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetBySpotifyID(r.Context(), chi.URLParam(r, "spotify_id"))
	if errors.Is(err, shared.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to fetch user", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Error fetching user")
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(user))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
