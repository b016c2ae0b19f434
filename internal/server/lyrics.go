package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playr/internal/models"
	"github.com/desertthunder/playr/internal/repositories"
	"github.com/desertthunder/playr/internal/services"
	"github.com/desertthunder/playr/internal/shared"
	"golang.org/x/sync/singleflight"
)

// LyricsHandler serves lyrics from the local cache, falling back to the lyrics API on a miss.
type LyricsHandler struct {
	cache   *repositories.LyricsRepository
	lyrics  services.LyricsService
	authn   *Authenticator
	logger  *log.Logger
	lookups singleflight.Group
}

// NewLyricsHandler creates a [LyricsHandler]. lyrics may be nil, in which case only cached lyrics are served.
func NewLyricsHandler(cache *repositories.LyricsRepository, lyrics services.LyricsService, authn *Authenticator, logger *log.Logger) *LyricsHandler {
	return &LyricsHandler{cache: cache, lyrics: lyrics, authn: authn, logger: logger}
}

func (h *LyricsHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/api/lyrics", Handler: h.Get, Middleware: []Middleware{h.authn.RequireAuth}},
	}
}

func (h *LyricsHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	track, artist := q.Get("trackName"), q.Get("artistName")
	if track == "" || artist == "" {
		writeMessage(w, http.StatusBadRequest, "Track name and artist name are required.")
		return
	}

	text, err := h.find(r.Context(), track, artist)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"lyrics": text})
	case errors.Is(err, shared.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Lyrics not found.")
	case errors.Is(err, shared.ErrNotImplemented):
		writeMessage(w, http.StatusServiceUnavailable, "Lyrics lookup is not configured.")
	default:
		h.logger.Error("failed to fetch lyrics", "track", track, "artist", artist, "err", err)
		writeMessage(w, http.StatusInternalServerError, "Error fetching lyrics")
	}
}

// find is cache first. Concurrent misses for the same pair share one upstream lookup.
func (h *LyricsHandler) find(ctx context.Context, track, artist string) (string, error) {
	cached, err := h.cache.Find(ctx, track, artist)
	if err == nil {
		return cached.Text(), nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return "", err
	}
	if h.lyrics == nil {
		return "", shared.ErrNotImplemented
	}

	v, err, _ := h.lookups.Do(track+"\x00"+artist, func() (any, error) {
		ctx := context.WithoutCancel(ctx)

		text, err := h.lyrics.Lyrics(ctx, track, artist)
		if err != nil {
			return "", err
		}
		if err := h.cache.Save(ctx, models.NewLyrics(track, artist, text)); err != nil {
			h.logger.Warn("failed to cache lyrics", "track", track, "artist", artist, "err", err)
		}
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
