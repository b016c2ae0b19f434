package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playr/internal/auth"
	"github.com/desertthunder/playr/internal/services"
	"github.com/desertthunder/playr/internal/shared"
)

// upstreamAuth resolves the Spotify access token a passthrough request is made with.
//
// An opaque bearer token is taken to be the caller's own upstream access token and is forwarded.
// A bearer token shaped like a session token never leaves the server: it goes through the same
// checks as [Authenticator.RequireAuth], including revocation, and is swapped for the access token
// cached on the user row. Without a cached token, or when swapping is disabled, it is refused.
type upstreamAuth struct {
	authn *Authenticator
	swap  bool
}

// token writes the rejection itself and reports false when the request cannot proceed.
func (u upstreamAuth) token(w http.ResponseWriter, r *http.Request) (string, *auth.Identity, bool) {
	token, ok := bearerToken(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Access token is required.")
		return "", nil, false
	}
	if !u.authn.issuer.Recognizes(token) {
		return token, nil, true
	}

	identity, rej := u.authn.Authenticate(r, token)
	if rej != nil {
		writeAuthError(w, rej.Status, rej.Reason)
		return "", nil, false
	}
	if !u.swap || identity.AccessToken == "" {
		writeMessage(w, http.StatusUnauthorized, "Access token is required.")
		return "", nil, false
	}
	return identity.AccessToken, identity, true
}

// CatalogHandler forwards search and listening-history reads to the Web API.
type CatalogHandler struct {
	catalog  services.CatalogService
	upstream upstreamAuth
	logger   *log.Logger
}

// NewCatalogHandler creates a [CatalogHandler]. swap enables trading session tokens for cached upstream tokens.
func NewCatalogHandler(catalog services.CatalogService, authn *Authenticator, swap bool, logger *log.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, upstream: upstreamAuth{authn: authn, swap: swap}, logger: logger}
}

func (h *CatalogHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/api/search", Handler: h.Search},
		{Method: http.MethodGet, Path: "/api/analytics/recently-played", Handler: h.RecentlyPlayed},
		{Method: http.MethodGet, Path: "/api/analytics/top-tracks", Handler: h.topItems("tracks", "Failed to fetch top tracks.")},
		{Method: http.MethodGet, Path: "/api/analytics/top-artists", Handler: h.topItems("artists", "Failed to fetch top artists.")},
	}
}

func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("q") == "" {
		writeMessage(w, http.StatusBadRequest, "Search query is required.")
		return
	}

	token, _, ok := h.upstream.token(w, r)
	if !ok {
		return
	}

	body, err := h.catalog.Search(r.Context(), token, services.SearchParams{
		Query: q.Get("q"),
		Type:  q.Get("type"),
		Limit: atoi(q.Get("limit")),
	})
	if err != nil {
		upstreamFailure(w, h.logger, err, "Error fetching search results.")
		return
	}
	writeRaw(w, http.StatusOK, body)
}

func (h *CatalogHandler) RecentlyPlayed(w http.ResponseWriter, r *http.Request) {
	token, _, ok := h.upstream.token(w, r)
	if !ok {
		return
	}

	body, err := h.catalog.RecentlyPlayed(r.Context(), token, atoi(r.URL.Query().Get("limit")))
	if err != nil {
		upstreamFailure(w, h.logger, err, "Failed to fetch recently played tracks.")
		return
	}
	writeRaw(w, http.StatusOK, body)
}

func (h *CatalogHandler) topItems(kind, failure string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _, ok := h.upstream.token(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		body, err := h.catalog.TopItems(r.Context(), token, kind, q.Get("time_range"), atoi(q.Get("limit")))
		if err != nil {
			upstreamFailure(w, h.logger, err, failure)
			return
		}
		writeRaw(w, http.StatusOK, body)
	}
}

// upstreamFailure answers a failed upstream call: 401 when the upstream rejected the access token,
// 400 for arguments rejected before the call, 500 otherwise.
func upstreamFailure(w http.ResponseWriter, logger *log.Logger, err error, msg string) {
	var apiErr *services.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		writeMessage(w, http.StatusUnauthorized, "Access token is invalid or expired.")
		return
	}
	if errors.Is(err, shared.ErrInvalidArgument) || errors.Is(err, shared.ErrMissingArgument) {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}

	logger.Error(msg, "err", err)
	writeMessage(w, http.StatusInternalServerError, msg)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
