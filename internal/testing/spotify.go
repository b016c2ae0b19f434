package testing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/playr/internal/shared"
	"github.com/go-chi/chi/v5"
)

const (
	FakeClientID     = "fake-client-id"
	FakeClientSecret = "fake-client-secret"
	FakeRedirectURI  = "http://localhost/auth/callback"

	// BadValue is rejected by the fake token endpoint with 400 invalid_grant, as a code or a refresh token.
	BadValue = "BAD"
)

// FakeProfile is the body served by GET /v1/me.
type FakeProfile struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Email       string      `json:"email,omitempty"`
	Images      []FakeImage `json:"images"`
}

type FakeImage struct {
	URL string `json:"url"`
}

// FakeSpotify is an httptest server standing in for the Spotify accounts service and Web API.
//
// Token endpoint: POST /api/token. Web API: /v1/me, /v1/search, /v1/me/player/recently-played, /v1/me/top/{kind}
// and the playlist writes POST /v1/users/{userId}/playlists, PUT /v1/playlists/{id} and
// DELETE /v1/playlists/{id}/followers. Created playlists get the ids sp-1, sp-2 and so on.
// Status overrides force an endpoint to fail; Delay slows every response.
type FakeSpotify struct {
	Server *httptest.Server

	mu            sync.Mutex
	calls         map[string]int
	lastQuery     map[string]string
	lastAuth      map[string]string
	lastBody      map[string]string
	playlists     int
	accessToken   string
	refreshToken  string
	expiresIn     int
	profile       FakeProfile
	tokenStatus   int
	refreshStatus int
	profileStatus int
	apiStatus     int
	delay         time.Duration
}

// NewFakeSpotify starts a fake upstream that issues AT1/RT1 and serves the profile of U1.
func NewFakeSpotify(t *testing.T) *FakeSpotify {
	t.Helper()

	f := &FakeSpotify{
		calls:        make(map[string]int),
		lastQuery:    make(map[string]string),
		lastAuth:     make(map[string]string),
		lastBody:     make(map[string]string),
		accessToken:  "AT1",
		refreshToken: "RT1",
		expiresIn:    3600,
		profile: FakeProfile{
			ID:          "U1",
			DisplayName: "Name",
			Email:       "e@x.com",
			Images:      []FakeImage{{URL: "http://img"}},
		},
	}

	r := chi.NewRouter()
	r.Use(f.track)
	r.Post("/api/token", f.handleToken)
	r.Get("/v1/me", f.handleProfile)
	r.Get("/v1/search", f.handleAPI(`{"tracks":{"items":[{"id":"t1","name":"Song"}]}}`))
	r.Get("/v1/me/player/recently-played", f.handleAPI(`{"items":[{"track":{"id":"t1"}}],"limit":20}`))
	r.Get("/v1/me/top/{kind}", f.handleAPI(`{"items":[{"id":"top1"}],"total":1}`))
	r.Post("/v1/users/{userId}/playlists", f.handleCreatePlaylist)
	r.Put("/v1/playlists/{id}", f.handleAPI(""))
	r.Delete("/v1/playlists/{id}/followers", f.handleAPI(""))

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// Config returns Spotify settings pointing at the fake server.
func (f *FakeSpotify) Config() shared.SpotifyConfig {
	return shared.SpotifyConfig{
		ClientID:     FakeClientID,
		ClientSecret: FakeClientSecret,
		RedirectURI:  FakeRedirectURI,
		Scopes:       []string{"user-read-private", "user-read-email"},
		AuthURL:      f.Server.URL + "/authorize",
		TokenURL:     f.Server.URL + "/api/token",
		APIURL:       f.Server.URL + "/v1",
		Timeout:      shared.Duration{Duration: 2 * time.Second},
	}
}

// Calls returns how many requests hit path.
func (f *FakeSpotify) Calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

// TotalCalls returns the number of requests served on any path.
func (f *FakeSpotify) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// LastQuery returns the raw query string of the last request to path.
func (f *FakeSpotify) LastQuery(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastQuery[path]
}

// LastAuthorization returns the Authorization header of the last request to path.
func (f *FakeSpotify) LastAuthorization(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth[path]
}

// LastBody returns the request body of the last request to path.
func (f *FakeSpotify) LastBody(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody[path]
}

func (f *FakeSpotify) SetProfile(p FakeProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile = p
}

func (f *FakeSpotify) SetTokens(access, refresh string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessToken, f.refreshToken = access, refresh
}

// FailToken makes every authorization-code exchange answer with status.
func (f *FakeSpotify) FailToken(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenStatus = status
}

// FailRefresh makes every refresh grant answer with status.
func (f *FakeSpotify) FailRefresh(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshStatus = status
}

// FailProfile makes GET /v1/me answer with status.
func (f *FakeSpotify) FailProfile(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileStatus = status
}

// FailAPI makes the passthrough endpoints answer with status.
func (f *FakeSpotify) FailAPI(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiStatus = status
}

// SetDelay slows every response by d.
func (f *FakeSpotify) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

func (f *FakeSpotify) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls[r.URL.Path]++
		f.lastQuery[r.URL.Path] = r.URL.RawQuery
		f.lastAuth[r.URL.Path] = r.Header.Get("Authorization")
		delay := f.delay
		f.mu.Unlock()

		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			body, _ := io.ReadAll(r.Body)
			_ = r.Body.Close()
			r.Body = io.NopCloser(strings.NewReader(string(body)))

			f.mu.Lock()
			f.lastBody[r.URL.Path] = string(body)
			f.mu.Unlock()
		}

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeSpotify) handleToken(w http.ResponseWriter, r *http.Request) {
	id, secret, ok := r.BasicAuth()
	if !ok || id != FakeClientID || secret != FakeClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	f.mu.Lock()
	access, refresh, expires := f.accessToken, f.refreshToken, f.expiresIn
	tokenStatus, refreshStatus := f.tokenStatus, f.refreshStatus
	f.mu.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if tokenStatus != 0 {
			writeJSON(w, tokenStatus, map[string]string{"error": "server_error"})
			return
		}
		if code := r.PostForm.Get("code"); code == "" || code == BadValue {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  access,
			"token_type":    "Bearer",
			"refresh_token": refresh,
			"expires_in":    expires,
		})
	case "refresh_token":
		if refreshStatus != 0 {
			writeJSON(w, refreshStatus, map[string]string{"error": "server_error"})
			return
		}
		if rt := r.PostForm.Get("refresh_token"); rt == "" || rt == BadValue {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid refresh token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": access + "-refreshed",
			"token_type":   "Bearer",
			"expires_in":   expires,
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (f *FakeSpotify) handleProfile(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	profile, status := f.profile, f.profileStatus
	f.mu.Unlock()

	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"status": 401, "message": "No token provided"}})
		return
	}
	if status != 0 {
		writeJSON(w, status, map[string]any{"error": map[string]any{"status": status, "message": "failure"}})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (f *FakeSpotify) handleAPI(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status := f.apiStatus
		f.mu.Unlock()

		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"status": 401, "message": "No token provided"}})
			return
		}
		if status != 0 {
			writeJSON(w, status, map[string]any{"error": map[string]any{"status": status, "message": "failure"}})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func (f *FakeSpotify) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	status := f.apiStatus
	f.mu.Unlock()

	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"status": 401, "message": "No token provided"}})
		return
	}
	if status != 0 {
		writeJSON(w, status, map[string]any{"error": map[string]any{"status": status, "message": "failure"}})
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Public      bool   `json:"public"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"status": 400, "message": "Missing required field: name"}})
		return
	}

	f.mu.Lock()
	f.playlists++
	id := fmt.Sprintf("sp-%d", f.playlists)
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":          id,
		"name":        req.Name,
		"description": req.Description,
		"public":      req.Public,
		"owner":       map[string]string{"id": chi.URLParam(r, "userId")},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
