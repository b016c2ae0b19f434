package testing

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/playr/internal/shared"
	"github.com/go-chi/chi/v5"
)

// FakeMusixmatchKey is the only API key the fake lyrics server accepts.
const FakeMusixmatchKey = "fake-musixmatch-key"

// FakeMusixmatch is an httptest server standing in for the Musixmatch matcher API.
//
// Like the real service it always answers HTTP 200 and reports the outcome in the envelope header:
// 401 for a wrong key, 404 with an empty body for an unknown track.
type FakeMusixmatch struct {
	Server *httptest.Server

	mu     sync.Mutex
	lyrics map[string]string
	calls  int
	status int
	delay  time.Duration
}

func NewFakeMusixmatch(t *testing.T) *FakeMusixmatch {
	t.Helper()

	f := &FakeMusixmatch{lyrics: make(map[string]string)}

	r := chi.NewRouter()
	r.Get("/ws/1.1/matcher.lyrics.get", f.handleLyrics)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// Config returns lyrics settings pointing at the fake server.
func (f *FakeMusixmatch) Config() shared.MusixmatchConfig {
	return shared.MusixmatchConfig{
		APIKey:  FakeMusixmatchKey,
		APIURL:  f.Server.URL + "/ws/1.1",
		Timeout: shared.Duration{Duration: 2 * time.Second},
	}
}

// SetLyrics registers text for the track and artist pair.
func (f *FakeMusixmatch) SetLyrics(track, artist, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lyrics[track+"\x00"+artist] = text
}

// Fail makes every lookup report status in the envelope header.
func (f *FakeMusixmatch) Fail(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

// SetDelay slows every response by d.
func (f *FakeMusixmatch) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// Calls returns the number of lookups served.
func (f *FakeMusixmatch) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeMusixmatch) handleLyrics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f.mu.Lock()
	f.calls++
	text, found := f.lyrics[q.Get("q_track")+"\x00"+q.Get("q_artist")]
	status, delay := f.status, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	switch {
	case q.Get("apikey") != FakeMusixmatchKey:
		writeEnvelope(w, http.StatusUnauthorized, []any{})
	case status != 0:
		writeEnvelope(w, status, []any{})
	case !found:
		writeEnvelope(w, http.StatusNotFound, []any{})
	default:
		writeEnvelope(w, http.StatusOK, map[string]any{
			"lyrics": map[string]any{"lyrics_body": text},
		})
	}
}

func writeEnvelope(w http.ResponseWriter, status int, body any) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": map[string]any{
			"header": map[string]int{"status_code": status},
			"body":   body,
		},
	})
}
