package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/playr/internal/shared"
)

const musixmatchBaseURL = "https://api.musixmatch.com/ws/1.1"

// MusixmatchService implements [LyricsService] against the Musixmatch matcher API.
type MusixmatchService struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
}

// NewMusixmatchService creates a lyrics client. client may be nil, in which case an [http.Client]
// bounded by cfg.Timeout is used.
func NewMusixmatchService(cfg shared.MusixmatchConfig, client *http.Client) (*MusixmatchService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing musixmatch api_key", shared.ErrMissingCredentials)
	}

	if client == nil {
		timeout := cfg.Timeout.Duration
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &MusixmatchService{
		apiKey:     cfg.APIKey,
		apiURL:     strings.TrimSuffix(orDefault(cfg.APIURL, musixmatchBaseURL), "/"),
		httpClient: client,
	}, nil
}

// musixmatchEnvelope wraps every answer. The body is an empty array when the lookup failed.
type musixmatchEnvelope struct {
	Message struct {
		Header struct {
			StatusCode int `json:"status_code"`
		} `json:"header"`
		Body json.RawMessage `json:"body"`
	} `json:"message"`
}

type musixmatchLyrics struct {
	Lyrics struct {
		Body string `json:"lyrics_body"`
	} `json:"lyrics"`
}

// Lyrics returns the lyrics matched by track and artist name.
//
// Musixmatch answers HTTP 200 and reports the outcome in the envelope header: 404 there becomes
// [shared.ErrNotFound], anything else other than 200 an [APIError].
func (m *MusixmatchService) Lyrics(ctx context.Context, trackName, artistName string) (string, error) {
	if trackName == "" || artistName == "" {
		return "", fmt.Errorf("%w: track and artist name", shared.ErrMissingArgument)
	}

	q := url.Values{}
	q.Set("q_track", trackName)
	q.Set("q_artist", artistName)

	var env musixmatchEnvelope
	if err := m.doRequest(ctx, "/matcher.lyrics.get", q, &env); err != nil {
		return "", err
	}

	switch env.Message.Header.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", fmt.Errorf("%w: lyrics for %s - %s", shared.ErrNotFound, artistName, trackName)
	default:
		return "", &APIError{StatusCode: env.Message.Header.StatusCode, Body: string(env.Message.Body)}
	}

	var body musixmatchLyrics
	if err := json.Unmarshal(env.Message.Body, &body); err != nil {
		return "", fmt.Errorf("%w: failed to decode lyrics: %v", shared.ErrAPIRequest, err)
	}
	return body.Lyrics.Body, nil
}

// doRequest performs a keyed GET against the Musixmatch API and decodes the envelope into result.
func (m *MusixmatchService) doRequest(ctx context.Context, endpoint string, query url.Values, result any) error {
	query.Set("apikey", m.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.apiURL+endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: string(msg)}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}
