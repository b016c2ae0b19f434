package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playr/internal/auth"
	"github.com/desertthunder/playr/internal/models"
	"github.com/desertthunder/playr/internal/repositories"
	"github.com/desertthunder/playr/internal/services"
	"github.com/desertthunder/playr/internal/shared"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/singleflight"
)

const (
	oauthSession = "playr_oauth"
	stateKey     = "state"
	stateMaxAge  = 600

	errMissingCode = "missing_code"
	errAuth        = "authentication_error"
)

// AuthOptions configures an [AuthHandler].
type AuthOptions struct {
	OAuth                services.OAuthService
	Users                *repositories.UserRepository
	Issuer               *auth.Issuer
	Denylist             auth.Denylist
	Sessions             sessions.Store
	Authenticator        *Authenticator
	FrontendURL          string
	VerifyState          bool
	PersistUpstreamToken bool
	SecureCookies        bool
	Logger               *log.Logger
}

// AuthHandler serves the login, callback, refresh and logout routes.
type AuthHandler struct {
	oauth        services.OAuthService
	users        *repositories.UserRepository
	issuer       *auth.Issuer
	denylist     auth.Denylist
	sessions     sessions.Store
	authn        *Authenticator
	frontend     string
	verifyState  bool
	persistToken bool
	secureCookie bool
	logger       *log.Logger
	upserts      singleflight.Group
}

// NewAuthHandler creates an [AuthHandler].
func NewAuthHandler(opts AuthOptions) *AuthHandler {
	return &AuthHandler{
		oauth:        opts.OAuth,
		users:        opts.Users,
		issuer:       opts.Issuer,
		denylist:     opts.Denylist,
		sessions:     opts.Sessions,
		authn:        opts.Authenticator,
		frontend:     opts.FrontendURL,
		verifyState:  opts.VerifyState,
		persistToken: opts.PersistUpstreamToken,
		secureCookie: opts.SecureCookies,
		logger:       opts.Logger,
	}
}

// Routes returns the /auth routes. Refresh and logout require a session token.
func (h *AuthHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/auth/login", Handler: h.Login},
		{Method: http.MethodGet, Path: "/auth/callback", Handler: h.Callback},
		{Method: http.MethodPost, Path: "/auth/refresh", Handler: h.Refresh, Middleware: []Middleware{h.authn.RequireAuth}},
		{Method: http.MethodPost, Path: "/auth/logout", Handler: h.Logout, Middleware: []Middleware{h.authn.RequireAuth}},
	}
}

// Login redirects to the provider consent page. The state is kept in a signed cookie for the callback.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()

	session, err := h.sessions.New(r, oauthSession)
	if err != nil {
		h.logger.Debug("discarding unreadable oauth session", "err", err)
	}
	session.Values[stateKey] = state
	session.Options = &sessions.Options{
		Path:     "/auth",
		MaxAge:   stateMaxAge,
		HttpOnly: true,
		Secure:   h.secureCookie || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if err := session.Save(r, w); err != nil {
		h.logger.Error("failed to save oauth state", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to start login.")
		return
	}

	http.Redirect(w, r, h.oauth.AuthURL(state), http.StatusFound)
}

// Callback completes the authorization-code flow and hands the credentials to the frontend.
//
// Every failure is a redirect to the frontend login view carrying an error indicator.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	code := query.Get("code")
	if code == "" {
		h.logger.Warn("callback without code", "error", query.Get("error"))
		http.Redirect(w, r, loginErrorURL(h.frontend, errMissingCode), http.StatusFound)
		return
	}

	if h.verifyState {
		if err := h.checkState(w, r, query.Get("state")); err != nil {
			h.logger.Warn("callback state rejected", "err", err)
			http.Redirect(w, r, loginErrorURL(h.frontend, errAuth), http.StatusFound)
			return
		}
	}

	result, err := h.completeLogin(r.Context(), code)
	if err != nil {
		h.logger.Error("authentication failed", "err", err)
		http.Redirect(w, r, loginErrorURL(h.frontend, errAuth), http.StatusFound)
		return
	}

	h.logger.Info("user signed in", "user_id", result.userID, "spotify_id", result.spotifyID, "created", result.created)
	http.Redirect(w, r, dashboardURL(h.frontend, result.accessToken, result.refreshToken, result.sessionToken), http.StatusFound)
}

type loginResult struct {
	userID       int64
	spotifyID    string
	created      bool
	accessToken  string
	refreshToken string
	sessionToken string
}

// completeLogin exchanges the code, reads the profile, upserts the user and mints a session token.
func (h *AuthHandler) completeLogin(ctx context.Context, code string) (*loginResult, error) {
	token, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	profile, err := h.oauth.UserProfile(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	user, created, err := h.upsert(ctx, profile)
	if err != nil {
		return nil, err
	}

	if h.persistToken {
		if err := h.users.SetAccessToken(ctx, user.ID(), token.AccessToken); err != nil {
			h.logger.Error("failed to cache access token", "user_id", user.ID(), "err", err)
		}
	}

	sessionToken, err := h.issuer.Issue(user.ID(), user.SpotifyID(), profile.Email)
	if err != nil {
		return nil, err
	}

	return &loginResult{
		userID:       user.ID(),
		spotifyID:    user.SpotifyID(),
		created:      created,
		accessToken:  token.AccessToken,
		refreshToken: token.RefreshToken,
		sessionToken: sessionToken,
	}, nil
}

type upsertResult struct {
	user    *models.User
	created bool
}

// upsert collapses concurrent logins of the same account into one lookup-or-insert.
// The shared call outlives a disconnecting first caller so the others still get a result.
func (h *AuthHandler) upsert(ctx context.Context, profile *services.SpotifyUser) (*models.User, bool, error) {
	v, err, _ := h.upserts.Do(profile.ID, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		candidate := models.NewUser(profile.ID, profile.DisplayName, profile.Email, profile.ProfileImage())
		user, created, err := h.users.FindOrCreate(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert user: %w", err)
		}
		return upsertResult{user: user, created: created}, nil
	})
	if err != nil {
		return nil, false, err
	}

	res := v.(upsertResult)
	return res.user, res.created, nil
}

// checkState compares the callback state with the one stored at login and clears it.
func (h *AuthHandler) checkState(w http.ResponseWriter, r *http.Request, state string) error {
	session, err := h.sessions.Get(r, oauthSession)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStateMismatch, err)
	}

	expected, _ := session.Values[stateKey].(string)
	delete(session.Values, stateKey)
	session.Options = &sessions.Options{Path: "/auth", MaxAge: -1}
	if err := session.Save(r, w); err != nil {
		h.logger.Warn("failed to clear oauth state", "err", err)
	}

	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
		return shared.ErrStateMismatch
	}
	return nil
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh trades the refresh token in the body for a new upstream access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := readRefreshToken(r)
	if refreshToken == "" {
		writeMessage(w, http.StatusBadRequest, "Refresh token is required.")
		return
	}

	refreshed, err := h.oauth.Refresh(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidRefreshToken) {
			h.logger.Warn("refresh token rejected", "err", err)
			writeMessage(w, http.StatusBadRequest, "Invalid refresh token.")
			return
		}
		h.logger.Error("token refresh failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to refresh token.")
		return
	}

	if h.persistToken {
		if id, ok := auth.IdentityFrom(r.Context()); ok {
			if err := h.users.SetAccessToken(r.Context(), id.UserID, refreshed.AccessToken); err != nil {
				h.logger.Error("failed to cache access token", "user_id", id.UserID, "err", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, refreshed)
}

// Logout revokes the presented session token until it would have expired.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeAuthError(w, http.StatusUnauthorized, ReasonNoToken)
		return
	}

	if h.denylist == nil {
		writeMessage(w, http.StatusNotImplemented, "Logout is not enabled.")
		return
	}

	if err := h.denylist.Revoke(r.Context(), id.TokenID, id.ExpiresAt); err != nil {
		h.logger.Error("failed to revoke session token", "user_id", id.UserID, "err", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to log out.")
		return
	}

	writeMessage(w, http.StatusOK, "Logged out.")
}

// readRefreshToken accepts a JSON body or a form-encoded body.
func readRefreshToken(r *http.Request) string {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body refreshRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err != nil {
			return ""
		}
		return body.RefreshToken
	}
	return r.PostFormValue("refresh_token")
}
