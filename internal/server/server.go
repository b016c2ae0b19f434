package server

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playr/internal/auth"
	"github.com/desertthunder/playr/internal/repositories"
	"github.com/desertthunder/playr/internal/services"
	"github.com/desertthunder/playr/internal/shared"
	"github.com/desertthunder/playr/internal/store"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Route is one method and path served by a [Handler], with middleware applied to that route only.
type Route struct {
	Method     string
	Path       string
	Handler    http.HandlerFunc
	Middleware []Middleware
}

// Handler groups related routes so they can be registered together.
type Handler interface {
	Routes() []Route // Routes returns the routes this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                                               // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler, middleware ...Middleware) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                                                    // Handler registers every route of a Handler
	ServeHTTP(w http.ResponseWriter, r *http.Request)                           // ServeHTTP implements http.Handler for the entire router
}

// Options holds the collaborators of a [Server].
type Options struct {
	Config   *shared.Config
	Store    *store.Store
	OAuth    services.OAuthService
	Catalog  services.CatalogService
	Playlist services.PlaylistService
	Lyrics   services.LyricsService
	Issuer   *auth.Issuer
	Denylist auth.Denylist
	Logger   *log.Logger
}

// Server is the assembled HTTP API.
type Server struct {
	router *BasicRouter
	config *shared.Config
	logger *log.Logger
}

// New wires repositories, handlers and middleware into a [Server].
func New(opts Options) (*Server, error) {
	if opts.Config == nil || opts.Store == nil || opts.OAuth == nil || opts.Issuer == nil {
		return nil, fmt.Errorf("%w: config, store, oauth service and issuer are required", shared.ErrMissingArgument)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	cfg := opts.Config

	users := repositories.NewUserRepository(opts.Store)
	favorites := repositories.NewFavoriteRepository(opts.Store)
	authn := NewAuthenticator(opts.Issuer, opts.Store, opts.Denylist, shared.WithLogger(opts.Logger, "component", "auth"))

	var origins []string
	if o := originOf(cfg.Auth.FrontendURL); o != "" {
		origins = append(origins, o)
	}

	global := []Middleware{middleware.RequestID}
	if cfg.Server.TrustProxy {
		global = append(global, middleware.RealIP)
	}
	global = append(global,
		RequestLogger(shared.WithLogger(opts.Logger, "component", "http")),
		middleware.Recoverer,
		CORS(origins...),
	)

	router := NewBasicRouter()
	router.Use(global...)

	router.Handle(http.MethodGet, "/", http.HandlerFunc(banner))

	limiter := NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, 0)
	authHandler := NewAuthHandler(AuthOptions{
		OAuth:                opts.OAuth,
		Users:                users,
		Issuer:               opts.Issuer,
		Denylist:             opts.Denylist,
		Sessions:             newCookieStore(cfg.Auth),
		Authenticator:        authn,
		FrontendURL:          cfg.Auth.FrontendURL,
		VerifyState:          cfg.Auth.VerifyState,
		PersistUpstreamToken: cfg.Auth.PersistUpstreamToken,
		SecureCookies:        cfg.Auth.SecureCookies,
		Logger:               shared.WithLogger(opts.Logger, "component", "oauth"),
	})
	router.Handler(limited(authHandler, limiter))
	router.Handler(NewUserHandler(users, authn, opts.Logger))
	router.Handler(NewFavoriteHandler(favorites, authn, opts.Logger))

	router.Handler(NewLyricsHandler(repositories.NewLyricsRepository(opts.Store), opts.Lyrics, authn, shared.WithLogger(opts.Logger, "component", "lyrics")))

	swap := cfg.Auth.PersistUpstreamToken
	if opts.Catalog != nil {
		router.Handler(NewCatalogHandler(opts.Catalog, authn, swap, shared.WithLogger(opts.Logger, "component", "catalog")))
	}
	if opts.Playlist != nil {
		playlists := repositories.NewPlaylistRepository(opts.Store)
		router.Handler(NewPlaylistHandler(playlists, opts.Playlist, opts.OAuth, authn, swap, shared.WithLogger(opts.Logger, "component", "playlists")))
	}

	return &Server{router: router, config: cfg, logger: opts.Logger}, nil
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on the configured address until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is [Server.Run] on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Infof("server is running on %s", ln.Addr())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	timeout := s.config.Server.ShutdownTimeout.Duration
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down server", "timeout", timeout)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	return nil
}

func banner(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Spotify Backend is running!"))
}

// limitedHandler applies a rate limiter to every route of a [Handler].
type limitedHandler struct {
	Handler
	limiter *RateLimiter
}

func limited(h Handler, limiter *RateLimiter) Handler {
	return limitedHandler{Handler: h, limiter: limiter}
}

func (l limitedHandler) Routes() []Route {
	routes := l.Handler.Routes()
	for i := range routes {
		routes[i].Middleware = append([]Middleware{l.limiter.Middleware}, routes[i].Middleware...)
	}
	return routes
}

// newCookieStore signs the OAuth state cookie. Without a cookie secret, a key is derived from the JWT secret.
func newCookieStore(cfg shared.AuthConfig) *sessions.CookieStore {
	secret := []byte(cfg.CookieSecret)
	if len(secret) == 0 {
		sum := sha256.Sum256([]byte("playr-oauth-state:" + cfg.JWTSecret))
		secret = sum[:]
	}
	return sessions.NewCookieStore(secret)
}

// originOf reduces a frontend URL to its scheme://host origin.
func originOf(frontend string) string {
	u, err := url.Parse(frontend)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
