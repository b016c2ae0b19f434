package server

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playr/internal/auth"
	"github.com/desertthunder/playr/internal/store"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// Reasons reported by [Authenticator.RequireAuth].
const (
	ReasonNoToken            = "Not authorized, no token provided"
	ReasonVerificationFailed = "Token verification failed"
	ReasonInvalidToken       = "Invalid token"
	ReasonUserNotFound       = "User not found"
	ReasonUnavailable        = "Authentication unavailable"
)

// Authenticator gates protected routes on a valid session token.
type Authenticator struct {
	issuer   *auth.Issuer
	store    *store.Store
	denylist auth.Denylist
	logger   *log.Logger
}

// NewAuthenticator creates an [Authenticator]. denylist may be nil.
func NewAuthenticator(issuer *auth.Issuer, s *store.Store, denylist auth.Denylist, logger *log.Logger) *Authenticator {
	return &Authenticator{issuer: issuer, store: s, denylist: denylist, logger: logger}
}

// RequireAuth verifies the bearer session token, confirms the user still exists, and attaches an
// [auth.Identity] to the request context. Every rejection is a 401 except store failures, which are 500.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, ReasonNoToken)
			return
		}

		identity, rej := a.Authenticate(r, token)
		if rej != nil {
			writeAuthError(w, rej.Status, rej.Reason)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

// Rejection is why [Authenticator.Authenticate] refused a token, with the status to answer.
type Rejection struct {
	Status int
	Reason string
}

// Authenticate runs the session token checks of [Authenticator.RequireAuth] on token: signature and
// expiry, revocation, then the user row.
func (a *Authenticator) Authenticate(r *http.Request, token string) (*auth.Identity, *Rejection) {
	claims, err := a.issuer.Verify(token)
	if err != nil {
		a.logger.Debug("session token rejected", "path", r.URL.Path, "err", err)
		if errors.Is(err, auth.ErrIncompleteClaims) {
			return nil, &Rejection{http.StatusUnauthorized, ReasonInvalidToken}
		}
		return nil, &Rejection{http.StatusUnauthorized, ReasonVerificationFailed}
	}

	if a.denylist != nil {
		revoked, err := a.denylist.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			a.logger.Error("denylist lookup failed", "err", err)
			return nil, &Rejection{http.StatusInternalServerError, ReasonUnavailable}
		}
		if revoked {
			a.logger.Debug("session token rejected", "path", r.URL.Path, "err", auth.ErrTokenRevoked)
			return nil, &Rejection{http.StatusUnauthorized, ReasonVerificationFailed}
		}
	}

	rec, err := a.store.FindOne(r.Context(), "users", store.Predicate{"id": claims.UserID})
	if errors.Is(err, store.ErrNotFound) {
		return nil, &Rejection{http.StatusUnauthorized, ReasonUserNotFound}
	}
	if err != nil {
		a.logger.Error("user lookup failed", "user_id", claims.UserID, "err", err)
		return nil, &Rejection{http.StatusInternalServerError, ReasonUnavailable}
	}

	spotifyID := claims.SpotifyID
	if spotifyID == "" {
		spotifyID = rec.String("spotify_id")
	}

	return &auth.Identity{
		UserID:      claims.UserID,
		SpotifyID:   spotifyID,
		Email:       claims.Email,
		AccessToken: rec.String("access_token"),
		TokenID:     claims.ID,
		ExpiresAt:   claims.ExpiresAtTime(),
	}, nil
}

// bearerToken extracts the token of a "Bearer <token>" Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequestLogger logs method, path, status, duration and request id of every request.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			kv := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			}
			switch {
			case status >= 500:
				logger.Error("request", kv...)
			case status >= 400:
				logger.Warn("request", kv...)
			default:
				logger.Info("request", kv...)
			}
		})
	}
}

// CORS allows the browser client to call the API from another origin.
//
// An empty origin list allows any origin.
func CORS(origins ...string) Middleware {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimSuffix(o, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (len(allowed) == 0 || allowed[origin]) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter applies a token bucket per client IP.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*client
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastPrune time.Time
	now       func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perSecond sustained requests per client with the given burst.
// Clients idle for longer than ttl are forgotten.
func NewRateLimiter(perSecond float64, burst int, ttl time.Duration) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RateLimiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Middleware rejects requests over the limit with 429 and a Retry-After header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(1))
			writeMessage(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastPrune) > rl.ttl {
		for k, c := range rl.clients {
			if now.Sub(c.lastSeen) > rl.ttl {
				delete(rl.clients, k)
			}
		}
		rl.lastPrune = now
	}

	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// clientIP uses RemoteAddr. Proxy headers are only honored when chi's RealIP middleware is
// installed, which happens with server.trust_proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
