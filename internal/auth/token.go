package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/playr/internal/shared"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is the session token lifetime.
const DefaultTTL = time.Hour

var (
	ErrMalformedToken   = errors.New("malformed session token")
	ErrSignatureInvalid = errors.New("session token signature mismatch")
	ErrTokenExpired     = errors.New("session token expired")
	ErrIncompleteClaims = errors.New("session token claims incomplete")
	ErrTokenRevoked     = errors.New("session token revoked")
)

// Claims is the payload of a session token.
type Claims struct {
	UserID    int64  `json:"userId"`
	SpotifyID string `json:"spotify_id"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies session tokens with a server-held secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// Option configures an [Issuer].
type Option func(*Issuer)

// WithClock replaces [time.Now] for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithTTL overrides [DefaultTTL]. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// NewIssuer creates an [Issuer]. An empty secret is rejected.
func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: signing secret is required", shared.ErrMissingCredentials)
	}

	i := &Issuer{secret: []byte(secret), ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}

	i.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return i.now() }),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	)
	return i, nil
}

// TTL returns the lifetime given to issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints a token for the user. email may be empty.
func (i *Issuer) Issue(userID int64, spotifyID, email string) (string, error) {
	if userID == 0 || spotifyID == "" {
		return "", fmt.Errorf("%w: user id and spotify id are required", ErrIncompleteClaims)
	}

	now := i.now()
	claims := Claims{
		UserID:    userID,
		SpotifyID: spotifyID,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token and returns its claims.
func (i *Issuer) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	claims := &Claims{}
	_, err := i.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if claims.UserID == 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrIncompleteClaims)
	}
	return claims, nil
}

// Recognizes reports whether token has the shape of a session token: a JWT whose header names
// HS256. The signature is not checked. Opaque upstream access tokens are never recognized.
func (i *Issuer) Recognizes(token string) bool {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false
	}
	alg, _ := parsed.Header["alg"].(string)
	return alg == jwt.SigningMethodHS256.Alg()
}

// classify maps jwt parser errors onto this package's sentinels.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %v", ErrIncompleteClaims, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

// ExpiresAtTime returns the expiry of the claims, or the zero time when unset.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
