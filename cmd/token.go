package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/playr/internal/auth"
	"github.com/desertthunder/playr/internal/shared"
	"github.com/urfave/cli/v3"
)

type issuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type inspectedToken struct {
	UserID    int64     `json:"userId"`
	SpotifyID string    `json:"spotify_id"`
	Email     string    `json:"email,omitempty"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenIssue signs a session token with the configured secret, for manual API testing.
func (r *Runner) TokenIssue(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	ttl := config.Auth.TokenTTL.Duration
	if d := cmd.Duration("ttl"); d > 0 {
		ttl = d
	}

	issuer, err := auth.NewIssuer(config.Auth.JWTSecret, auth.WithTTL(ttl))
	if err != nil {
		return err
	}

	token, err := issuer.Issue(int64(cmd.Int("user-id")), cmd.String("spotify-id"), cmd.String("email"))
	if err != nil {
		return err
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		return fmt.Errorf("freshly issued token did not verify: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(issuedToken{Token: token, ExpiresAt: claims.ExpiresAtTime().UTC()}, false)
	}
	return r.writePlain("%s\n", token)
}

// TokenInspect verifies a session token and prints its claims.
func (r *Runner) TokenInspect(ctx context.Context, cmd *cli.Command) error {
	token := cmd.StringArg("token")
	if token == "" {
		return fmt.Errorf("%w: token", shared.ErrMissingArgument)
	}

	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	issuer, err := auth.NewIssuer(config.Auth.JWTSecret)
	if err != nil {
		return err
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		r.writePlain("%s %v\n", r.palette.Err("✗ Invalid token:"), err)
		return err
	}

	out := inspectedToken{
		UserID:    claims.UserID,
		SpotifyID: claims.SpotifyID,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAtTime().UTC(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.UTC()
	}
	return r.writeJSON(out, true)
}
