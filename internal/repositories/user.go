package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/playr/internal/models"
	"github.com/desertthunder/playr/internal/shared"
	"github.com/desertthunder/playr/internal/store"
)

const usersTable = "users"

// UserRepository persists [models.User] rows in the users table.
type UserRepository struct {
	store *store.Store
}

// NewUserRepository creates a new [UserRepository] over the given store
func NewUserRepository(s *store.Store) *UserRepository {
	return &UserRepository{store: s}
}

// Get retrieves a user by internal id. Returns [shared.ErrNotFound] when absent.
func (r *UserRepository) Get(ctx context.Context, id int64) (*models.User, error) {
	rec, err := r.store.FindOne(ctx, usersTable, store.Predicate{"id": id})
	if err != nil {
		return nil, err
	}
	return userFromRecord(rec)
}

// GetBySpotifyID retrieves a user by Spotify account id. Returns [shared.ErrNotFound] when absent.
func (r *UserRepository) GetBySpotifyID(ctx context.Context, spotifyID string) (*models.User, error) {
	rec, err := r.store.FindOne(ctx, usersTable, store.Predicate{"spotify_id": spotifyID})
	if err != nil {
		return nil, err
	}
	return userFromRecord(rec)
}

// List retrieves all users ordered by id.
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	recs, err := r.store.FindAll(ctx, usersTable, nil, "id")
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, len(recs))
	for _, rec := range recs {
		user, err := userFromRecord(rec)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// Create inserts a new user and assigns the generated id.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id, err := r.store.Insert(ctx, usersTable, store.Fields{
		"spotify_id":    user.SpotifyID(),
		"display_name":  nullable(user.DisplayName()),
		"email":         nullable(user.Email()),
		"profile_image": nullable(user.ProfileImage()),
		"access_token":  nullable(user.AccessToken()),
		"created_at":    user.CreatedAt().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return user.SetID(id)
}

// FindOrCreate returns the existing user with the same Spotify id, or inserts the given one.
//
// A duplicate-key failure on insert means another writer created the row between lookup and insert;
// the row is re-read and returned as existing.
func (r *UserRepository) FindOrCreate(ctx context.Context, user *models.User) (*models.User, bool, error) {
	existing, err := r.GetBySpotifyID(ctx, user.SpotifyID())
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := r.Create(ctx, user); err != nil {
		if !store.IsUniqueViolation(err) {
			return nil, false, err
		}

		existing, err := r.GetBySpotifyID(ctx, user.SpotifyID())
		if err != nil {
			return nil, false, fmt.Errorf("failed to re-read user after conflict: %w", err)
		}
		return existing, false, nil
	}

	return user, true, nil
}

// SetAccessToken caches the upstream access token on the user row.
func (r *UserRepository) SetAccessToken(ctx context.Context, id int64, token string) error {
	n, err := r.store.Update(ctx, usersTable, store.Fields{"access_token": nullable(token)}, store.Predicate{"id": id})
	if err != nil {
		return fmt.Errorf("failed to update access token: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
	}
	return nil
}

// userFromRecord maps a users row onto a [models.User].
func userFromRecord(rec store.Record) (*models.User, error) {
	user := models.NewUser(
		rec.String("spotify_id"),
		rec.String("display_name"),
		rec.String("email"),
		rec.String("profile_image"),
	)
	if err := user.SetID(rec.Int64("id")); err != nil {
		return nil, err
	}
	user.SetAccessToken(rec.String("access_token"))
	user.SetCreatedAt(rec.Time("created_at"))
	return user, nil
}

// nullable stores empty strings as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
