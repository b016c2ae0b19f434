package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/playr/internal/models"
	"github.com/desertthunder/playr/internal/shared"
	"github.com/desertthunder/playr/internal/store"
)

const favoritesTable = "favorites"

// FavoriteRepository persists [models.Favorite] rows in the favorites table.
type FavoriteRepository struct {
	store *store.Store
}

// NewFavoriteRepository creates a new [FavoriteRepository] over the given store
func NewFavoriteRepository(s *store.Store) *FavoriteRepository {
	return &FavoriteRepository{store: s}
}

// Add inserts a favorite. Adding the same item twice returns [shared.ErrAlreadyExists].
func (r *FavoriteRepository) Add(ctx context.Context, fav *models.Favorite) error {
	if err := fav.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id, err := r.store.Insert(ctx, favoritesTable, store.Fields{
		"user_id":     fav.UserID(),
		"item_type":   fav.ItemType(),
		"item_id":     fav.ItemID(),
		"item_name":   nullable(fav.ItemName()),
		"item_artist": nullable(fav.ItemArtist()),
		"created_at":  fav.CreatedAt().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to insert favorite: %w", err)
	}

	fav.SetID(id)
	return nil
}

// ListByType returns the user's favorites of one item type, newest first.
func (r *FavoriteRepository) ListByType(ctx context.Context, userSpotifyID, itemType string) ([]*models.Favorite, error) {
	recs, err := r.store.FindAll(ctx, favoritesTable, store.Predicate{
		"user_id":   userSpotifyID,
		"item_type": itemType,
	}, "id DESC")
	if err != nil {
		return nil, err
	}

	favorites := make([]*models.Favorite, 0, len(recs))
	for _, rec := range recs {
		favorites = append(favorites, favoriteFromRecord(rec))
	}
	return favorites, nil
}

// Exists reports whether the user has favorited the item.
func (r *FavoriteRepository) Exists(ctx context.Context, userSpotifyID, itemType, itemID string) (bool, error) {
	_, err := r.store.FindOne(ctx, favoritesTable, store.Predicate{
		"user_id":   userSpotifyID,
		"item_type": itemType,
		"item_id":   itemID,
	})
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes a favorite. Returns [shared.ErrNotFound] when nothing matched.
func (r *FavoriteRepository) Remove(ctx context.Context, userSpotifyID, itemType, itemID string) error {
	n, err := r.store.Delete(ctx, favoritesTable, store.Predicate{
		"user_id":   userSpotifyID,
		"item_type": itemType,
		"item_id":   itemID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: favorite %s/%s", shared.ErrNotFound, itemType, itemID)
	}
	return nil
}

func favoriteFromRecord(rec store.Record) *models.Favorite {
	fav := models.NewFavorite(
		rec.String("user_id"),
		rec.String("item_type"),
		rec.String("item_id"),
		rec.String("item_name"),
		rec.String("item_artist"),
	)
	fav.SetID(rec.Int64("id"))
	fav.SetCreatedAt(rec.Time("created_at"))
	return fav
}
