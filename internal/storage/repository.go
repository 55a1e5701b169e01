package storage

import "context"

// FavoriteStore persists the favorite flag of photos, keyed by photo id.
// Writes to different ids never interfere; for the same id the last write wins.
type FavoriteStore interface {
	// IsFavorite reports whether the photo is flagged. Unknown ids are not favorites.
	IsFavorite(ctx context.Context, photoID string) (bool, error)

	// SetFavorite sets or clears the flag for one photo.
	SetFavorite(ctx context.Context, photoID string, favorite bool) error

	// ToggleFavorite flips the flag in a single transaction and returns the new value.
	ToggleFavorite(ctx context.Context, photoID string) (bool, error)

	// ListFavorites returns the ids of all flagged photos, sorted.
	ListFavorites(ctx context.Context) ([]string, error)

	// Close gracefully shuts down the store.
	Close() error
}
