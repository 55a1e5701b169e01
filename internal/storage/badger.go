package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

const (
	favoritePrefix = "favorite:"

	// maxTxnRetries bounds how often a conflicting toggle is replayed.
	maxTxnRetries = 5
)

var favoriteValue = []byte{1}

// BadgerRepository implements FavoriteStore using BadgerDB.
type BadgerRepository struct {
	db  *badger.DB
	log logrus.FieldLogger
}

// NewBadgerRepository opens the database at dbPath.
// An empty dbPath opens a purely in-memory database.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	if dbPath == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %q: %w", dbPath, err)
	}
	if dbPath == "" {
		logger.Info("BadgerDB opened in memory")
	} else {
		logger.Info("BadgerDB opened successfully at path: ", dbPath)
	}

	return &BadgerRepository{
		db:  db,
		log: logger.WithField("component", "favorites"),
	}, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	r.log.Info("Closing BadgerDB...")
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	r.log.Info("BadgerDB closed.")
	return nil
}

// Format: favorite:{photoID}
func generateFavoriteKey(photoID string) []byte {
	return []byte(favoritePrefix + photoID)
}

// IsFavorite looks up the flag for a photo.
func (r *BadgerRepository) IsFavorite(ctx context.Context, photoID string) (bool, error) {
	var favorite bool
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		favorite, err = readFavorite(txn, photoID)
		return err
	})
	if err != nil {
		r.log.WithError(err).WithField("photo_id", photoID).Error("Failed to read favorite")
		return false, fmt.Errorf("failed to read favorite %s: %w", photoID, err)
	}
	return favorite, nil
}

// SetFavorite stores the flag; clearing it removes the key.
func (r *BadgerRepository) SetFavorite(ctx context.Context, photoID string, favorite bool) error {
	log := r.log.WithFields(logrus.Fields{
		"photo_id": photoID,
		"favorite": favorite,
	})

	err := r.db.Update(func(txn *badger.Txn) error {
		return writeFavorite(txn, photoID, favorite)
	})
	if err != nil {
		log.WithError(err).Error("Failed to save favorite")
		return fmt.Errorf("failed to save favorite %s: %w", photoID, err)
	}

	log.Debug("Favorite saved")
	return nil
}

// ToggleFavorite flips the flag inside one read-write transaction.
// Transactions that lose a write conflict are replayed.
func (r *BadgerRepository) ToggleFavorite(ctx context.Context, photoID string) (bool, error) {
	log := r.log.WithField("photo_id", photoID)

	var favorite bool
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err = r.db.Update(func(txn *badger.Txn) error {
			current, err := readFavorite(txn, photoID)
			if err != nil {
				return err
			}
			favorite = !current
			return writeFavorite(txn, photoID, favorite)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		log.WithField("attempt", attempt+1).Debug("Favorite toggle conflicted, retrying")
	}
	if err != nil {
		log.WithError(err).Error("Failed to toggle favorite")
		return false, fmt.Errorf("failed to toggle favorite %s: %w", photoID, err)
	}

	log.WithField("favorite", favorite).Info("Favorite toggled")
	return favorite, nil
}

// ListFavorites scans the favorite prefix.
func (r *BadgerRepository) ListFavorites(ctx context.Context) ([]string, error) {
	ids := []string{}

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(favoritePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			ids = append(ids, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		r.log.WithError(err).Error("Failed to list favorites")
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}

	sort.Strings(ids)
	r.log.WithField("favorite_count", len(ids)).Debug("Favorites listed")
	return ids, nil
}

func readFavorite(txn *badger.Txn, photoID string) (bool, error) {
	_, err := txn.Get(generateFavoriteKey(photoID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func writeFavorite(txn *badger.Txn, photoID string, favorite bool) error {
	key := generateFavoriteKey(photoID)
	if !favorite {
		// Delete is idempotent.
		return txn.Delete(key)
	}
	return txn.SetEntry(badger.NewEntry(key, favoriteValue))
}

// RunGC reclaims value-log space every interval until ctx is cancelled.
func (r *BadgerRepository) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := r.db.RunValueLogGC(0.7)
			switch {
			case err == nil:
				r.log.Info("BadgerDB GC completed successfully")
			case errors.Is(err, badger.ErrNoRewrite):
				r.log.Debug("BadgerDB GC: No rewrite needed")
			case errors.Is(err, badger.ErrGCInMemoryMode):
				r.log.Debug("BadgerDB GC skipped for in-memory database")
				return
			default:
				r.log.WithError(err).Error("BadgerDB GC failed")
			}
		case <-ctx.Done():
			r.log.Info("Stopping BadgerDB GC routine due to context cancellation")
			return
		}
	}
}

// --- BadgerDB Internal Logger ---

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Infof(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
