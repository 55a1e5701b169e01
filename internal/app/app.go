// Package app wires configuration, logging, the Flickr client and the
// favorite store together for the binaries under cmd/.
package app

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"flickrsearch/internal/config"
	"flickrsearch/internal/flickr"
	"flickrsearch/internal/storage"
)

// App is the set of long-lived components shared by every front end.
type App struct {
	Config    config.Config
	Log       *logrus.Logger
	Flickr    *flickr.Client
	Favorites *storage.BadgerRepository
}

// NewLogger builds the JSON logger used by all binaries.
func NewLogger(out io.Writer, level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(out)
	log.SetLevel(level)
	return log
}

// New opens the favorite store and creates the Flickr client.
// callbacks may be nil, in which case the client runs its own serial queue.
func New(cfg config.Config, log *logrus.Logger, callbacks flickr.Dispatcher) (*App, error) {
	a, err := NewStore(cfg, log)
	if err != nil {
		return nil, err
	}

	client, err := flickr.NewClient(flickr.Options{
		APIKey:    cfg.FlickrAPIKey,
		Endpoint:  cfg.FlickrEndpoint,
		Workers:   cfg.FetchWorkers,
		Callbacks: callbacks,
	}, log)
	if err != nil {
		_ = a.Favorites.Close()
		return nil, fmt.Errorf("failed to initialize flickr client: %w", err)
	}
	a.Flickr = client
	return a, nil
}

// NewStore opens only the favorite store. The returned App has no Flickr client.
func NewStore(cfg config.Config, log *logrus.Logger) (*App, error) {
	log.WithFields(logrus.Fields{
		"badgerdb_path": cfg.BadgerDBPath,
		"log_level":     cfg.LogLevel,
	}).Info("Configuration loaded successfully")

	favorites, err := storage.NewBadgerRepository(cfg.BadgerDBPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &App{
		Config:    cfg,
		Log:       log,
		Favorites: favorites,
	}, nil
}

// Close drains the client, if any, and closes the database.
func (a *App) Close() error {
	if a.Flickr != nil {
		a.Flickr.Close()
	}
	a.Log.Info("Closing database...")
	if err := a.Favorites.Close(); err != nil {
		a.Log.WithError(err).Error("Error closing database")
		return err
	}
	return nil
}
