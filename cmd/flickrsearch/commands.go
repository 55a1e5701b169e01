package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"flickrsearch/internal/domain"
	"flickrsearch/internal/flickr"
	"flickrsearch/internal/storage"
)

// asyncFetcher is the part of *flickr.Client used for bulk thumbnail downloads.
type asyncFetcher interface {
	FetchImageAsync(photo domain.Photo, size domain.Size, onComplete func(domain.Photo, *domain.Image, error))
}

// commands holds what every subcommand needs.
type commands struct {
	searcher  flickr.Searcher
	fetcher   asyncFetcher
	favorites storage.FavoriteStore
	out       io.Writer
	log       logrus.FieldLogger
}

// search prints "term (n)" and one line per photo, favorites marked with ♥.
func (c *commands) search(ctx context.Context, term, outDir string) error {
	result, err := c.searcher.Search(ctx, term)
	if err != nil {
		return fmt.Errorf("search %q: %w", term, err)
	}

	fmt.Fprintln(c.out, result.Title())
	for _, p := range result.Photos {
		fav, err := c.favorites.IsFavorite(ctx, p.ID)
		if err != nil {
			c.log.WithError(err).WithField("photo_id", p.ID).Warn("Could not read favorite")
		}
		fmt.Fprintf(c.out, "%s %s\t%s\t%s\n", heart(fav), p.ID, displayTitle(p.Title), p.ImageURL(domain.Thumbnail))
	}

	if outDir == "" {
		return nil
	}
	return c.downloadThumbnails(result.Photos, outDir)
}

// downloadThumbnails fetches every thumbnail in the background. Completions
// arrive one at a time on the client's callback queue, so the counters they
// touch are only shared with this goroutine after wg.Wait.
func (c *commands) downloadThumbnails(photos []domain.Photo, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	var (
		wg       sync.WaitGroup
		saved    int
		skipped  int
		noID     int
		failures []error
	)
	for _, p := range photos {
		if p.ID == "" {
			noID++
			continue
		}
		wg.Add(1)
		c.fetcher.FetchImageAsync(p, domain.Thumbnail, func(photo domain.Photo, img *domain.Image, err error) {
			defer wg.Done()
			switch {
			case err != nil:
				failures = append(failures, fmt.Errorf("photo %s: %w", photo.ID, err))
			case img == nil:
				skipped++
			default:
				name := filepath.Join(dir, fmt.Sprintf("%s_%s.%s", photo.ID, domain.Thumbnail, img.Format))
				if err := os.WriteFile(name, img.Data, 0o644); err != nil {
					failures = append(failures, fmt.Errorf("photo %s: %w", photo.ID, err))
					return
				}
				saved++
			}
		})
	}
	wg.Wait()

	if noID > 0 {
		c.log.WithField("count", noID).Warn("Skipped photos without id")
	}
	skipped += noID

	fmt.Fprintf(c.out, "saved %d, skipped %d, failed %d thumbnails in %s\n", saved, skipped, len(failures), dir)
	return errors.Join(failures...)
}

// toggleFavorite flips one photo's flag and prints the new state.
func (c *commands) toggleFavorite(ctx context.Context, photoID string) error {
	fav, err := c.favorites.ToggleFavorite(ctx, photoID)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %s\n", heart(fav), photoID)
	return nil
}

// listFavorites prints one favorite id per line.
func (c *commands) listFavorites(ctx context.Context) error {
	ids, err := c.favorites.ListFavorites(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(c.out, id)
	}
	return nil
}

// fetch downloads one rendition of a photo to outFile.
func (c *commands) fetch(ctx context.Context, photo domain.Photo, size domain.Size, outFile string) error {
	img, err := c.searcher.FetchImage(ctx, photo, size)
	if err != nil {
		return err
	}
	if img == nil {
		fmt.Fprintln(c.out, "nothing to display")
		return nil
	}
	if err := os.WriteFile(outFile, img.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outFile, err)
	}
	fmt.Fprintf(c.out, "%s %dx%d %d bytes -> %s\n", img.Format, img.Width, img.Height, len(img.Data), outFile)
	return nil
}

func heart(favorite bool) string {
	if favorite {
		return "♥"
	}
	return " "
}

func displayTitle(title string) string {
	if title == "" {
		return "(untitled)"
	}
	return title
}
