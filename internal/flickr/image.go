package flickr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/sirupsen/logrus"

	"flickrsearch/internal/domain"
)

// FetchImage downloads the photo at the given size.
//
// A (nil, nil) return means the server answered without anything displayable:
// an empty body, or bytes that are not an image. Callers show nothing in that
// case rather than an error.
func (c *Client) FetchImage(ctx context.Context, photo domain.Photo, size domain.Size) (*domain.Image, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("flickr: unsupported image size %q", size)
	}

	target := photo.ImageURL(size)
	log := c.log.WithFields(logrus.Fields{
		"photo_id": photo.ID,
		"size":     string(size),
	})

	body, err := c.get(ctx, target)
	if err != nil {
		log.WithError(err).Warn("Image request failed")
		return nil, err
	}
	if len(body) == 0 {
		log.Debug("Image response was empty")
		return nil, nil
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		log.WithError(err).Warn("Image response is not a decodable image")
		return nil, nil
	}

	log.WithField("bytes", len(body)).Debug("Image fetched")
	return &domain.Image{
		Data:   body,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// FetchImageAsync runs FetchImage in the background and hands the outcome to
// the client's Dispatcher. Callers that may have moved on (a recycled grid cell,
// a newer search) compare the photo they get back with Photo.Equal.
func (c *Client) FetchImageAsync(photo domain.Photo, size domain.Size, onComplete func(domain.Photo, *domain.Image, error)) {
	c.workers.Submit(func() {
		img, err := c.FetchImage(c.ctx, photo, size)
		c.callbacks.Dispatch(func() { onComplete(photo, img, err) })
	})
}

// FetchThumbnail is FetchImage at Thumbnail size.
func (c *Client) FetchThumbnail(ctx context.Context, photo domain.Photo) (*domain.Image, error) {
	return c.FetchImage(ctx, photo, domain.Thumbnail)
}

// FetchLarge is FetchImage at Large size.
func (c *Client) FetchLarge(ctx context.Context, photo domain.Photo) (*domain.Image, error) {
	return c.FetchImage(ctx, photo, domain.Large)
}
