package flickr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alitto/pond/v2"
	"github.com/sirupsen/logrus"

	"flickrsearch/internal/domain"
)

const (
	// DefaultEndpoint is the public Flickr REST endpoint.
	DefaultEndpoint = "https://api.flickr.com/services/rest/"

	// PerPage is the fixed number of results requested per search.
	PerPage = 30

	searchMethod = "flickr.photos.search"
)

// Searcher is the part of the client the front ends depend on.
type Searcher interface {
	Search(ctx context.Context, term string) (*domain.SearchResult, error)
	FetchImage(ctx context.Context, photo domain.Photo, size domain.Size) (*domain.Image, error)
}

// Options configures a Client.
type Options struct {
	// APIKey is sent as api_key on every search. Required.
	APIKey string

	// Endpoint overrides DefaultEndpoint.
	Endpoint string

	// HTTPClient defaults to a plain &http.Client{} (transport defaults, no timeout override).
	HTTPClient *http.Client

	// Workers bounds concurrent background requests of the *Async methods. 0 means unbounded.
	Workers int

	// Callbacks receives every *Async completion. Defaults to a SerialQueue owned by the client.
	Callbacks Dispatcher
}

// Client talks to the Flickr REST API and the static image CDN.
// It keeps no per-call state; one instance can be shared freely.
type Client struct {
	http     *http.Client
	apiKey   string
	endpoint *url.URL

	workers   pond.Pool
	callbacks Dispatcher
	ownQueue  *SerialQueue

	// ctx scopes the *Async calls; it is only cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	log logrus.FieldLogger
}

// NewClient creates a client from opts.
func NewClient(opts Options, logger logrus.FieldLogger) (*Client, error) {
	log := logger.WithField("component", "flickr")

	if opts.APIKey == "" {
		return nil, errors.New("flickr: api key is required")
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("flickr: workers must not be negative, got %d", opts.Workers)
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		log.WithError(err).Error("Invalid Flickr endpoint")
		return nil, fmt.Errorf("flickr: invalid endpoint %q: %w", endpoint, err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		http:     httpClient,
		apiKey:   opts.APIKey,
		endpoint: u,
		workers:  pond.NewPool(opts.Workers),
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}
	c.callbacks = opts.Callbacks
	if c.callbacks == nil {
		c.ownQueue = NewSerialQueue(ctx)
		c.callbacks = c.ownQueue
	}

	log.WithFields(logrus.Fields{
		"endpoint": u.Host + u.Path,
		"workers":  opts.Workers,
	}).Info("Flickr client initialized")
	return c, nil
}

// Close waits for in-flight async calls and their callbacks, then releases the pools.
// Async calls issued after Close are dropped.
func (c *Client) Close() {
	_ = c.workers.Stop().Wait()
	if c.ownQueue != nil {
		c.ownQueue.Close()
	}
	c.cancel()
	c.log.Debug("Flickr client closed")
}

// SearchURL builds the photo search request URL for term.
func (c *Client) SearchURL(term string) string {
	u := *c.endpoint
	q := u.Query()
	q.Set("method", searchMethod)
	q.Set("api_key", c.apiKey)
	q.Set("text", term)
	q.Set("per_page", strconv.Itoa(PerPage))
	q.Set("format", "json")
	q.Set("nojsoncallback", "1")
	u.RawQuery = q.Encode()
	return u.String()
}

// Search runs one photo search and maps the response into photos.
// Errors are *TransportError, *DecodeError or *APIError.
func (c *Client) Search(ctx context.Context, term string) (*domain.SearchResult, error) {
	log := c.log.WithField("term", term)
	log.Debug("Searching photos")

	body, err := c.get(ctx, c.SearchURL(term))
	if err != nil {
		log.WithError(err).Warn("Search request failed")
		return nil, err
	}

	photos, err := parseSearchResponse(body)
	if err != nil {
		log.WithError(err).Warn("Search response rejected")
		return nil, err
	}

	log.WithField("photo_count", len(photos)).Info("Search completed")
	return &domain.SearchResult{Term: term, Photos: photos}, nil
}

// SearchAsync runs Search in the background and hands the outcome to the
// client's Dispatcher. It never blocks and cannot be cancelled.
func (c *Client) SearchAsync(term string, onComplete func(*domain.SearchResult, error)) {
	c.workers.Submit(func() {
		result, err := c.Search(c.ctx, term)
		c.callbacks.Dispatch(func() { onComplete(result, err) })
	})
}

// get performs one GET and returns the full body. Any failure before the body
// is fully read is a TransportError; HTTP status codes are not interpreted.
func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &TransportError{URL: redact(target), Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// *url.Error repeats the full URL, api key included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, &TransportError{URL: redact(target), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.WithFields(logrus.Fields{
			"url":    redact(target),
			"status": resp.StatusCode,
		}).Warn("Unexpected HTTP status")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: redact(target), Err: err}
	}
	return body, nil
}

// redact strips the api key from a URL before it reaches logs or errors.
func redact(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
