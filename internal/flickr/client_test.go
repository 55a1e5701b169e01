package flickr

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flickrsearch/internal/domain"
)

const testAPIKey = "test-key"

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newTestClient points a client at an httptest server answering every request with handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{
		APIKey:     testAPIKey,
		Endpoint:   srv.URL + "/services/rest/",
		HTTPClient: &http.Client{Transport: rewriteTransport{target: srv.URL}},
	}, testLogger())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, srv
}

// rewriteTransport sends every request to target, keeping path and query.
// It lets CDN URLs built by domain.Photo reach the test server.
type rewriteTransport struct {
	target string
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	u, err := url.Parse(rt.target)
	if err != nil {
		return nil, err
	}
	out := req.Clone(req.Context())
	out.Header.Set("X-Original-Host", req.URL.Host)
	out.URL.Scheme = u.Scheme
	out.URL.Host = u.Host
	out.Host = u.Host
	return http.DefaultTransport.RoundTrip(out)
}

// requestRecorder captures the last request a test server saw.
type requestRecorder struct {
	mu    sync.Mutex
	host  string
	path  string
	query url.Values
}

func (r *requestRecorder) record(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.host = req.Header.Get("X-Original-Host")
	r.path = req.URL.Path
	r.query = req.URL.Query()
}

func (r *requestRecorder) last() (host, path string, query url.Values) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host, r.path, r.query
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

const okResponse = `{
  "photos": {"page": 1, "pages": 10, "perpage": 30, "total": 300, "photo": [
    {"id": "1", "owner": "o@N01", "secret": "s1", "server": "100", "farm": 1, "title": "first", "ispublic": 1},
    {"id": "2", "owner": "o@N01", "secret": "s2", "server": "200", "farm": 2, "title": "second", "ispublic": 1},
    {"id": "3", "owner": "o@N01", "secret": "s3", "server": "300", "farm": 3, "title": "third", "ispublic": 1}
  ]},
  "stat": "ok"
}`

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Options{}, testLogger())
	assert.Error(t, err, "api key is required")

	_, err = NewClient(Options{APIKey: "k", Workers: -1}, testLogger())
	assert.Error(t, err)

	_, err = NewClient(Options{APIKey: "k", Endpoint: "://bad"}, testLogger())
	assert.Error(t, err)
}

func TestClient_SearchURL(t *testing.T) {
	c, err := NewClient(Options{APIKey: testAPIKey}, testLogger())
	require.NoError(t, err)
	defer c.Close()

	u, err := url.Parse(c.SearchURL("kittens"))
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "api.flickr.com", u.Host)
	assert.Equal(t, "/services/rest/", u.Path)

	q := u.Query()
	assert.Equal(t, "flickr.photos.search", q.Get("method"))
	assert.Equal(t, testAPIKey, q.Get("api_key"))
	assert.Equal(t, "kittens", q.Get("text"))
	assert.Equal(t, "30", q.Get("per_page"))
	assert.Equal(t, "json", q.Get("format"))
	assert.Equal(t, "1", q.Get("nojsoncallback"))
}

func TestClient_SearchURLEscapesTermRoundTrip(t *testing.T) {
	c, err := NewClient(Options{APIKey: testAPIKey}, testLogger())
	require.NoError(t, err)
	defer c.Close()

	terms := []string{
		"",
		"simple",
		"two words",
		"a&b=c",
		"100% #hash ?q",
		"plus+sign/slash",
		"ünïcödé 東京 🐈",
		"line\nbreak\ttab",
		"api_key=evil&per_page=500",
	}
	for _, term := range terms {
		u, err := url.Parse(c.SearchURL(term))
		require.NoError(t, err, "term %q", term)
		q := u.Query()
		assert.Equal(t, term, q.Get("text"), "term %q", term)
		assert.Equal(t, testAPIKey, q.Get("api_key"), "term %q must not inject parameters", term)
		assert.Equal(t, "30", q.Get("per_page"), "term %q must not inject parameters", term)
	}
}

func TestClient_SearchOK(t *testing.T) {
	var rec requestRecorder
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		jsonHandler(okResponse)(w, r)
	})

	result, err := c.Search(context.Background(), "harbour boats")
	require.NoError(t, err)
	require.NotNil(t, result)

	_, _, gotQuery := rec.last()
	assert.Equal(t, "harbour boats", gotQuery.Get("text"))
	assert.Equal(t, "harbour boats", result.Term)
	require.Len(t, result.Photos, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{result.Photos[0].ID, result.Photos[1].ID, result.Photos[2].ID})
	assert.Equal(t, domain.Photo{ID: "2", Title: "second", Farm: 2, Server: "200", Secret: "s2"}, result.Photos[1])
	assert.Equal(t, "harbour boats (3)", result.Title())
}

func TestClient_SearchEmptyList(t *testing.T) {
	c, _ := newTestClient(t, jsonHandler(`{"photos":{"photo":[]},"stat":"ok"}`))

	result, err := c.Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, result.Photos)
}

func TestClient_SearchLenientElements(t *testing.T) {
	c, _ := newTestClient(t, jsonHandler(`{"stat":"ok","photos":{"photo":[
		{"id":"1","secret":"s","server":"10","farm":5},
		{"id":2,"title":["x"],"server":null,"secret":7,"farm":"5"},
		"not an object",
		{"id":"4","title":"fine","server":"40","secret":"s4","farm":4.5},
		{"id":"5","title":"last","server":"50","secret":"s5","farm":9}
	]}}`))

	result, err := c.Search(context.Background(), "t")
	require.NoError(t, err)
	require.Len(t, result.Photos, 5)

	assert.Equal(t, domain.Photo{ID: "1", Title: "", Farm: 5, Server: "10", Secret: "s"}, result.Photos[0])
	assert.Equal(t, domain.Photo{}, result.Photos[1], "wrong-typed fields degrade to zero values")
	assert.Equal(t, domain.Photo{}, result.Photos[2])
	assert.Equal(t, domain.Photo{ID: "4", Title: "fine", Farm: 0, Server: "40", Secret: "s4"}, result.Photos[3])
	assert.Equal(t, domain.Photo{ID: "5", Title: "last", Farm: 9, Server: "50", Secret: "s5"}, result.Photos[4])
}

func TestClient_SearchFarmNumberForms(t *testing.T) {
	tests := []struct {
		farm string
		want int
	}{
		{farm: `7`, want: 7},
		{farm: `5.0`, want: 5},
		{farm: `6e0`, want: 6},
		{farm: `-0.0`, want: 0},
		{farm: `4.5`, want: 0},
		{farm: `"5"`, want: 0},
		{farm: `1e300`, want: 0},
		{farm: `null`, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.farm, func(t *testing.T) {
			c, _ := newTestClient(t, jsonHandler(`{"stat":"ok","photos":{"photo":[{"id":"1","farm":`+tt.farm+`}]}}`))

			result, err := c.Search(context.Background(), "t")
			require.NoError(t, err)
			require.Len(t, result.Photos, 1)
			assert.Equal(t, tt.want, result.Photos[0].Farm)
		})
	}
}

func TestClient_SearchAPIErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"fail with message", `{"stat":"fail","code":100,"message":"Invalid API Key (Key has invalid format)"}`, "Invalid API Key (Key has invalid format)"},
		{"fail without message", `{"stat":"fail","code":1}`, ""},
		{"unknown stat", `{"stat":"weird","photos":{"photo":[]}}`, UnknownResponseMessage},
		{"missing stat", `{"photos":{"photo":[]}}`, UnknownResponseMessage},
		{"non-string stat", `{"stat":1}`, UnknownResponseMessage},
		{"stat case matters", `{"stat":"OK","photos":{"photo":[]}}`, UnknownResponseMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, jsonHandler(tt.body))

			result, err := c.Search(context.Background(), "x")
			assert.Nil(t, result)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}
}

func TestClient_SearchDecodeErrors(t *testing.T) {
	bodies := map[string]string{
		"empty body":         ``,
		"not json":           `jsonFlickrApi({"stat":"ok"})`,
		"truncated":          `{"stat":"ok","photos":{"photo":[`,
		"array top level":    `[{"stat":"ok"}]`,
		"null top level":     `null`,
		"trailing data":      `{"stat":"ok","photos":{"photo":[]}} {}`,
		"missing photos":     `{"stat":"ok"}`,
		"photos not object":  `{"stat":"ok","photos":[]}`,
		"missing photo list": `{"stat":"ok","photos":{"page":1}}`,
		"photo list object":  `{"stat":"ok","photos":{"photo":{"id":"1"}}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, jsonHandler(body))

			result, err := c.Search(context.Background(), "x")
			assert.Nil(t, result)

			var decodeErr *DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestClient_SearchIgnoresHTTPStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"stat":"fail","message":"Service currently unavailable"}`)
	})

	_, err := c.Search(context.Background(), "x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Service currently unavailable", apiErr.Message)
}

func TestClient_SearchTransportError(t *testing.T) {
	// Grab a free port and close it so the connection is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c, err := NewClient(Options{APIKey: testAPIKey, Endpoint: "http://" + addr + "/services/rest/"}, testLogger())
	require.NoError(t, err)
	defer c.Close()

	result, err := c.Search(context.Background(), "x")
	assert.Nil(t, result)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.NotNil(t, errors.Unwrap(err))
	assert.NotContains(t, err.Error(), testAPIKey, "api key must not leak into errors")
}

func TestClient_SearchAsyncDeliversOnDispatcher(t *testing.T) {
	c, _ := newTestClient(t, jsonHandler(okResponse))

	done := make(chan struct{})
	var got *domain.SearchResult
	var gotErr error
	c.SearchAsync("async", func(result *domain.SearchResult, err error) {
		got, gotErr = result, err
		close(done)
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("completion was not called")
	}
	require.NoError(t, gotErr)
	assert.Equal(t, "async", got.Term)
	assert.Len(t, got.Photos, 3)
}

func TestClient_AsyncCallbacksNeverOverlap(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(okResponse))
	defer srv.Close()

	queue := NewSerialQueue(context.Background())
	c, err := NewClient(Options{
		APIKey:    testAPIKey,
		Endpoint:  srv.URL,
		Workers:   8,
		Callbacks: queue,
	}, testLogger())
	require.NoError(t, err)

	const calls = 20
	var running, maxRunning int32
	var wg sync.WaitGroup
	wg.Add(calls)
	for i := 0; i < calls; i++ {
		c.SearchAsync("x", func(result *domain.SearchResult, err error) {
			defer wg.Done()
			n := atomic.AddInt32(&running, 1)
			if n > atomic.LoadInt32(&maxRunning) {
				atomic.StoreInt32(&maxRunning, n)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&running, -1)
		})
	}
	wg.Wait()
	c.Close()
	queue.Close()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxRunning), "callbacks must run one at a time")
}

func TestClient_AsyncUsesCustomDispatcher(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`{"stat":"fail","message":"nope"}`))
	defer srv.Close()

	var dispatched int32
	done := make(chan error, 1)
	c, err := NewClient(Options{
		APIKey:   testAPIKey,
		Endpoint: srv.URL,
		Callbacks: DispatcherFunc(func(fn func()) {
			atomic.AddInt32(&dispatched, 1)
			fn()
		}),
	}, testLogger())
	require.NoError(t, err)
	defer c.Close()

	c.SearchAsync("x", func(result *domain.SearchResult, err error) {
		assert.Nil(t, result)
		done <- err
	})

	select {
	case err := <-done:
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "nope", apiErr.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("completion was not called")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&dispatched))
}

func TestRedact(t *testing.T) {
	out := redact("https://api.flickr.com/services/rest/?api_key=secret&text=a")
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "text=a")

	assert.Equal(t, "https://farm1.staticflickr.com/1/2_3_m.jpg", redact("https://farm1.staticflickr.com/1/2_3_m.jpg"))
}
