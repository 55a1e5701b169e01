package flickr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"flickrsearch/internal/domain"
)

// parseSearchResponse decodes a flickr.photos.search envelope.
//
//	{"stat":"ok","photos":{"photo":[{"id":"..","title":"..","farm":1,"server":"..","secret":".."}]}}
//	{"stat":"fail","code":100,"message":"Invalid API Key"}
func parseSearchResponse(body []byte) ([]domain.Photo, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var envelope map[string]any
	if err := dec.Decode(&envelope); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if envelope == nil {
		return nil, &DecodeError{Err: errors.New("response is null")}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &DecodeError{Err: errors.New("unexpected data after response object")}
	}

	// stat is an open set; only "ok" and "fail" have meaning.
	stat, _ := envelope["stat"].(string)
	switch stat {
	case "ok":
	case "fail":
		message, _ := envelope["message"].(string)
		return nil, &APIError{Message: message}
	default:
		return nil, &APIError{Message: UnknownResponseMessage}
	}

	container, ok := envelope["photos"].(map[string]any)
	if !ok {
		return nil, &DecodeError{Err: fmt.Errorf("missing photos container")}
	}
	list, ok := container["photo"].([]any)
	if !ok {
		return nil, &DecodeError{Err: fmt.Errorf("missing photos.photo list")}
	}

	photos := make([]domain.Photo, len(list))
	for i, element := range list {
		photos[i] = photoFromJSON(element)
	}
	return photos, nil
}

// photoFromJSON maps one element leniently: absent or mistyped fields become zero values.
func photoFromJSON(element any) domain.Photo {
	fields, _ := element.(map[string]any)
	return domain.Photo{
		ID:     stringField(fields, "id"),
		Title:  stringField(fields, "title"),
		Farm:   intField(fields, "farm"),
		Server: stringField(fields, "server"),
		Secret: stringField(fields, "secret"),
	}
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func intField(fields map[string]any, key string) int {
	n, ok := fields[key].(json.Number)
	if !ok {
		return 0
	}
	if i, err := n.Int64(); err == nil {
		return int(i)
	}
	// Integral floats such as 5.0 count; 4.5 does not.
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}
