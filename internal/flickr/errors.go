package flickr

import "fmt"

// UnknownResponseMessage is the APIError message for a status the client does not recognise.
const UnknownResponseMessage = "Unknown API response"

// TransportError means the request never produced a response: DNS, connect, TLS or read failure.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("flickr: transport error for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError means the response body was not JSON or did not have the expected shape.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("flickr: decode error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// APIError is a failure reported by the API itself (stat "fail" or an unrecognised stat).
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "flickr: api error"
	}
	return "flickr: api error: " + e.Message
}
