package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidID is reported when the backend rejects an id as malformed (400).
	ErrInvalidID = errors.New("invalid record id")
	// ErrNotFound is reported when the requested record does not exist (404).
	ErrNotFound = errors.New("record not found")
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: backend returned status %d", e.Op, e.StatusCode)
}

// Unwrap maps the statuses the pages tell apart onto sentinels.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return ErrInvalidID
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}
