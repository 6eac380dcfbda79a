package remote

import (
	"errors"
	"fmt"

	"github.com/mycelian/contacts-service/internal/model"
)

// Category determines whether a failed call may be retried.
type Category int

const (
	// Transient failures are retried with linear backoff.
	// Examples: network errors, 429 Too Many Requests, 5xx.
	Transient Category = iota

	// Permanent failures surface immediately.
	// Examples: 401 Unauthorized, 403 Forbidden, 400 Bad Request.
	Permanent
)

func (c Category) String() string {
	switch c {
	case Transient:
		return "Transient"
	case Permanent:
		return "Permanent"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// RemoteError is a classified failure from the remote store.
type RemoteError struct {
	Op         string
	Category   Category
	StatusCode int    // 0 for network errors
	Code       string // store error code, e.g. object_not_found
	Message    string
	Underlying error
}

func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Message != "":
		return fmt.Sprintf("%s: [%s] HTTP %d %s: %s", e.Op, e.Category, e.StatusCode, e.Code, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s: [%s] HTTP %d", e.Op, e.Category, e.StatusCode)
	}
	return fmt.Sprintf("%s: [%s] %v", e.Op, e.Category, e.Underlying)
}

func (e *RemoteError) Unwrap() error { return e.Underlying }

// Is matches model.ErrNotFound for missing records.
func (e *RemoteError) Is(target error) bool {
	return target == model.ErrNotFound && e.notFound()
}

func (e *RemoteError) notFound() bool {
	return e.StatusCode == 404 || e.Code == "object_not_found"
}

// IsTransient reports whether err may succeed when retried.
func IsTransient(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Category == Transient
}

// IsPermanent reports whether err is a classified failure that must not be retried.
func IsPermanent(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Category == Permanent
}

// TranslationError describes one record dropped from a bulk fetch.
type TranslationError struct {
	Index int
	ID    string
	Err   error
}

func (e *TranslationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("record %d (%s): %v", e.Index, e.ID, e.Err)
	}
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }
