package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for out-of-range call parameters.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidConfig is returned when configuration cannot be used.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrIndexCorrupted marks index contents that cannot be decoded.
	ErrIndexCorrupted = errors.New("index corrupted")

	// ErrUnsupportedDocument is returned when no extractor handles a file.
	ErrUnsupportedDocument = errors.New("unsupported document")
)

// PageError reports a single page whose text could not be extracted.
type PageError struct {
	Page int // 1-based
	Err  error
}

func (e *PageError) Error() string { return fmt.Sprintf("page %d: %v", e.Page, e.Err) }

func (e *PageError) Unwrap() error { return e.Err }

// FailedPages collects the page errors carried by err, keyed by page number.
// It returns nil when err holds anything other than page errors, so callers
// can tell a partial extraction from a failed document.
func FailedPages(err error) map[int]error {
	if err == nil {
		return nil
	}
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	failed := make(map[int]error, len(errs))
	for _, e := range errs {
		var pe *PageError
		if !errors.As(e, &pe) {
			return nil
		}
		failed[pe.Page] = pe.Err
	}
	if len(failed) == 0 {
		return nil
	}
	return failed
}
