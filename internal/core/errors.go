package core

import (
	"errors"
	"fmt"
)

// Setup errors are reported before any page is fetched.
var (
	ErrNothingSelected   = errors.New("nothing is selected to import")
	ErrMissingDocumentID = errors.New("document id is not specified")
	ErrUnsupportedTarget = errors.New("unsupported target")
	ErrUnsupportedField  = errors.New("unsupported field type")
	ErrUnknownPage       = errors.New("unknown page")
	ErrContainerNotFound = errors.New("container not found")
)

// Transport and data errors abort the run.
var (
	ErrFetch        = errors.New("page fetch failed")
	ErrBadURL       = errors.New("bad url")
	ErrPageTooLarge = errors.New("page too large")
	ErrEmptyPage    = errors.New("page has no data rows")
)

// Run lifecycle errors.
var (
	ErrCancelled     = errors.New("import cancelled")
	ErrImporterUsed  = errors.New("importer already used")
	ErrRunInProgress = errors.New("an import is already running for this container")
	ErrRunNotFound   = errors.New("import run not found")
)

// TargetError ties a failure to the destination field it happened on.
type TargetError struct {
	Field string
	Page  string
	Err   error
}

func (e *TargetError) Error() string {
	if e.Page != "" {
		return fmt.Sprintf("%s (page %q): %v", e.Field, e.Page, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *TargetError) Unwrap() error {
	return e.Err
}

// FetchError describes a failed page download.
type FetchError struct {
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%v: %s returned HTTP %d", ErrFetch, e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%v: %s: %v", ErrFetch, e.URL, e.Err)
	default:
		return fmt.Sprintf("%v: %s", ErrFetch, e.URL)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports every FetchError as ErrFetch.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}
