package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPageCountNotFound means page 1 of the index has no last-page marker.
	// Without a bound the link list is unusable, so the run is aborted.
	ErrPageCountNotFound = errors.New("page count not found on index page 1")

	// ErrFieldMissing means a required detail page pattern did not match.
	ErrFieldMissing = errors.New("required field missing")

	// ErrNoGeocodeResult means every geocoding fallback query came back empty.
	ErrNoGeocodeResult = errors.New("no geocoding result")

	// ErrWeatherUnavailable covers every weather lookup failure: grid point,
	// forecast, grid data or a missing key in any response.
	ErrWeatherUnavailable = errors.New("weather unavailable")

	// ErrMisaligned means a batch's link and record lists have diverged.
	ErrMisaligned = errors.New("link and record lists are not aligned")
)

// PageFetchError identifies the index page that could not be fetched.
type PageFetchError struct {
	Page int
	Err  error
}

func (e *PageFetchError) Error() string {
	return fmt.Sprintf("fetch index page %d: %v", e.Page, e.Err)
}

func (e *PageFetchError) Unwrap() error { return e.Err }

// StageError attaches the failing stage and URL to a record-level error.
type StageError struct {
	Stage Stage
	URL   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.URL, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// MissingField wraps ErrFieldMissing with the name of the field.
func MissingField(field string) error {
	return fmt.Errorf("%w: %s", ErrFieldMissing, field)
}
