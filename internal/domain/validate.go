package domain

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrInvalidRecord is returned by ValidateRecord.
var ErrInvalidRecord = errors.New("invalid event record")

// ValidateRecord checks the struct tags on EventRecord and the enrichment
// invariants: coordinates come as a pair, and weather requires coordinates.
func ValidateRecord(rec EventRecord) error {
	if err := validate.Struct(rec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if (rec.Latitude == nil) != (rec.Longitude == nil) {
		return fmt.Errorf("%w: latitude and longitude must be set together", ErrInvalidRecord)
	}
	if !rec.HasCoordinates() && rec.HasWeather() {
		return fmt.Errorf("%w: weather fields set without coordinates", ErrInvalidRecord)
	}
	return nil
}
