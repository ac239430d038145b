package domain

import (
	"time"
)

// Positional contract for the tag buttons on a detail page. The markup gives
// no label, so the order is the only thing telling category from location.
const (
	TagIndexCategory = 0
	TagIndexLocation = 1
)

// LinkEntry is a detail page URL discovered on an index page.
type LinkEntry struct {
	URL  string
	Page int // index page the link was found on, 0 when re-queued from the ledger
}

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Forecast is the weather data attached to an event.
type Forecast struct {
	Condition      string
	TemperatureMin float64
	TemperatureMax float64
	WindChill      float64
}

// EventRecord is the unit of work from extraction through persistence.
// Pointer fields are NULL until the matching enrichment succeeds.
type EventRecord struct {
	URL       string    `json:"url" validate:"required,url"`
	Title     string    `json:"title" validate:"required"`
	EventDate time.Time `json:"date" validate:"required"`
	Venue     string    `json:"venue"`
	Category  string    `json:"category"`
	Location  string    `json:"location"`

	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	WeatherCondition *string  `json:"weather_condition"`
	TemperatureMin   *float64 `json:"temperature_min"`
	TemperatureMax   *float64 `json:"temperature_max"`
	WindChill        *float64 `json:"wind_chill"`
}

// HasCoordinates reports whether geocoding has populated the record.
func (r EventRecord) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Coordinates returns the record's coordinates and whether they are set.
func (r EventRecord) Coordinates() (Coordinates, bool) {
	if !r.HasCoordinates() {
		return Coordinates{}, false
	}
	return Coordinates{Lat: *r.Latitude, Lon: *r.Longitude}, true
}

// HasWeather reports whether any weather field is populated.
func (r EventRecord) HasWeather() bool {
	return r.WeatherCondition != nil || r.TemperatureMin != nil || r.TemperatureMax != nil || r.WindChill != nil
}

// Stage names a pipeline step that can fail for a single record.
type Stage string

const (
	StageExtract Stage = "extract"
	StageGeocode Stage = "geocode"
	StageWeather Stage = "weather"
)

// Failure is a record-level failure tagged with the index of the record in
// the batch it belongs to.
type Failure struct {
	Index int
	Link  LinkEntry
	Stage Stage
	Err   error
}

// Batch pairs links with the records extracted from them. Links[i] is always
// the source of Records[i].
type Batch struct {
	Links   []LinkEntry
	Records []EventRecord
}

// Len returns the number of paired entries.
func (b Batch) Len() int { return len(b.Records) }

// WeatherPolicy decides what a weather-only failure does to a record.
type WeatherPolicy string

const (
	// WeatherPolicyDrop removes the record so the link is retried next run.
	WeatherPolicyDrop WeatherPolicy = "drop"
	// WeatherPolicyKeep persists the record with null weather fields.
	WeatherPolicyKeep WeatherPolicy = "keep"
)

// RunReport summarizes one pipeline run.
type RunReport struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Pages     int
	Collected int
	Planned   int
	Extracted int
	Failed    map[Stage]int
	Inserted  int
	Existing  int
	Abandoned int
}
