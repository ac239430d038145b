// Package nominatim implements domain.Geocoder against an OpenStreetMap
// Nominatim search endpoint.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/city-events-etl/internal/domain"
)

// Getter is the HTTP surface the client needs; *web.Client satisfies it.
type Getter interface {
	GetJSON(ctx context.Context, url string, v any) error
}

// Client implements domain.Geocoder using the Nominatim search API.
type Client struct {
	http    Getter
	baseURL string
	limit   int
}

// NewClient creates a Nominatim client rooted at baseURL
// (e.g. https://nominatim.openstreetmap.org).
func NewClient(http Getter, baseURL string) *Client {
	return &Client{
		http:    http,
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   1,
	}
}

// Search converts a free-text query to candidate coordinates.
func (c *Client) Search(ctx context.Context, query string) ([]domain.Coordinates, error) {
	params := url.Values{
		"q":      {query},
		"format": {"jsonv2"},
		"limit":  {strconv.Itoa(c.limit)},
	}

	var places []place
	if err := c.http.GetJSON(ctx, c.baseURL+"/search?"+params.Encode(), &places); err != nil {
		return nil, fmt.Errorf("nominatim search: %w", err)
	}

	out := make([]domain.Coordinates, 0, len(places))
	for _, p := range places {
		out = append(out, domain.Coordinates{Lat: float64(p.Lat), Lon: float64(p.Lon)})
	}
	return out, nil
}

// Nominatim API response types.

type place struct {
	Lat         flexFloat `json:"lat"`
	Lon         flexFloat `json:"lon"`
	DisplayName string    `json:"display_name"`
}

// flexFloat accepts a JSON number or a numeric string; Nominatim sends
// strings, most other geocoders send numbers.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		var s string
		if err2 := json.Unmarshal(b, &s); err2 != nil {
			return fmt.Errorf("coordinate %s: %w", b, err)
		}
		n = json.Number(strings.TrimSpace(s))
	}
	v, err := n.Float64()
	if err != nil {
		return fmt.Errorf("coordinate %s: %w", b, err)
	}
	*f = flexFloat(v)
	return nil
}
