package mapbox

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/couchcryptid/city-events-etl/internal/domain"
)

// Getter is the HTTP surface the client needs; *web.Client satisfies it.
type Getter interface {
	GetJSON(ctx context.Context, url string, v any) error
}

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token   string
	http    Getter
	baseURL string
	limit   int
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, http Getter) *Client {
	return &Client{
		token:   token,
		http:    http,
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		limit:   1,
	}
}

// Search converts a free-text place query to coordinates.
func (c *Client) Search(ctx context.Context, query string) ([]domain.Coordinates, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {strconv.Itoa(c.limit)},
		"types":        {"poi,address,neighborhood,locality,place"},
	}

	var resp response
	if err := c.http.GetJSON(ctx, u+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("mapbox search: %w", err)
	}

	out := make([]domain.Coordinates, 0, len(resp.Features))
	for _, f := range resp.Features {
		if len(f.Center) != 2 {
			continue
		}
		out = append(out, domain.Coordinates{Lat: f.Center[1], Lon: f.Center[0]})
	}
	return out, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}
