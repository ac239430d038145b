package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/city-events-etl/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	lat, lon := 47.6097, -122.3422
	rec := domain.EventRecord{
		URL:       "https://visitseattle.org/events/night-market/",
		Title:     "Night Market",
		EventDate: time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
		Category:  "Festivals",
		Location:  "Downtown",
		Latitude:  &lat,
		Longitude: &lon,
	}

	msg, err := serializeToMessage(rec, now)
	require.NoError(t, err)

	assert.Equal(t, []byte(rec.URL), msg.Key)
	assert.Contains(t, string(msg.Value), `"category":"Festivals"`)
	assert.Contains(t, string(msg.Value), `"latitude":47.6097`)
	assert.Contains(t, string(msg.Value), `"weather_condition":null`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "category", msg.Headers[0].Key)
	assert.Equal(t, []byte("Festivals"), msg.Headers[0].Value)
	assert.Equal(t, "scraped_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestPublish_EmptyIsNoop(t *testing.T) {
	w := NewWriter([]string{"127.0.0.1:1"}, "city-events", slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer w.Close()

	require.NoError(t, w.Publish(context.Background(), nil, time.Now()))
}
