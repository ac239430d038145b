package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone database for SOURCE_TIMEZONE on minimal images

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/city-events-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Source site.
	SourceBaseURL  string
	SourceTimezone *time.Location
	Region         string

	// Storage.
	DatabaseURL string
	LedgerPath  string

	// Geocoding.
	Geocoder         string // "nominatim" or "mapbox"
	NominatimURL     string
	MapboxToken      string
	GeocodeCacheSize int

	WeatherBaseURL string

	// Outbound HTTP behaviour shared by every client.
	UserAgent      string
	Concurrency    int
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RateLimit      float64

	// Run control.
	RunTimeout      time.Duration
	Schedule        string
	WeatherPolicy   domain.WeatherPolicy
	MaxLinkAttempts int
	LinkBackoffBase time.Duration
	Incremental     bool

	// Optional event feed.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	tzName := sharedcfg.EnvOrDefault("SOURCE_TIMEZONE", "America/Los_Angeles")
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid SOURCE_TIMEZONE %q: %w", tzName, err)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		SourceBaseURL:  sharedcfg.EnvOrDefault("SOURCE_BASE_URL", "https://visitseattle.org/events/page/"),
		SourceTimezone: tz,
		Region:         sharedcfg.EnvOrDefault("REGION", "Seattle"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		LedgerPath:  sharedcfg.EnvOrDefault("LEDGER_PATH", "./data/ledger.db"),

		Geocoder:     strings.ToLower(sharedcfg.EnvOrDefault("GEOCODER", "nominatim")),
		NominatimURL: sharedcfg.EnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		MapboxToken:  os.Getenv("MAPBOX_TOKEN"),

		WeatherBaseURL: sharedcfg.EnvOrDefault("WEATHER_BASE_URL", "https://api.weather.gov"),
		UserAgent:      sharedcfg.EnvOrDefault("USER_AGENT", "city-events-etl (ops@example.com)"),

		Schedule:      sharedcfg.EnvOrDefault("SCHEDULE", "@every 6h"),
		WeatherPolicy: domain.WeatherPolicy(strings.ToLower(sharedcfg.EnvOrDefault("WEATHER_FAILURE_POLICY", string(domain.WeatherPolicyDrop)))),

		KafkaBrokers: parseList(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "city-events"),
	}

	if cfg.GeocodeCacheSize, err = parseInt("GEOCODE_CACHE_SIZE", 1000, 1, 1_000_000); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = parseInt("CONCURRENCY", 4, 1, 32); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = parseInt("MAX_RETRIES", 3, 0, 10); err != nil {
		return nil, err
	}
	if cfg.MaxLinkAttempts, err = parseInt("MAX_LINK_ATTEMPTS", 5, 1, 100); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = parseDuration("REQUEST_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RetryBaseDelay, err = parseDuration("RETRY_BASE_DELAY", "500ms"); err != nil {
		return nil, err
	}
	if cfg.RunTimeout, err = parseDuration("RUN_TIMEOUT", "30m"); err != nil {
		return nil, err
	}
	if cfg.LinkBackoffBase, err = parseDuration("LINK_BACKOFF_BASE", "1h"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = parseRate(); err != nil {
		return nil, err
	}
	if cfg.Incremental, err = parseBool("INCREMENTAL", true); err != nil {
		return nil, err
	}
	if cfg.KafkaEnabled, err = parseBool("KAFKA_ENABLED", false); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	switch cfg.Geocoder {
	case "nominatim":
	case "mapbox":
		if cfg.MapboxToken == "" {
			return nil, errors.New("GEOCODER is mapbox but MAPBOX_TOKEN is not set")
		}
	default:
		return nil, fmt.Errorf("invalid GEOCODER %q: want nominatim or mapbox", cfg.Geocoder)
	}
	switch cfg.WeatherPolicy {
	case domain.WeatherPolicyDrop, domain.WeatherPolicyKeep:
	default:
		return nil, fmt.Errorf("invalid WEATHER_FAILURE_POLICY %q: want drop or keep", cfg.WeatherPolicy)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}

	return cfg, nil
}

func parseInt(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s %q: want an integer in [%d, %d]", key, s, lo, hi)
	}
	return n, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}

func parseRate() (float64, error) {
	s := sharedcfg.EnvOrDefault("RATE_LIMIT", "5")
	r, err := strconv.ParseFloat(s, 64)
	if err != nil || r <= 0 {
		return 0, fmt.Errorf("invalid RATE_LIMIT %q: want requests per second > 0", s)
	}
	return r, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, s)
	}
	return b, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
