package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	httpadapter "github.com/couchcryptid/city-events-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/city-events-etl/internal/adapter/kafka"
	"github.com/couchcryptid/city-events-etl/internal/adapter/ledger"
	"github.com/couchcryptid/city-events-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/city-events-etl/internal/adapter/nominatim"
	"github.com/couchcryptid/city-events-etl/internal/adapter/nws"
	"github.com/couchcryptid/city-events-etl/internal/adapter/postgres"
	"github.com/couchcryptid/city-events-etl/internal/adapter/web"
	"github.com/couchcryptid/city-events-etl/internal/config"
	"github.com/couchcryptid/city-events-etl/internal/domain"
	"github.com/couchcryptid/city-events-etl/internal/observability"
	"github.com/couchcryptid/city-events-etl/internal/pipeline"
	"github.com/couchcryptid/city-events-etl/internal/source"
)

// nominatimRateLimit is the public Nominatim usage policy ceiling.
const nominatimRateLimit = 1.0

func main() {
	once := flag.Bool("once", false, "run the pipeline a single time and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, *once, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, once bool, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := postgres.Migrate(ctx, cfg.DatabaseURL, logger); err != nil {
		return err
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database pool: %w", err)
	}
	defer pool.Close()
	store := postgres.NewStore(pool, cfg.SourceTimezone)

	lg, err := ledger.Open(ctx, cfg.LedgerPath, cfg.MaxLinkAttempts, cfg.LinkBackoffBase)
	if err != nil {
		return err
	}
	defer lg.Close()

	httpOpts := func(service, accept string, rateLimit float64) web.Options {
		return web.Options{
			Service:    service,
			UserAgent:  cfg.UserAgent,
			Accept:     accept,
			Timeout:    cfg.RequestTimeout,
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryBaseDelay,
			RateLimit:  rateLimit,
		}
	}
	sourceClient := web.NewClient(httpOpts("source", "text/html", cfg.RateLimit), metrics, logger)
	weatherClient := web.NewClient(httpOpts("weather", "application/geo+json", cfg.RateLimit), metrics, logger)

	var geocoder domain.Geocoder
	switch cfg.Geocoder {
	case "mapbox":
		client := web.NewClient(httpOpts("geocoder", "application/json", cfg.RateLimit), metrics, logger)
		geocoder = mapbox.NewClient(cfg.MapboxToken, client)
	default:
		client := web.NewClient(httpOpts("geocoder", "application/json", math.Min(cfg.RateLimit, nominatimRateLimit)), metrics, logger)
		geocoder = nominatim.NewClient(client, cfg.NominatimURL)
	}
	geocoder = mapbox.NewCachedGeocoder(geocoder, cfg.GeocodeCacheSize, metrics)
	logger.Info("geocoder configured", "provider", cfg.Geocoder, "cache_size", cfg.GeocodeCacheSize)

	var publisher pipeline.Publisher
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = writer
		logger.Info("kafka event feed enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	enricher := pipeline.NewEnricher(geocoder, nws.NewClient(weatherClient, cfg.WeatherBaseURL), cfg.Region, cfg.WeatherPolicy, metrics, logger)
	p := pipeline.New(
		source.NewCollector(sourceClient, cfg.SourceBaseURL, metrics, logger),
		source.NewExtractor(sourceClient, cfg.SourceTimezone),
		enricher, store, lg, publisher,
		pipeline.Options{
			Concurrency: cfg.Concurrency,
			RunTimeout:  cfg.RunTimeout,
			Incremental: cfg.Incremental,
		},
		logger, metrics,
	)

	if once {
		_, err := p.Run(ctx)
		return err
	}

	ready := httpadapter.ReadinessFunc(func(ctx context.Context) error {
		if err := store.Ping(ctx); err != nil {
			return err
		}
		return p.CheckReadiness(ctx)
	})
	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, store, cfg.SourceTimezone, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	scheduler := pipeline.NewScheduler(p, logger)
	if err := scheduler.Start(ctx, cfg.Schedule); err != nil {
		return err
	}
	// First run immediately rather than waiting for the first tick.
	firstRun := make(chan struct{})
	go func() {
		defer close(firstRun)
		scheduler.RunNow(ctx)
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	stopped := scheduler.Stop()
	for _, done := range []<-chan struct{}{stopped.Done(), firstRun} {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			logger.Warn("pipeline run did not stop before shutdown timeout")
			return nil
		}
	}

	logger.Info("shutdown complete")
	return nil
}
