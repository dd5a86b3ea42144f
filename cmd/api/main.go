// cmd/api/main.go

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"buzztrack/internal/adapter/storage"
	"buzztrack/internal/config"
	"buzztrack/internal/domain/company"
	"buzztrack/internal/observability"
	"buzztrack/internal/server"
	"buzztrack/internal/service/listening"
	"buzztrack/internal/service/source"
)

func main() {
	godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	metrics := observability.NewMetrics("")

	// Company reference list: CSV by default, Postgres when configured
	loader, db, err := initRegistryLoader(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize registry loader: %v", err)
	}
	if db != nil {
		defer db.Close()
	}

	records, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load company reference list: %v", err)
	}

	registry, err := company.BuildRegistry(records)
	if err != nil {
		log.Fatalf("Invalid company reference list: %v", err)
	}
	for _, warning := range registry.Warnings() {
		log.Printf("Registry warning: %s", warning)
	}
	log.Printf("Tracking %d companies", registry.Len())

	// Event bus is optional; without it the service still scans and serves
	// HTTP, but publishes no events and the websocket stream is disabled
	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		natsConn, err = initNATS(cfg.NATS)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer natsConn.Close()
	}

	// Initialize storage and sources
	snapshots := storage.NewSnapshotStore(cfg.Trend.HistoryLimit)
	sources := buildSources(cfg.Sources)

	// Initialize trend detector
	detector := listening.NewTrendDetector(
		registry,
		loader,
		sources,
		snapshots,
		natsConn,
		metrics,
		listening.TrendDetectorConfig{
			Alpha:             cfg.Trend.Alpha,
			ScoreFloor:        cfg.Trend.ScoreFloor,
			TrendingThreshold: cfg.Trend.TrendingThreshold,
			ScanInterval:      cfg.Trend.ScanInterval,
			SourceTimeout:     cfg.Trend.SourceTimeout,
			EventsTopic:       cfg.Trend.EventsTopic,
		},
	)

	// Start the trend detector
	if err := detector.Start(ctx); err != nil {
		log.Fatalf("Failed to start trend detector: %v", err)
	}

	// Initialize HTTP server
	httpServer := server.NewServer(cfg.Server, cfg.Trend, detector, snapshots, natsConn, metrics)

	// Start HTTP server
	go func() {
		log.Printf("Starting HTTP server on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-shutdown
	log.Println("Shutdown signal received")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Graceful shutdown
	log.Println("Shutting down services...")

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Stop trend detector
	if err := detector.Stop(shutdownCtx); err != nil {
		log.Printf("Trend detector shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}

// initRegistryLoader wires the configured reference list provider. The
// database pool is opened only for the postgres provider.
func initRegistryLoader(ctx context.Context, cfg config.Config) (listening.RegistryLoader, *pgxpool.Pool, error) {
	switch cfg.Registry.Provider {
	case "postgres":
		db, err := initDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewCompanyStore(db), db, nil
	default:
		return storage.NewCSVCompanyLoader(cfg.Registry.CSVPath), nil, nil
	}
}

// buildSources assembles the per-cycle mention sources: the news feed set,
// the social feed set, and optionally the Reddit listing API. The skip list
// only applies to social feeds, which carry more boilerplate titles.
func buildSources(cfg config.SourcesConfig) []listening.Source {
	sources := []listening.Source{
		source.NewFeedSource(source.FeedConfig{
			Name:      "news",
			URLs:      cfg.NewsFeeds,
			PerFeed:   cfg.NewsPerFeed,
			UserAgent: cfg.UserAgent,
		}),
		source.NewFeedSource(source.FeedConfig{
			Name:      "social",
			URLs:      cfg.SocialFeeds,
			PerFeed:   cfg.SocialPerFeed,
			UserAgent: cfg.UserAgent,
			Skip:      cfg.SkipTitles,
		}),
	}

	if cfg.RedditEnabled {
		sources = append(sources, source.NewRedditSource(source.RedditConfig{
			Subreddits: cfg.Subreddits,
			Limit:      cfg.RedditLimit,
			TimeRange:  cfg.RedditTimeRange,
			UserAgent:  cfg.UserAgent,
		}))
	}

	return sources
}

// Initialize database connection
func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	// Test connection
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

// Initialize NATS connection
func initNATS(cfg config.NATSConfig) (*nats.Conn, error) {
	options := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Printf("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}
