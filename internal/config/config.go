// internal/config/config.go

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	NATS        NATSConfig
	Registry    RegistryConfig
	Sources     SourcesConfig
	Trend       TrendConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// NATSConfig holds NATS configuration. An empty URL disables event
// publishing entirely.
type NATSConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// RegistryConfig holds company reference list configuration
type RegistryConfig struct {
	Provider string
	CSVPath  string
}

// SourcesConfig holds mention source configuration
type SourcesConfig struct {
	NewsFeeds       []string
	SocialFeeds     []string
	Subreddits      []string
	NewsPerFeed     int
	SocialPerFeed   int
	RedditEnabled   bool
	RedditLimit     int
	RedditTimeRange string
	UserAgent       string
	SkipTitles      []string
}

// TrendConfig holds trend detection configuration
type TrendConfig struct {
	Alpha             float64
	ScoreFloor        float64
	TrendingThreshold float64
	ScanInterval      time.Duration
	SourceTimeout     time.Duration
	EventsTopic       string
	HistoryLimit      int
	DisplayLimit      int
}

// Default feed sets, overridable through the environment. These favor
// business and technology outlets where company mentions cluster.
var (
	defaultNewsFeeds = []string{
		"https://feeds.a.dj.com/rss/RSSMarketsMain.xml",
		"https://www.cnbc.com/id/10001147/device/rss/rss.html",
		"https://www.cnbc.com/id/15839135/device/rss/rss.html",
		"https://feeds.bloomberg.com/markets/news.rss",
		"https://feeds.reuters.com/reuters/businessNews",
		"https://feeds.marketwatch.com/marketwatch/topstories/",
		"https://finance.yahoo.com/news/rssindex",
		"https://www.theverge.com/rss/index.xml",
		"https://techcrunch.com/feed/",
		"https://feeds.arstechnica.com/arstechnica/index/",
		"https://www.wired.com/feed/rss",
		"https://feeds.bbci.co.uk/news/business/rss.xml",
		"https://feeds.npr.org/1001/rss.xml",
	}

	defaultSocialFeeds = []string{
		"https://feeds.feedburner.com/benzinga",
		"https://feeds.feedburner.com/InvestorPlace",
		"https://feeds.feedburner.com/SeekingAlpha",
		"https://feeds.feedburner.com/ycombinator",
		"https://www.reddit.com/r/SecurityAnalysis/hot/.rss",
		"https://www.reddit.com/r/ValueInvesting/hot/.rss",
		"https://www.reddit.com/r/investing/hot/.rss",
		"https://news.google.com/rss/search?q=stocks&hl=en-US&gl=US&ceid=US:en",
		"https://news.google.com/rss/search?q=earnings&hl=en-US&gl=US&ceid=US:en",
		"https://news.google.com/rss/search?q=tech+stocks&hl=en-US&gl=US&ceid=US:en",
	}

	defaultSubreddits = []string{
		"stocks", "investing", "wallstreetbets", "StockMarket", "options",
		"technology", "programming", "Apple", "teslamotors", "nvidia",
		"business", "Economics", "entrepreneur", "startups", "news",
		"CryptoCurrency", "Bitcoin", "gaming", "movies", "electricvehicles",
	}

	// boilerplate fragments common in feed titles
	defaultSkipTitles = []string{"rss", "feed", "google news", "reddit:", "comments"}
)

// Load loads configuration from environment variables
func Load() (Config, error) {
	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "buzztrack"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", ""),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
		},
		Registry: RegistryConfig{
			Provider: getEnv("REGISTRY_PROVIDER", "csv"),
			CSVPath:  getEnv("REGISTRY_CSV_PATH", "data/companies.csv"),
		},
		Sources: SourcesConfig{
			NewsFeeds:       getEnvAsSlice("SOURCE_NEWS_FEEDS", defaultNewsFeeds),
			SocialFeeds:     getEnvAsSlice("SOURCE_SOCIAL_FEEDS", defaultSocialFeeds),
			Subreddits:      getEnvAsSlice("SOURCE_SUBREDDITS", defaultSubreddits),
			NewsPerFeed:     getEnvAsInt("SOURCE_NEWS_PER_FEED", 50),
			SocialPerFeed:   getEnvAsInt("SOURCE_SOCIAL_PER_FEED", 30),
			RedditEnabled:   getEnvAsBool("SOURCE_REDDIT_ENABLED", true),
			RedditLimit:     getEnvAsInt("SOURCE_REDDIT_LIMIT", 50),
			RedditTimeRange: getEnv("SOURCE_REDDIT_TIME_RANGE", "day"),
			UserAgent:       getEnv("SOURCE_USER_AGENT", "buzztrack/1.0"),
			SkipTitles:      getEnvAsSlice("SOURCE_SKIP_TITLES", defaultSkipTitles),
		},
		Trend: TrendConfig{
			Alpha:             getEnvAsFloat("TREND_ALPHA", 0.3),
			ScoreFloor:        getEnvAsFloat("TREND_SCORE_FLOOR", 1.0),
			TrendingThreshold: getEnvAsFloat("TREND_THRESHOLD", 0.0),
			ScanInterval:      getEnvAsDuration("TREND_SCAN_INTERVAL", 2*time.Minute),
			SourceTimeout:     getEnvAsDuration("TREND_SOURCE_TIMEOUT", 20*time.Second),
			EventsTopic:       getEnv("TREND_EVENTS_TOPIC", "trend"),
			HistoryLimit:      getEnvAsInt("TREND_HISTORY_LIMIT", 100),
			DisplayLimit:      getEnvAsInt("TREND_DISPLAY_LIMIT", 20),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	if config.Trend.Alpha <= 0 || config.Trend.Alpha >= 1 {
		return fmt.Errorf("TREND_ALPHA must be between 0 and 1 exclusive, got %v", config.Trend.Alpha)
	}

	if config.Trend.ScoreFloor <= 0 {
		return fmt.Errorf("TREND_SCORE_FLOOR must be positive, got %v", config.Trend.ScoreFloor)
	}

	if config.Trend.ScanInterval <= 0 {
		return fmt.Errorf("TREND_SCAN_INTERVAL must be positive, got %v", config.Trend.ScanInterval)
	}

	if config.Trend.SourceTimeout <= 0 {
		return fmt.Errorf("TREND_SOURCE_TIMEOUT must be positive, got %v", config.Trend.SourceTimeout)
	}

	if config.Trend.HistoryLimit <= 0 {
		return fmt.Errorf("TREND_HISTORY_LIMIT must be positive, got %d", config.Trend.HistoryLimit)
	}

	if config.Trend.DisplayLimit <= 0 {
		return fmt.Errorf("TREND_DISPLAY_LIMIT must be positive, got %d", config.Trend.DisplayLimit)
	}

	switch config.Registry.Provider {
	case "csv":
		if config.Registry.CSVPath == "" {
			return fmt.Errorf("REGISTRY_CSV_PATH must be set when the csv provider is used")
		}
	case "postgres":
	default:
		return fmt.Errorf("REGISTRY_PROVIDER must be csv or postgres, got %q", config.Registry.Provider)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
