package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Providers ProvidersConfig `mapstructure:"providers"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StoreConfig holds collectable store configuration.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// CatalogConfig holds catalog router configuration.
type CatalogConfig struct {
	// ProviderConfig is the path of the declarative provider routing file.
	ProviderConfig  string        `mapstructure:"provider_config"`
	ReloadCron      string        `mapstructure:"reload_cron"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	CacheMaxItems   int           `mapstructure:"cache_max_items"`
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

// HTTPConfig holds the upstream call settings every provider shares.
type HTTPConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    int           `mapstructure:"timeout"` // seconds
	Retries    int           `mapstructure:"retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// TimeoutDuration returns Timeout as a duration.
func (c HTTPConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// ProvidersConfig holds per-provider credentials and endpoints.
type ProvidersConfig struct {
	TMDB        TMDBConfig        `mapstructure:"tmdb"`
	IGDB        IGDBConfig        `mapstructure:"igdb"`
	OpenLibrary OpenLibraryConfig `mapstructure:"openlibrary"`
	Hardcover   HardcoverConfig   `mapstructure:"hardcover"`
	NYTBooks    NYTBooksConfig    `mapstructure:"nytbooks"`
	Bluray      BlurayConfig      `mapstructure:"bluray"`
	MusicBrainz MusicBrainzConfig `mapstructure:"musicbrainz"`
}

// TMDBConfig configures the movie/TV provider.
type TMDBConfig struct {
	HTTPConfig   `mapstructure:",squash"`
	APIKey       string `mapstructure:"api_key"`
	ImageBaseURL string `mapstructure:"image_base_url"`
	Language     string `mapstructure:"language"`
}

// IGDBConfig configures the game provider.
type IGDBConfig struct {
	HTTPConfig   `mapstructure:",squash"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	TokenURL     string `mapstructure:"token_url"`
}

// OpenLibraryConfig configures the OpenLibrary book provider.
type OpenLibraryConfig struct {
	HTTPConfig `mapstructure:",squash"`
	CoversURL  string `mapstructure:"covers_url"`
}

// HardcoverConfig configures the Hardcover book provider.
type HardcoverConfig struct {
	HTTPConfig `mapstructure:",squash"`
	Token      string `mapstructure:"token"`
}

// NYTBooksConfig configures the NYT Books discovery provider.
type NYTBooksConfig struct {
	HTTPConfig `mapstructure:",squash"`
	APIKey     string `mapstructure:"api_key"`
}

// BlurayConfig configures the Blu-ray.com scraping provider.
type BlurayConfig struct {
	HTTPConfig `mapstructure:",squash"`
	Country    string `mapstructure:"country"`
	UserAgent  string `mapstructure:"user_agent"`
}

// MusicBrainzConfig configures the MusicBrainz album provider.
type MusicBrainzConfig struct {
	HTTPConfig  `mapstructure:",squash"`
	UserAgent   string `mapstructure:"user_agent"`
	CoverArtURL string `mapstructure:"cover_art_url"`
}

// Default returns a Config with default values.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads configuration from .env, the config file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	bindProviderEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.shelfwise")
	}

	v.SetEnvPrefix("SHELFWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEmbeddedKeys(cfg)
	return cfg, nil
}

// loadDotEnv loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// bindProviderEnv accepts the conventional unprefixed variable names for
// provider credentials alongside the SHELFWISE_ ones.
func bindProviderEnv(v *viper.Viper) {
	_ = v.BindEnv("providers.tmdb.api_key", "SHELFWISE_PROVIDERS_TMDB_API_KEY", "TMDB_API_KEY")
	_ = v.BindEnv("providers.igdb.client_id", "SHELFWISE_PROVIDERS_IGDB_CLIENT_ID", "IGDB_CLIENT_ID", "TWITCH_CLIENT_ID")
	_ = v.BindEnv("providers.igdb.client_secret", "SHELFWISE_PROVIDERS_IGDB_CLIENT_SECRET", "IGDB_CLIENT_SECRET", "TWITCH_CLIENT_SECRET")
	_ = v.BindEnv("providers.hardcover.token", "SHELFWISE_PROVIDERS_HARDCOVER_TOKEN", "HARDCOVER_TOKEN")
	_ = v.BindEnv("providers.nytbooks.api_key", "SHELFWISE_PROVIDERS_NYTBOOKS_API_KEY", "NYT_API_KEY")
}

func applyEmbeddedKeys(cfg *Config) {
	if cfg.Providers.TMDB.APIKey == "" {
		cfg.Providers.TMDB.APIKey = EmbeddedTMDBKey
	}
	if cfg.Providers.IGDB.ClientID == "" {
		cfg.Providers.IGDB.ClientID = EmbeddedIGDBClientID
	}
	if cfg.Providers.IGDB.ClientSecret == "" {
		cfg.Providers.IGDB.ClientSecret = EmbeddedIGDBClientSecret
	}
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8085)

	// Store defaults
	v.SetDefault("store.path", "./data/shelfwise.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	// Catalog defaults
	v.SetDefault("catalog.provider_config", "./configs/providers.yaml")
	v.SetDefault("catalog.reload_cron", "*/5 * * * *")
	v.SetDefault("catalog.cache_ttl", 15*time.Minute)
	v.SetDefault("catalog.cache_max_items", 1000)
	v.SetDefault("catalog.breaker_failures", 5)
	v.SetDefault("catalog.breaker_cooldown", time.Minute)

	// Provider defaults
	setHTTPDefaults(v, "tmdb", "https://api.themoviedb.org/3", 8)
	v.SetDefault("providers.tmdb.api_key", "")
	v.SetDefault("providers.tmdb.image_base_url", "https://image.tmdb.org/t/p")
	v.SetDefault("providers.tmdb.language", "en-US")

	setHTTPDefaults(v, "igdb", "https://api.igdb.com/v4", 10)
	v.SetDefault("providers.igdb.client_id", "")
	v.SetDefault("providers.igdb.client_secret", "")
	v.SetDefault("providers.igdb.token_url", "https://id.twitch.tv/oauth2/token")

	setHTTPDefaults(v, "openlibrary", "https://openlibrary.org", 10)
	v.SetDefault("providers.openlibrary.covers_url", "https://covers.openlibrary.org")

	setHTTPDefaults(v, "hardcover", "https://api.hardcover.app/v1/graphql", 10)
	v.SetDefault("providers.hardcover.token", "")

	setHTTPDefaults(v, "nytbooks", "https://api.nytimes.com/svc/books/v3", 10)
	v.SetDefault("providers.nytbooks.api_key", "")

	setHTTPDefaults(v, "bluray", "https://www.blu-ray.com", 10)
	v.SetDefault("providers.bluray.country", "US")
	v.SetDefault("providers.bluray.user_agent", "Mozilla/5.0 (compatible; shelfwise/1.0)")

	setHTTPDefaults(v, "musicbrainz", "https://musicbrainz.org/ws/2", 10)
	v.SetDefault("providers.musicbrainz.user_agent", "shelfwise/1.0 ( https://github.com/shelfwise/shelfwise )")
	v.SetDefault("providers.musicbrainz.cover_art_url", "https://coverartarchive.org")
}

func setHTTPDefaults(v *viper.Viper, name, baseURL string, timeoutSeconds int) {
	prefix := "providers." + name + "."
	v.SetDefault(prefix+"base_url", baseURL)
	v.SetDefault(prefix+"timeout", timeoutSeconds)
	v.SetDefault(prefix+"retries", 2)
	v.SetDefault(prefix+"retry_delay", 500*time.Millisecond)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
