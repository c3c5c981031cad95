package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise/internal/catalog"
	"github.com/shelfwise/shelfwise/internal/catalog/providers"
	"github.com/shelfwise/shelfwise/internal/config"
	"github.com/shelfwise/shelfwise/internal/logger"
)

var (
	configPath string
	mockMode   bool
)

var rootCmd = &cobra.Command{
	Use:           "shelfwise",
	Short:         "Catalog discovery across movie, book, game and music providers",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./config.yaml or ./configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&mockMode, "mock", false, "answer from built-in fixtures instead of upstream providers")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.Version = config.Version
}

// app holds the components every command needs.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	cache  *catalog.Cache
	router *catalog.Router
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})

	cache := catalog.NewCache(catalog.CacheConfig{
		TTL:      cfg.Catalog.CacheTTL,
		MaxItems: cfg.Catalog.CacheMaxItems,
	})

	adapters := providers.Build(cfg.Providers, log.WithComponent("providers"))
	if mockMode {
		log.Warn().Msg("Mock mode: upstream providers are not contacted")
		adapters = providers.BuildMock()
	}

	router, err := catalog.NewRouter(
		catalog.FileSource{Path: cfg.Catalog.ProviderConfig},
		adapters,
		catalog.WithLogger(log.Logger),
		catalog.WithCache(cache),
		catalog.WithBreaker(catalog.BreakerConfig{
			Failures: uint32(max(cfg.Catalog.BreakerFailures, 0)),
			Cooldown: cfg.Catalog.BreakerCooldown,
		}),
	)
	if err != nil {
		log.Close()
		return nil, err
	}

	return &app{cfg: cfg, log: log, cache: cache, router: router}, nil
}

func (a *app) Close() {
	a.log.Close()
}

func (a *app) logger() zerolog.Logger {
	return a.log.Logger
}
