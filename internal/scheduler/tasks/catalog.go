// Package tasks registers the catalog maintenance tasks with the scheduler.
package tasks

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfwise/shelfwise/internal/scheduler"
)

const (
	ReloadProviderConfigTaskID = "reload-provider-config"
	PruneLookupCacheTaskID     = "prune-lookup-cache"

	DefaultReloadCron = "*/5 * * * *"
)

// ConfigReloader re-reads the provider config.
type ConfigReloader interface {
	ReloadConfig(ctx context.Context) error
}

// CachePruner drops expired lookup cache entries.
type CachePruner interface {
	Prune() int
}

// RegisterReloadProviderConfigTask re-reads the provider routing file so
// edits take effect without a restart.
func RegisterReloadProviderConfigTask(sched *scheduler.Scheduler, reloader ConfigReloader, cron string) error {
	if cron == "" {
		cron = DefaultReloadCron
	}
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          ReloadProviderConfigTaskID,
		Name:        "Reload Provider Config",
		Description: "Re-reads the provider routing file and swaps it in atomically",
		Cron:        cron,
		Timeout:     30 * time.Second,
		Func:        reloader.ReloadConfig,
	})
}

// RegisterPruneLookupCacheTask removes expired lookup cache entries every
// ten minutes.
func RegisterPruneLookupCacheTask(sched *scheduler.Scheduler, cache CachePruner, logger zerolog.Logger) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          PruneLookupCacheTaskID,
		Name:        "Prune Lookup Cache",
		Description: "Removes expired entries from the catalog lookup cache",
		Cron:        "*/10 * * * *",
		Func: func(_ context.Context) error {
			if removed := cache.Prune(); removed > 0 {
				logger.Debug().Int("removed", removed).Msg("Pruned lookup cache")
			}
			return nil
		},
	})
}
