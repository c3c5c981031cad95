package tasks

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise/internal/scheduler"
)

type fakeReloader struct{ calls int }

func (f *fakeReloader) ReloadConfig(context.Context) error {
	f.calls++
	return nil
}

type fakePruner struct{ calls int }

func (f *fakePruner) Prune() int {
	f.calls++
	return 3
}

func TestRegisterCatalogTasks(t *testing.T) {
	sched, err := scheduler.New(zerolog.Nop())
	require.NoError(t, err)

	reloader := &fakeReloader{}
	pruner := &fakePruner{}
	require.NoError(t, RegisterReloadProviderConfigTask(sched, reloader, ""))
	require.NoError(t, RegisterPruneLookupCacheTask(sched, pruner, zerolog.Nop()))

	info, err := sched.GetTask(ReloadProviderConfigTaskID)
	require.NoError(t, err)
	assert.Equal(t, DefaultReloadCron, info.Cron)

	require.NoError(t, sched.RunNow(ReloadProviderConfigTaskID))
	require.NoError(t, sched.RunNow(PruneLookupCacheTaskID))
	assert.Equal(t, 1, reloader.calls)
	assert.Equal(t, 1, pruner.calls)
}
