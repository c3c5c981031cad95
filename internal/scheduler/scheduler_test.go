package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RegisterAndRunNow(t *testing.T) {
	s, err := New(zerolog.Nop())
	require.NoError(t, err)

	var runs atomic.Int32
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "count",
		Name: "Count",
		Cron: "0 0 * * *",
		Func: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}))

	require.NoError(t, s.RunNow("count"))
	assert.Equal(t, int32(1), runs.Load())

	info, err := s.GetTask("count")
	require.NoError(t, err)
	assert.NotNil(t, info.LastRun)
	assert.Empty(t, info.LastError)
	assert.False(t, info.Running)
}

func TestScheduler_RegisterErrors(t *testing.T) {
	s, err := New(zerolog.Nop())
	require.NoError(t, err)

	noop := func(context.Context) error { return nil }
	require.NoError(t, s.RegisterTask(TaskConfig{ID: "a", Cron: "* * * * *", Func: noop}))

	assert.Error(t, s.RegisterTask(TaskConfig{ID: "a", Cron: "* * * * *", Func: noop}), "duplicate id")
	assert.Error(t, s.RegisterTask(TaskConfig{ID: "b", Cron: "not a cron", Func: noop}))
	assert.Error(t, s.RegisterTask(TaskConfig{ID: "c", Cron: "* * * * *"}))
	assert.Error(t, s.RunNow("missing"))

	_, err = s.GetTask("missing")
	assert.Error(t, err)
}

func TestScheduler_TaskFailureRecorded(t *testing.T) {
	s, err := New(zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "fail",
		Cron: "0 0 * * *",
		Func: func(context.Context) error { return errors.New("config unreadable") },
	}))

	assert.EqualError(t, s.RunNow("fail"), "config unreadable")
	info, err := s.GetTask("fail")
	require.NoError(t, err)
	assert.Equal(t, "config unreadable", info.LastError)
}

func TestScheduler_Timeout(t *testing.T) {
	s, err := New(zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:      "slow",
		Cron:    "0 0 * * *",
		Timeout: 10 * time.Millisecond,
		Func: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}))

	assert.ErrorIs(t, s.RunNow("slow"), context.DeadlineExceeded)
}

func TestScheduler_StartRunsStartupTasks(t *testing.T) {
	s, err := New(zerolog.Nop())
	require.NoError(t, err)

	done := make(chan struct{})
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:         "startup",
		Cron:       "0 0 * * *",
		RunOnStart: true,
		Func: func(context.Context) error {
			close(done)
			return nil
		},
	}))

	s.Start(context.Background())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("startup task did not run")
	}
	require.NoError(t, s.Stop())

	tasks := s.ListTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "startup", tasks[0].ID)
	assert.NotNil(t, tasks[0].LastRun)
}
