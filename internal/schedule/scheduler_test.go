package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/gp-agenda-watcher/internal/watcher"
)

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
	err     error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (r *blockingRunner) Run(context.Context) (watcher.Result, error) {
	r.calls.Add(1)
	select {
	case r.started <- struct{}{}:
	default:
	}
	<-r.release
	res := watcher.Result{RunID: "run", Outcome: watcher.OutcomeNoChange}
	if r.err != nil {
		res.Outcome = watcher.OutcomeFailed
	}
	return res, r.err
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "missing cron", cfg: Config{}, want: "schedule.cron is required"},
		{name: "bad cron", cfg: Config{Cron: "every hour"}, want: "schedule.cron"},
		{name: "bad timezone", cfg: Config{Cron: "0 * * * *", Timezone: "Mars/Olympus"}, want: "schedule.timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(newBlockingRunner(), tt.cfg, zap.NewNop())
			require.ErrorContains(t, err, tt.want)
		})
	}

	_, err := New(nil, Config{Cron: "0 * * * *"}, nil)
	require.Error(t, err)
}

func TestRunNowRejectsOverlap(t *testing.T) {
	t.Parallel()

	runner := newBlockingRunner()
	s, err := New(runner, Config{Cron: "0 * * * *", Timezone: "America/Chicago"}, zap.NewNop())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunNow(context.Background())
		done <- err
	}()
	<-runner.started

	_, err = s.RunNow(context.Background())
	require.ErrorIs(t, err, ErrBusy)

	close(runner.release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), runner.calls.Load())

	_, err = s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestLastTracksMostRecentRun(t *testing.T) {
	t.Parallel()

	runner := newBlockingRunner()
	close(runner.release)
	s, err := New(runner, Config{Cron: "0 * * * *"}, zap.NewNop())
	require.NoError(t, err)

	_, ok := s.Last()
	assert.False(t, ok)

	_, err = s.RunNow(context.Background())
	require.NoError(t, err)
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, watcher.OutcomeNoChange, last.Outcome)

	runner.err = errors.New("portal down")
	_, err = s.RunNow(context.Background())
	require.Error(t, err)
	last, ok = s.Last()
	require.True(t, ok)
	assert.Equal(t, watcher.OutcomeFailed, last.Outcome)
}

func TestStartAndStop(t *testing.T) {
	t.Parallel()

	runner := newBlockingRunner()
	close(runner.release)
	s, err := New(runner, Config{Cron: "@every 1s"}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	require.Error(t, s.Start(ctx))

	require.Eventually(t, func() bool {
		_, ok := s.Last()
		return ok
	}, 5*time.Second, 50*time.Millisecond)

	s.Stop()
	s.Stop()
}

func TestDrainWaitsForInFlightRun(t *testing.T) {
	t.Parallel()

	runner := newBlockingRunner()
	s, err := New(runner, Config{Cron: "0 * * * *"}, zap.NewNop())
	require.NoError(t, err)

	runDone := make(chan error, 1)
	go func() {
		_, err := s.RunNow(context.Background())
		runDone <- err
	}()
	<-runner.started

	drained := make(chan struct{})
	go func() {
		s.Drain()
		close(drained)
	}()

	select {
	case <-drained:
		t.Fatal("Drain returned while a run was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	require.NoError(t, <-runDone)
	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("Drain did not return after the run finished")
	}

	_, err = s.RunNow(context.Background())
	require.ErrorIs(t, err, ErrDrained)
	assert.Equal(t, int32(1), runner.calls.Load())
}
