package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/amhang-backend/internal/metrics"
)

func TestRunNow_ReturnsJobResult(t *testing.T) {
	s, err := New("", 0, Job{
		Name: "count",
		Spec: "0 2 * * *",
		Run:  func(context.Context) (any, error) { return 42, nil },
	})
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.JobRunsTotal.WithLabelValues("count", "success"))

	res, err := s.RunNow(context.Background(), "count")
	require.NoError(t, err)
	assert.Equal(t, 42, res)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.JobRunsTotal.WithLabelValues("count", "success")))
}

func TestRunNow_UnknownJob(t *testing.T) {
	s, err := New(DefaultTimezone, 0)
	require.NoError(t, err)

	_, err = s.RunNow(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestRunNow_RecoversPanic(t *testing.T) {
	s, err := New("", 0, Job{
		Name: "boom",
		Run:  func(context.Context) (any, error) { panic("boom") },
	})
	require.NoError(t, err)

	var runErr error
	assert.NotPanics(t, func() { _, runErr = s.RunNow(context.Background(), "boom") })
	assert.ErrorContains(t, runErr, "boom")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.JobRunsTotal.WithLabelValues("boom", "error")))

	// После паники задачу снова можно запустить
	_, err = s.RunNow(context.Background(), "boom")
	assert.NotErrorIs(t, err, ErrJobRunning)
}

func TestRunNow_SkipsOverlappingRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	s, err := New("", 0, Job{
		Name: "slow",
		Run: func(context.Context) (any, error) {
			close(started)
			<-release
			return nil, nil
		},
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunNow(context.Background(), "slow")
		done <- err
	}()
	<-started

	_, err = s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrJobRunning)

	close(release)
	assert.NoError(t, <-done)
}

func TestRunNow_AppliesTimeout(t *testing.T) {
	s, err := New("", 10*time.Millisecond, Job{
		Name: "wait",
		Run: func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	require.NoError(t, err)

	_, err = s.RunNow(context.Background(), "wait")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New("Mars/Olympus", 0)
	assert.Error(t, err)

	_, err = New("", 0, Job{Name: "bad", Spec: "every day", Run: func(context.Context) (any, error) { return nil, nil }})
	assert.Error(t, err)

	job := Job{Name: "dup", Run: func(context.Context) (any, error) { return nil, nil }}
	_, err = New("", 0, job, job)
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s, err := New("", 0, Job{Name: JobSettlement, Spec: "0 2 * * *", Run: func(context.Context) (any, error) { return nil, nil }})
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	assert.Equal(t, []string{JobSettlement}, s.Jobs())
}
