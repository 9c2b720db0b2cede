package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

func TestTimerSchedulerRunsTaskOnce(t *testing.T) {
	s := NewTimerScheduler(zap.NewNop(), time.Second)
	ran := make(chan struct{}, 2)

	id := s.After(10*time.Millisecond, "probe", func(context.Context) error {
		ran <- struct{}{}
		return nil
	})
	assert.NotEmpty(t, id)

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
	s.Stop(context.Background())
	assert.Len(t, ran, 0)
	assert.Equal(t, 0, s.Pending())
}

func TestTimerSchedulerSurvivesPanicsAndErrors(t *testing.T) {
	s := NewTimerScheduler(zap.NewNop(), time.Second)
	done := make(chan struct{})

	s.After(0, "panics", func(context.Context) error { panic("boom") })
	s.After(0, "fails", func(context.Context) error { return errors.New("nope") })
	s.After(5*time.Millisecond, "ok", func(context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("later task did not run")
	}
	s.Stop(context.Background())
}

func TestTimerSchedulerStopDropsPending(t *testing.T) {
	s := NewTimerScheduler(zap.NewNop(), time.Second)
	s.After(time.Hour, "never", func(context.Context) error {
		t.Error("dropped task ran")
		return nil
	})
	require.Equal(t, 1, s.Pending())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.Equal(t, 0, s.Pending())
	assert.NoError(t, ctx.Err())
}

type countingSweeper struct{ calls int }

func (c *countingSweeper) Sweep(context.Context) (int, error) {
	c.calls++
	return 0, nil
}

type fixedStats struct{}

func (fixedStats) Statistics(context.Context) (domain.TicketStatistics, error) {
	return domain.TicketStatistics{Total: 1, Open: 1, Unclaimed: 1}, nil
}

func TestRegisterHousekeeping(t *testing.T) {
	jobs := NewJobs(zap.NewNop(), time.Second)
	require.NoError(t, RegisterHousekeeping(jobs, HousekeepingDeps{
		Sessions: &countingSweeper{},
		Stats:    fixedStats{},
	}))
	assert.Equal(t, 2, jobs.Len())

	empty := NewJobs(nil, 0)
	require.NoError(t, RegisterHousekeeping(empty, HousekeepingDeps{}))
	assert.Equal(t, 0, empty.Len())
}

func TestJobsRejectsBadSpec(t *testing.T) {
	jobs := NewJobs(zap.NewNop(), time.Second)
	err := jobs.Add("not a spec", "bad", func(context.Context) error { return nil })
	assert.Error(t, err)
}
