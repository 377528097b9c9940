package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidSpec(t *testing.T) {
	_, err := New([]Job{{Name: "bad", Spec: "not a cron"}}, nil)
	assert.Error(t, err)
}

func TestRunDueExecutesOnlyDueJobs(t *testing.T) {
	var ran []string
	job := func(name string, err error) func(context.Context) (int64, error) {
		return func(context.Context) (int64, error) {
			ran = append(ran, name)
			return 1, err
		}
	}
	s, err := New([]Job{
		{Name: "every5", Spec: "*/5 * * * *", Run: job("every5", nil)},
		{Name: "daily", Spec: "0 3 * * *", Run: job("daily", errors.New("boom"))},
	}, nil)
	require.NoError(t, err)

	start := time.Date(2026, 1, 1, 2, 58, 0, 0, time.UTC)
	for _, e := range s.entries {
		e.next = e.schedule.Next(start)
	}

	s.runDue(context.Background(), start.Add(time.Minute))
	assert.Empty(t, ran)

	s.runDue(context.Background(), start.Add(2*time.Minute))
	assert.ElementsMatch(t, []string{"every5", "daily"}, ran)

	// A failing job is rescheduled like any other.
	ran = nil
	s.runDue(context.Background(), start.Add(3*time.Minute))
	assert.Empty(t, ran)
	assert.True(t, s.entries[1].next.Equal(time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)))
}

func TestRunStopsOnCancel(t *testing.T) {
	s, err := New(nil, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
