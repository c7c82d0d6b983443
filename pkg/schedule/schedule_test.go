package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/nodeflow/pkg/value"
)

func quiet() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestNext(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 7, 0, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{"*/5 * * * *", time.Date(2026, 1, 1, 10, 10, 0, 0, time.UTC)},
		{"0 12 * * *", time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"@hourly", time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)},
		{"@every 1m", now.Add(time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Next(tt.expr, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "   ", "* * *", "61 * * * *"} {
		_, err := Next(bad, now)
		assert.Error(t, err, bad)
	}
}

func TestScheduler_AddRemoveTrigger(t *testing.T) {
	var got []Entry
	s := New(func(_ context.Context, e Entry) error {
		got = append(got, e)
		return nil
	}, quiet())

	entry := Entry{Graph: "report", Cron: "0 9 * * 1", Inputs: map[string]value.Value{"n": value.Int(2)}}
	require.NoError(t, s.Add(entry))
	assert.Error(t, s.Add(entry), "duplicate graph")
	assert.Error(t, s.Add(Entry{Graph: "x", Cron: "nope"}))
	assert.Error(t, s.Add(Entry{Cron: "@daily"}))

	assert.Contains(t, s.Upcoming(), "report")

	require.NoError(t, s.Trigger("report"))
	require.Len(t, got, 1)
	assert.Equal(t, value.Int(2), got[0].Inputs["n"])

	assert.True(t, s.Remove("report"))
	assert.False(t, s.Remove("report"))
	assert.Error(t, s.Trigger("report"))
	assert.Empty(t, s.Upcoming())
}

func TestScheduler_TriggerReportsFailure(t *testing.T) {
	boom := errors.New("boom")
	s := New(func(context.Context, Entry) error { return boom }, quiet())
	require.NoError(t, s.Add(Entry{Graph: "g", Cron: "@daily"}))
	assert.ErrorIs(t, s.Trigger("g"), boom)
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	var runs atomic.Int32
	s := New(func(ctx context.Context, _ Entry) error {
		runs.Add(1)
		return ctx.Err()
	}, quiet())
	require.NoError(t, s.Add(Entry{Graph: "tick", Cron: "@every 1s"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
