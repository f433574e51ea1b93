package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowhost/pkg/models"
)

func TestParseSchedules(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    []Schedule
		wantErr bool
	}{
		{
			name:  "empty",
			value: "",
		},
		{
			name:  "single",
			value: "nightly=0 2 * * *",
			want:  []Schedule{{ActivityName: "nightly", Cron: "0 2 * * *"}},
		},
		{
			name:  "several with blanks and descriptors",
			value: " nightly = 0 2 * * * ; ;tick=@every 30s;",
			want: []Schedule{
				{ActivityName: "nightly", Cron: "0 2 * * *"},
				{ActivityName: "tick", Cron: "@every 30s"},
			},
		},
		{
			name:    "missing separator",
			value:   "0 2 * * *",
			wantErr: true,
		},
		{
			name:    "missing name",
			value:   "=@hourly",
			wantErr: true,
		},
		{
			name:    "invalid cron",
			value:   "nightly=61 * * * *",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedules(tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSchedule)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSource_Validate(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	assert.ErrorIs(t, NewSource(nil, nil, logger).Validate(), ErrNoSchedules)
	assert.ErrorIs(t, NewSource([]Schedule{{ActivityName: "x", Cron: "nope"}}, nil, logger).Validate(), ErrInvalidSchedule)
	assert.NoError(t, NewSource([]Schedule{{ActivityName: "x", Cron: "@hourly"}}, nil, logger).Validate())
}

func TestSource_Fire(t *testing.T) {
	source := NewSource(nil, time.UTC, slog.New(slog.DiscardHandler))

	var (
		gotName string
		gotArgs *models.Variables
	)

	source.fire(t.Context(), Schedule{ActivityName: "nightly", Cron: "0 2 * * *"},
		func(_ context.Context, activityName string, arguments *models.Variables) error {
			gotName, gotArgs = activityName, arguments

			return errors.New("ignored")
		})

	assert.Equal(t, "nightly", gotName)
	assert.Equal(t, []string{ArgScheduledAt, ArgCron}, gotArgs.Keys())
	assert.Equal(t, "0 2 * * *", gotArgs.ToMap()[ArgCron])
}

func TestSource_StartStop(t *testing.T) {
	source := NewSource([]Schedule{
		{ActivityName: "tick", Cron: "@every 1s"},
		{ActivityName: "nightly", Cron: "0 2 * * *"},
	}, time.UTC, slog.New(slog.DiscardHandler))

	var (
		mu    sync.Mutex
		fired []string
	)

	err := source.Start(t.Context(), func(_ context.Context, activityName string, _ *models.Variables) error {
		mu.Lock()
		defer mu.Unlock()

		fired = append(fired, activityName)

		return nil
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !source.Next("nightly").IsZero() }, time.Second, 10*time.Millisecond)
	assert.True(t, source.Next("unknown").IsZero())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(fired) > 0
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, source.Stop(t.Context()))
	assert.True(t, source.Next("tick").IsZero())
	assert.NoError(t, source.Stop(t.Context()), "stopping twice is a no-op")

	mu.Lock()
	defer mu.Unlock()

	for _, name := range fired {
		assert.Equal(t, "tick", name)
	}
}
