package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

// Argument keys passed with every scheduled trigger.
const (
	ArgScheduledAt = "scheduled_at"
	ArgCron        = "cron"
)

// Source runs a cron scheduler and delivers one trigger per due schedule.
type Source struct {
	schedules []Schedule
	location  *time.Location
	logger    *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
}

var _ protocol.Source = (*Source)(nil)

func NewSource(schedules []Schedule, location *time.Location, logger *slog.Logger) *Source {
	if location == nil {
		location = time.UTC
	}

	return &Source{
		schedules: schedules,
		location:  location,
		logger:    logger.With("module", "schedule_source"),
		entries:   make(map[string]cron.EntryID),
	}
}

func (s *Source) Validate() error {
	if len(s.schedules) == 0 {
		return ErrNoSchedules
	}

	for _, schedule := range s.schedules {
		if err := schedule.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Start registers every schedule and starts the scheduler. Triggers are
// delivered until Stop is called or ctx is done. A schedule that is still
// running when it is due again is skipped.
func (s *Source) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	if err := s.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	logger := cronLogger{logger: s.logger}

	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(logger),
		cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger)),
	)

	for _, schedule := range s.schedules {
		id, err := c.AddFunc(schedule.Cron, func() { s.fire(ctx, schedule, callback) })
		if err != nil {
			cancel()

			return fmt.Errorf("failed to add schedule %s: %w", schedule.ActivityName, err)
		}

		s.entries[schedule.ActivityName] = id
		s.logger.InfoContext(ctx, "Schedule registered", "activity_name", schedule.ActivityName, "cron", schedule.Cron)
	}

	s.cron = c
	s.cancel = cancel

	c.Start()

	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	s.logger.InfoContext(ctx, "Schedule source started", "schedules", len(s.schedules))

	return nil
}

// Stop stops the scheduler and waits for running triggers until ctx is done.
func (s *Source) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	clear(s.entries)
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	done := c.Stop()

	cancel()

	select {
	case <-done.Done():
		s.logger.InfoContext(ctx, "Schedule source stopped")

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next time the named schedule is due, or the zero time when
// the source is not running or has no such schedule.
func (s *Source) Next(activityName string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[activityName]
	if !ok || s.cron == nil {
		return time.Time{}
	}

	return s.cron.Entry(id).Next
}

func (s *Source) fire(ctx context.Context, schedule Schedule, callback protocol.TriggerCallback) {
	arguments := models.NewVariables()
	arguments.Set(ArgScheduledAt, time.Now().In(s.location).Format(time.RFC3339))
	arguments.Set(ArgCron, schedule.Cron)

	s.logger.DebugContext(ctx, "Schedule due", "activity_name", schedule.ActivityName)

	if err := callback(ctx, schedule.ActivityName, arguments); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled trigger failed",
			"activity_name", schedule.ActivityName, "error", err)
	}
}

// cronLogger routes scheduler logs to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
