// Package schedule provides a trigger source that fires activity names on cron schedules.
package schedule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

var (
	ErrNoSchedules     = errors.New("no schedules configured")
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// Schedule fires ActivityName every time Cron is due.
type Schedule struct {
	ActivityName string `json:"activity_name"`
	Cron         string `json:"cron"`
}

func (s Schedule) Validate() error {
	if s.ActivityName == "" {
		return fmt.Errorf("%w: activity name is required", ErrInvalidSchedule)
	}

	if _, err := cron.ParseStandard(s.Cron); err != nil {
		return fmt.Errorf("%w: cron expression %q for %s: %w", ErrInvalidSchedule, s.Cron, s.ActivityName, err)
	}

	return nil
}

// ParseSchedules reads the SCHEDULES format: entries of the form
// name=cron separated by semicolons, e.g. "nightly=0 2 * * *;tick=@every 30s".
func ParseSchedules(value string) ([]Schedule, error) {
	var schedules []Schedule

	for entry := range strings.SplitSeq(value, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, expr, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q is not name=cron", ErrInvalidSchedule, entry)
		}

		schedule := Schedule{ActivityName: strings.TrimSpace(name), Cron: strings.TrimSpace(expr)}
		if err := schedule.Validate(); err != nil {
			return nil, err
		}

		schedules = append(schedules, schedule)
	}

	return schedules, nil
}
