package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Schedule is a parsed interval setting. Durations are turned into cron
// expressions aligned to the wall clock, so "5m" fires at :00, :05, :10...
type Schedule struct {
	Interval    string
	Cron        string
	WithSeconds bool
	// Every is the fixed period of a duration schedule, zero for cron
	Every time.Duration
}

// alignment maps a duration unit to the cron template used for it. Counts
// must divide period so runs line up with the enclosing minute, hour or day.
type alignment struct {
	unit     time.Duration
	period   int
	template string
}

var alignments = []alignment{
	{unit: time.Second, period: 60, template: "*/%d * * * * *"},
	{unit: time.Minute, period: 60, template: "*/%d * * * *"},
	{unit: time.Hour, period: 24, template: "0 */%d * * *"},
}

// ErrEmptySchedule is returned when no interval is configured
var ErrEmptySchedule = errors.New("empty schedule")

// ParseSchedule parses a clock-aligned duration ("30s", "5m", "2h") or a cron
// expression with 5 or 6 fields.
func ParseSchedule(interval string) (Schedule, error) {
	interval = strings.TrimSpace(interval)
	if interval == "" {
		return Schedule{}, ErrEmptySchedule
	}

	if fields := strings.Fields(interval); len(fields) > 1 {
		if len(fields) != 5 && len(fields) != 6 {
			return Schedule{}, fmt.Errorf("cron expression must have 5 or 6 fields, got %d", len(fields))
		}
		return Schedule{Interval: interval, Cron: interval, WithSeconds: len(fields) == 6}, nil
	}

	d, err := time.ParseDuration(interval)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid duration format: %w", err)
	}
	cron, err := alignedCron(d)
	if err != nil {
		return Schedule{}, err
	}
	return Schedule{
		Interval:    interval,
		Cron:        cron,
		WithSeconds: strings.Count(cron, " ") == 5,
		Every:       d,
	}, nil
}

func alignedCron(d time.Duration) (string, error) {
	if d <= 0 {
		return "", fmt.Errorf("interval must be positive (got %s)", d)
	}
	a := alignments[0]
	switch {
	case d >= time.Hour:
		a = alignments[2]
	case d >= time.Minute:
		a = alignments[1]
	}
	if d%a.unit != 0 {
		return "", fmt.Errorf("interval %s is not a whole number of %s", d, unitName(a.unit))
	}
	n := int(d / a.unit)
	if a.period%n != 0 {
		return "", fmt.Errorf("interval %s must divide evenly into %d %s", d, a.period, unitName(a.unit))
	}
	return fmt.Sprintf(a.template, n), nil
}

func unitName(unit time.Duration) string {
	switch unit {
	case time.Second:
		return "seconds"
	case time.Minute:
		return "minutes"
	default:
		return "hours"
	}
}

// ValidateScheduleInterval reports whether interval can be scheduled. An
// empty interval is valid and means one-shot mode.
func ValidateScheduleInterval(interval string) error {
	if strings.TrimSpace(interval) == "" {
		return nil
	}
	_, err := ParseSchedule(interval)
	return err
}

// Describe renders the schedule for logs and CLI output
func (s Schedule) Describe(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	if s.Every == 0 {
		return fmt.Sprintf("cron %q (%s)", s.Cron, loc)
	}
	return fmt.Sprintf("every %s, clock-aligned %q (%s)", s.Every, s.Cron, loc)
}

// ExpectedInterval is the period the health check holds runs to. Cron
// schedules may be irregular and get a fixed allowance.
func (s Schedule) ExpectedInterval() time.Duration {
	if s.Every > 0 {
		return s.Every
	}
	return 5 * time.Minute
}
