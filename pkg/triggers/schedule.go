package triggers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tcmartin/flowexec/pkg/models"
)

// Schedule frequencies
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyCustom  = "custom"
)

// NextExecution computes when a schedule trigger fires next, strictly
// after the given instant.
func NextExecution(t models.ScheduleTrigger, from time.Time) (time.Time, error) {
	loc := time.UTC
	if t.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(t.Timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timezone %q: %w", t.Timezone, err)
		}
	}

	switch t.Frequency {
	case FrequencyCustom:
		if t.CronExpression == "" {
			return time.Time{}, fmt.Errorf("custom frequency requires a cron expression")
		}
		sched, err := cron.ParseStandard(t.CronExpression)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", t.CronExpression, err)
		}
		return sched.Next(from.In(loc)), nil

	case FrequencyDaily:
		hour, minute, err := parseTimeOfDay(t.Time)
		if err != nil {
			return time.Time{}, err
		}
		return nextMatching(from, loc, hour, minute, 2, func(time.Time) bool {
			return true
		})

	case FrequencyWeekly:
		hour, minute, err := parseTimeOfDay(t.Time)
		if err != nil {
			return time.Time{}, err
		}
		days := make(map[int]bool, len(t.DaysOfWeek))
		for _, d := range t.DaysOfWeek {
			days[d] = true
		}
		if len(days) == 0 {
			return time.Time{}, fmt.Errorf("weekly frequency requires days of week")
		}
		return nextMatching(from, loc, hour, minute, 8, func(c time.Time) bool {
			return days[int(c.Weekday())]
		})

	case FrequencyMonthly:
		hour, minute, err := parseTimeOfDay(t.Time)
		if err != nil {
			return time.Time{}, err
		}
		days := make(map[int]bool, len(t.DaysOfMonth))
		for _, d := range t.DaysOfMonth {
			days[d] = true
		}
		if len(days) == 0 {
			return time.Time{}, fmt.Errorf("monthly frequency requires days of month")
		}
		// 62 days covers any gap between listed days of month.
		return nextMatching(from, loc, hour, minute, 62, func(c time.Time) bool {
			return days[c.Day()]
		})

	default:
		return time.Time{}, fmt.Errorf("unknown frequency %q", t.Frequency)
	}
}

// nextMatching scans day by day for the first candidate at hour:minute
// that is after from and accepted by the predicate.
func nextMatching(from time.Time, loc *time.Location, hour, minute, horizonDays int, accept func(time.Time) bool) (time.Time, error) {
	local := from.In(loc)
	for d := 0; d <= horizonDays; d++ {
		day := local.AddDate(0, 0, d)
		candidate := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
		if candidate.After(from) && accept(candidate) {
			return candidate, nil
		}
	}
	return time.Time{}, fmt.Errorf("no matching execution time within %d days", horizonDays)
}

// parseTimeOfDay parses "HH:MM" in 24h form; empty means midnight.
func parseTimeOfDay(s string) (hour, minute int, err error) {
	if s == "" {
		return 0, 0, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
