package engine

import (
	"fmt"
	"strings"
	"time"
)

// TimeStep is the simulation granularity. Every step is a fixed duration.
type TimeStep int

const (
	Day TimeStep = iota + 1
	Week
	Month
	Quarter
	Year
)

const day = 24 * time.Hour

// ParseTimeStep parses "day", "week", "month", "quarter" or "year".
func ParseTimeStep(s string) (TimeStep, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "daily":
		return Day, nil
	case "week", "weekly":
		return Week, nil
	case "month", "monthly":
		return Month, nil
	case "quarter", "quarterly":
		return Quarter, nil
	case "year", "yearly":
		return Year, nil
	default:
		return 0, fmt.Errorf("unknown time step %q", s)
	}
}

func (s TimeStep) String() string {
	switch s {
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	case Quarter:
		return "quarter"
	case Year:
		return "year"
	default:
		return fmt.Sprintf("TimeStep(%d)", int(s))
	}
}

// Valid reports whether s is a known granularity.
func (s TimeStep) Valid() bool {
	return s >= Day && s <= Year
}

// Duration is the clock advance per step.
func (s TimeStep) Duration() time.Duration {
	switch s {
	case Day:
		return day
	case Week:
		return 7 * day
	case Month:
		return 30 * day
	case Quarter:
		return 90 * day
	default:
		return 365 * day
	}
}

// YearFraction is the elapsed share of a year per step, used by projection.
func (s TimeStep) YearFraction() float64 {
	switch s {
	case Day:
		return 1.0 / 365
	case Week:
		return 7.0 / 365
	case Month:
		return 1.0 / 12
	case Quarter:
		return 0.25
	default:
		return 1
	}
}

// StepsBetween returns how many whole steps fit between start and end.
// A run over [start, end] produces StepsBetween+1 snapshots.
func (s TimeStep) StepsBetween(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start) / s.Duration())
}
