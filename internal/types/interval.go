package types

import (
	"time"
)

// Interval is the time resolution of a series.
type Interval string

const (
	IntervalOneMinute      Interval = "1m"
	IntervalTwoMinutes     Interval = "2m"
	IntervalFiveMinutes    Interval = "5m"
	IntervalFifteenMinutes Interval = "15m"
	IntervalThirtyMinutes  Interval = "30m"
	IntervalOneHour        Interval = "1h"
	IntervalOneDay         Interval = "1d"
)

// Intervals lists all supported intervals.
func Intervals() []Interval {
	return []Interval{
		IntervalOneMinute,
		IntervalTwoMinutes,
		IntervalFiveMinutes,
		IntervalFifteenMinutes,
		IntervalThirtyMinutes,
		IntervalOneHour,
		IntervalOneDay,
	}
}

// Valid reports whether the interval is one of the supported values.
func (i Interval) Valid() bool {
	switch i {
	case IntervalOneMinute, IntervalTwoMinutes, IntervalFiveMinutes,
		IntervalFifteenMinutes, IntervalThirtyMinutes, IntervalOneHour, IntervalOneDay:
		return true
	default:
		return false
	}
}

// IsIntraday reports whether the interval is finer than daily.
func (i Interval) IsIntraday() bool {
	return i.Valid() && i != IntervalOneDay
}

// Duration returns the bar width of the interval.
func (i Interval) Duration() time.Duration {
	switch i {
	case IntervalOneMinute:
		return time.Minute
	case IntervalTwoMinutes:
		return 2 * time.Minute
	case IntervalFiveMinutes:
		return 5 * time.Minute
	case IntervalFifteenMinutes:
		return 15 * time.Minute
	case IntervalThirtyMinutes:
		return 30 * time.Minute
	case IntervalOneHour:
		return time.Hour
	case IntervalOneDay:
		return 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// MaxLookback returns how far back intraday history is available upstream
// for this interval. The second return value is false for daily data,
// which has no lookback bound.
func (i Interval) MaxLookback() (time.Duration, bool) {
	const day = 24 * time.Hour

	switch i {
	case IntervalOneMinute:
		return 7 * day, true
	case IntervalTwoMinutes, IntervalFiveMinutes, IntervalFifteenMinutes, IntervalThirtyMinutes:
		return 60 * day, true
	case IntervalOneHour:
		return 730 * day, true
	default:
		return 0, false
	}
}

// EarliestStart returns the earliest fetch window start upstream can still
// serve for this interval as of now. An hour of margin is left so a window
// computed here stays inside the lookback bound while the request is
// validated and sent. The second return value is false for daily data.
func (i Interval) EarliestStart(now time.Time) (time.Time, bool) {
	lookback, bounded := i.MaxLookback()
	if !bounded {
		return time.Time{}, false
	}

	return now.Add(-lookback).Add(time.Hour), true
}

// String implements fmt.Stringer.
func (i Interval) String() string {
	return string(i)
}
