package clock

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidArgument is returned for non-finite or out-of-range inputs.
// Validation happens before any state is touched; values are never
// silently clamped.
var ErrInvalidArgument = errors.New("clock: invalid argument")

// Unit selects the unit for DiffIn.
type Unit int

const (
	Seconds Unit = iota
	Minutes
	Hours
	Days
)

func (u Unit) String() string {
	switch u {
	case Seconds:
		return "seconds"
	case Minutes:
		return "minutes"
	case Hours:
		return "hours"
	case Days:
		return "days"
	default:
		return fmt.Sprintf("unit(%d)", int(u))
	}
}

// Epoch returns t as fractional seconds since the Unix epoch.
func Epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromEpoch converts fractional epoch seconds to a UTC time.
func FromEpoch(sec float64) (time.Time, error) {
	if !isFinite(sec) {
		return time.Time{}, fmt.Errorf("%w: epoch seconds %v", ErrInvalidArgument, sec)
	}
	s, frac := math.Modf(sec)
	return time.Unix(int64(s), int64(frac*float64(time.Second))).UTC(), nil
}

// AddSeconds returns t shifted by n seconds. n may be fractional or
// negative.
func AddSeconds(t time.Time, n float64) (time.Time, error) {
	return addUnits(t, n, float64(time.Second))
}

// AddMinutes returns t shifted by n minutes.
func AddMinutes(t time.Time, n float64) (time.Time, error) {
	return addUnits(t, n, float64(time.Minute))
}

// AddHours returns t shifted by n hours.
func AddHours(t time.Time, n float64) (time.Time, error) {
	return addUnits(t, n, float64(time.Hour))
}

// AddDays returns t shifted by n 24-hour days. This is plain UTC
// arithmetic: no calendar or timezone awareness.
func AddDays(t time.Time, n float64) (time.Time, error) {
	return addUnits(t, n, float64(24*time.Hour))
}

func addUnits(t time.Time, n, unitNanos float64) (time.Time, error) {
	if !isFinite(n) {
		return time.Time{}, fmt.Errorf("%w: amount %v", ErrInvalidArgument, n)
	}
	return t.Add(time.Duration(n * unitNanos)), nil
}

// DiffIn returns how far b lies ahead of a, expressed in unit and
// clamped to >= 0. A target already in the past reads as zero ("time
// until" semantics), never negative.
func DiffIn(a, b time.Time, unit Unit) (float64, error) {
	d := b.Sub(a)
	if d < 0 {
		d = 0
	}
	switch unit {
	case Seconds:
		return d.Seconds(), nil
	case Minutes:
		return d.Minutes(), nil
	case Hours:
		return d.Hours(), nil
	case Days:
		return d.Hours() / 24, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidArgument, unit)
	}
}

// UTC builds a UTC time from calendar components.
func UTC(year int, month time.Month, day, hour, min, sec int) time.Time {
	return time.Date(year, month, day, hour, min, sec, 0, time.UTC)
}

// Format renders t using the given Go layout token, defaulting to
// ISO-8601 (RFC 3339) when token is empty.
func Format(t time.Time, token string) string {
	if token == "" {
		token = time.RFC3339
	}
	return t.Format(token)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
