// Package timefmt renders durations and timestamps for display.
//
// It is pure string formatting: no state, no clocks, no concurrency.
package timefmt

import (
	"fmt"
	"time"
)

// Style selects how Duration renders.
type Style string

const (
	// StyleClock is "MM:SS", growing to "HH:MM:SS" at one hour.
	StyleClock Style = ""
	// StyleHuman is "1h 02m 03s" with leading zero units dropped.
	StyleHuman Style = "human"
	// StyleCompact is "1:02:03" / "2:03" with no zero padding on the
	// leading unit.
	StyleCompact Style = "compact"
)

// Duration renders d in the given style. Negative durations are
// treated as zero.
func Duration(d time.Duration, style Style) string {
	if d < 0 {
		d = 0
	}
	switch style {
	case StyleHuman:
		return human(d)
	case StyleCompact:
		return compact(d)
	default:
		return Clock(d)
	}
}

// Clock renders d as "MM:SS", or "HH:MM:SS" once d reaches one hour.
func Clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h, m, s := split(d)
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// DateTime renders t with the given Go layout token, defaulting to
// ISO-8601 (RFC 3339).
func DateTime(t time.Time, token string) string {
	if token == "" {
		token = time.RFC3339
	}
	return t.Format(token)
}

func human(d time.Duration) string {
	h, m, s := split(d)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func compact(d time.Duration) string {
	h, m, s := split(d)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// split truncates to whole seconds; sub-second remainders round down.
func split(d time.Duration) (h, m, s int64) {
	total := int64(d / time.Second)
	return total / 3600, (total % 3600) / 60, total % 60
}
