package timefmt

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		d     time.Duration
		style Style
		want  string
	}{
		{"clock zero", 0, StyleClock, "00:00"},
		{"clock seconds", 5 * time.Second, StyleClock, "00:05"},
		{"clock minutes", 2*time.Minute + 3*time.Second, StyleClock, "02:03"},
		{"clock grows at one hour", time.Hour + 2*time.Minute + 3*time.Second, StyleClock, "01:02:03"},
		{"clock truncates sub-second", 5*time.Second + 900*time.Millisecond, StyleClock, "00:05"},
		{"clock negative reads zero", -time.Minute, StyleClock, "00:00"},

		{"human seconds", 7 * time.Second, StyleHuman, "7s"},
		{"human minutes", 2*time.Minute + 3*time.Second, StyleHuman, "2m 03s"},
		{"human hours", time.Hour + 2*time.Minute + 3*time.Second, StyleHuman, "1h 02m 03s"},
		{"human zero", 0, StyleHuman, "0s"},

		{"compact minutes", 2*time.Minute + 3*time.Second, StyleCompact, "2:03"},
		{"compact hours", time.Hour + 2*time.Minute + 3*time.Second, StyleCompact, "1:02:03"},
		{"compact zero", 0, StyleCompact, "0:00"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Duration(tc.d, tc.style); got != tc.want {
				t.Fatalf("Duration(%v, %q) = %q, want %q", tc.d, tc.style, got, tc.want)
			}
		})
	}
}

func TestDateTime(t *testing.T) {
	t.Parallel()
	ref := time.Date(2026, time.March, 1, 12, 30, 45, 0, time.UTC)

	if got := DateTime(ref, ""); got != "2026-03-01T12:30:45Z" {
		t.Fatalf("default layout = %q", got)
	}
	if got := DateTime(ref, "15:04"); got != "12:30" {
		t.Fatalf("custom layout = %q", got)
	}
}
