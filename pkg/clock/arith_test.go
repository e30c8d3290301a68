package clock

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestEpochRoundTrip(t *testing.T) {
	t.Parallel()
	ref := UTC(2026, time.March, 1, 12, 0, 0)

	sec := Epoch(ref)
	back, err := FromEpoch(sec)
	if err != nil {
		t.Fatalf("FromEpoch: %v", err)
	}
	if !back.Equal(ref) {
		t.Fatalf("round trip: got %v, want %v", back, ref)
	}
}

func TestFromEpochRejectsNonFinite(t *testing.T) {
	t.Parallel()
	for _, sec := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := FromEpoch(sec); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("FromEpoch(%v): got %v, want ErrInvalidArgument", sec, err)
		}
	}
}

func TestAddUnits(t *testing.T) {
	t.Parallel()
	ref := UTC(2026, time.March, 1, 12, 0, 0)

	tests := []struct {
		name string
		fn   func(time.Time, float64) (time.Time, error)
		n    float64
		want time.Time
	}{
		{"seconds", AddSeconds, 90, ref.Add(90 * time.Second)},
		{"fractional seconds", AddSeconds, 1.5, ref.Add(1500 * time.Millisecond)},
		{"negative seconds", AddSeconds, -30, ref.Add(-30 * time.Second)},
		{"minutes", AddMinutes, 2.5, ref.Add(150 * time.Second)},
		{"hours", AddHours, 3, ref.Add(3 * time.Hour)},
		{"days", AddDays, 1.5, ref.Add(36 * time.Hour)},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := tc.fn(ref, tc.n)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}

	if _, err := AddSeconds(ref, math.NaN()); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("AddSeconds(NaN): got %v, want ErrInvalidArgument", err)
	}
}

func TestDiffIn(t *testing.T) {
	t.Parallel()
	a := UTC(2026, time.March, 1, 0, 0, 0)
	b := a.Add(36 * time.Hour)

	tests := []struct {
		unit Unit
		want float64
	}{
		{Seconds, 129600},
		{Minutes, 2160},
		{Hours, 36},
		{Days, 1.5},
	}
	for _, tc := range tests {
		got, err := DiffIn(a, b, tc.unit)
		if err != nil {
			t.Fatalf("DiffIn(%s): %v", tc.unit, err)
		}
		if got != tc.want {
			t.Fatalf("DiffIn(%s) = %v, want %v", tc.unit, got, tc.want)
		}
	}

	// A target in the past clamps to zero.
	got, err := DiffIn(b, a, Seconds)
	if err != nil {
		t.Fatalf("DiffIn past: %v", err)
	}
	if got != 0 {
		t.Fatalf("DiffIn past = %v, want 0", got)
	}

	if _, err := DiffIn(a, b, Unit(99)); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("bad unit: got %v, want ErrInvalidArgument", err)
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()
	ref := UTC(2026, time.March, 1, 12, 30, 45)

	if got := Format(ref, ""); got != "2026-03-01T12:30:45Z" {
		t.Fatalf("default format = %q", got)
	}
	if got := Format(ref, "2006-01-02"); got != "2026-03-01" {
		t.Fatalf("custom format = %q", got)
	}
}

func TestMock(t *testing.T) {
	t.Parallel()
	start := UTC(2026, time.March, 1, 0, 0, 0)
	m := NewMock(start)

	if !m.Now().Equal(start) {
		t.Fatalf("Now = %v, want %v", m.Now(), start)
	}

	m.Advance(time.Minute)
	if !m.Now().Equal(start.Add(time.Minute)) {
		t.Fatalf("Now after Advance = %v", m.Now())
	}

	// Negative advance is ignored; mock time never runs backwards.
	m.Advance(-time.Hour)
	if !m.Now().Equal(start.Add(time.Minute)) {
		t.Fatalf("negative Advance moved the clock: %v", m.Now())
	}

	pin := UTC(2030, time.January, 1, 0, 0, 0)
	m.Set(pin)
	if !m.Now().Equal(pin) {
		t.Fatalf("Now after Set = %v", m.Now())
	}
}
