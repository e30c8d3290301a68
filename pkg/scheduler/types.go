package scheduler

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// ErrNegativeDelay rejects one-shot delays below zero.
	ErrNegativeDelay = errors.New("scheduler: delay must be >= 0")
	// ErrNonPositiveInterval rejects recurring intervals at or below zero.
	ErrNonPositiveInterval = errors.New("scheduler: interval must be > 0")
	// ErrNilCallback rejects registrations without a callback.
	ErrNilCallback = errors.New("scheduler: callback required")
	// ErrClosed rejects registrations on a closed scheduler.
	ErrClosed = errors.New("scheduler: closed")
)

// Handle identifies a scheduled event. Handles stay valid (and return
// benign false results) after the event fires or is cancelled.
type Handle uint64

// Kind describes how an event reschedules itself.
type Kind string

const (
	KindOnce      Kind = "once"
	KindRecurring Kind = "recurring"
	KindCron      Kind = "cron"
)

// event is owned exclusively by the Scheduler; all fields are guarded
// by Scheduler.mu.
type event struct {
	id    uint64
	label string
	kind  Kind

	delay    time.Duration // once: original delay, reused by Reschedule
	interval time.Duration // recurring only
	spec     string        // cron only
	sched    cron.Schedule // cron only

	fn        func()
	next      time.Time
	gen       uint64 // bumped on reschedule so stale heap items are swept
	cancelled bool
}

func (e *event) recurring() bool { return e.kind != KindOnce }

// EventInfo is a point-in-time view of one active event, for
// inspection and debugging.
type EventInfo struct {
	ID            Handle
	Label         string
	Kind          Kind
	NextTrigger   time.Time
	TimeRemaining time.Duration
	Recurring     bool
}

// FireRecord describes one completed firing. It is handed to the
// FireHook after the callback returns (or panics).
type FireRecord struct {
	EventID   Handle
	Label     string
	Kind      Kind
	Scheduled time.Time
	Fired     time.Time
	Lag       time.Duration
	Duration  time.Duration
	PanicText string
}

// EventOption customizes a single registration.
type EventOption func(*event)

// WithLabel attaches a human-readable label used in logs, snapshots
// and fire records.
func WithLabel(label string) EventOption {
	return func(e *event) { e.label = label }
}
