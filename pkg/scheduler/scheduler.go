package scheduler

import (
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"timekit/pkg/clock"
	logx "timekit/pkg/logx"
	"timekit/pkg/tick"
)

// DefaultTolerance absorbs tick-granularity jitter: an event may fire
// up to this long before its trigger time, never more.
const DefaultTolerance = 16 * time.Millisecond

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger. Default is a no-op logger.
func WithLogger(log logx.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithTolerance overrides DefaultTolerance. Negative values are
// treated as zero.
func WithTolerance(d time.Duration) Option {
	return func(s *Scheduler) {
		if d < 0 {
			d = 0
		}
		s.tolerance = d
	}
}

// WithFireHook installs a hook invoked after every completed firing,
// on the callback's goroutine. Used for journaling; must not block.
func WithFireHook(fn func(FireRecord)) Option {
	return func(s *Scheduler) { s.onFired = fn }
}

// Scheduler owns a registry of pending events and a lazily-activated
// subscription to the tick source: it is only attached while at least
// one active event exists.
type Scheduler struct {
	clk       clock.Clock
	src       tick.Source
	log       logx.Logger
	tolerance time.Duration
	onFired   func(FireRecord)
	parser    cron.Parser

	// Panic reports are rate-limited so a hot recurring callback that
	// keeps panicking cannot flood the sinks.
	panicLim *rate.Limiter

	mu       sync.Mutex
	nextID   uint64
	events   map[uint64]*event
	triggers triggerHeap
	sub      tick.Handle
	attached bool
	closed   bool
}

// New creates a Scheduler reading time from clk and advancing on src.
func New(clk clock.Clock, src tick.Source, opts ...Option) *Scheduler {
	if clk == nil {
		clk = clock.System{}
	}
	s := &Scheduler{
		clk:       clk,
		src:       src,
		tolerance: DefaultTolerance,
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		panicLim:  rate.NewLimiter(rate.Every(time.Second), 5),
		events:    map[uint64]*event{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleOnce registers fn to fire once after delay.
func (s *Scheduler) ScheduleOnce(delay time.Duration, fn func(), opts ...EventOption) (Handle, error) {
	if delay < 0 {
		return 0, ErrNegativeDelay
	}
	if fn == nil {
		return 0, ErrNilCallback
	}
	return s.register(&event{kind: KindOnce, delay: delay, fn: fn}, opts)
}

// ScheduleRecurring registers fn to fire every interval until
// cancelled. Recurrence is drift-accumulating: each next trigger is
// computed from "now" at fire time, so a slow tick cadence slips the
// absolute schedule instead of causing catch-up firings.
func (s *Scheduler) ScheduleRecurring(interval time.Duration, fn func(), opts ...EventOption) (Handle, error) {
	if interval <= 0 {
		return 0, ErrNonPositiveInterval
	}
	if fn == nil {
		return 0, ErrNilCallback
	}
	return s.register(&event{kind: KindRecurring, interval: interval, fn: fn}, opts)
}

// ScheduleCron registers fn on a cron spec ("*/5 * * * *", "@hourly",
// "@every 90s"). Unlike ScheduleRecurring, cron events are
// phase-locked to the calendar by the spec itself.
func (s *Scheduler) ScheduleCron(spec string, fn func(), opts ...EventOption) (Handle, error) {
	if fn == nil {
		return 0, ErrNilCallback
	}
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return 0, fmt.Errorf("scheduler: parse cron spec %q: %w", spec, err)
	}
	return s.register(&event{kind: KindCron, spec: spec, sched: sched, fn: fn}, opts)
}

func (s *Scheduler) register(ev *event, opts []EventOption) (Handle, error) {
	for _, opt := range opts {
		opt(ev)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	now := s.clk.Now()
	switch ev.kind {
	case KindOnce:
		ev.next = now.Add(ev.delay)
	case KindRecurring:
		ev.next = now.Add(ev.interval)
	case KindCron:
		ev.next = ev.sched.Next(now)
		if ev.next.IsZero() {
			return 0, fmt.Errorf("scheduler: cron spec %q has no future runs", ev.spec)
		}
	}

	s.nextID++
	ev.id = s.nextID
	s.events[ev.id] = ev
	s.triggers.push(triggerItem{at: ev.next, id: ev.id, gen: ev.gen})
	s.updateSubscriptionLocked()

	s.log.Debug("event scheduled",
		logx.Uint64("id", ev.id),
		logx.String("kind", string(ev.kind)),
		logx.String("label", ev.label),
		logx.Time("next", ev.next))
	return Handle(ev.id), nil
}

// Cancel removes the event. It returns false for unknown or
// already-cancelled handles; those are benign, expected conditions. A
// callback already dispatched in the current pass is not retracted.
func (s *Scheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[uint64(h)]
	if !ok {
		return false
	}
	ev.cancelled = true
	delete(s.events, uint64(h))
	s.updateSubscriptionLocked()
	s.log.Debug("event cancelled", logx.Uint64("id", ev.id), logx.String("label", ev.label))
	return true
}

// Reschedule pushes the event's trigger time forward using its
// original delay (one-shot), interval (recurring), or cron spec. It
// returns false for unknown or cancelled handles.
func (s *Scheduler) Reschedule(h Handle) bool {
	ok, _ := s.reschedule(h, -1)
	return ok
}

// RescheduleAfter is Reschedule with an explicit new delay from now.
func (s *Scheduler) RescheduleAfter(h Handle, delay time.Duration) (bool, error) {
	if delay < 0 {
		return false, ErrNegativeDelay
	}
	return s.reschedule(h, delay)
}

func (s *Scheduler) reschedule(h Handle, delay time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[uint64(h)]
	if !ok {
		return false, nil
	}

	// The trigger only ever moves relative to "now", never backwards
	// behind it.
	now := s.clk.Now()
	switch {
	case delay >= 0:
		ev.next = now.Add(delay)
		if ev.kind == KindOnce {
			ev.delay = delay
		}
	case ev.kind == KindOnce:
		ev.next = now.Add(ev.delay)
	case ev.kind == KindRecurring:
		ev.next = now.Add(ev.interval)
	default:
		ev.next = ev.sched.Next(now)
	}

	ev.gen++
	s.triggers.push(triggerItem{at: ev.next, id: ev.id, gen: ev.gen})
	s.log.Debug("event rescheduled", logx.Uint64("id", ev.id), logx.Time("next", ev.next))
	return true, nil
}

// TimeRemaining reports time until the next trigger, zero for unknown
// or cancelled handles.
func (s *Scheduler) TimeRemaining(h Handle) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[uint64(h)]
	if !ok {
		return 0
	}
	d := ev.next.Sub(s.clk.Now())
	if d < 0 {
		d = 0
	}
	return d
}

// ScheduledAt reports the absolute next trigger time.
func (s *Scheduler) ScheduledAt(h Handle) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[uint64(h)]
	if !ok {
		return time.Time{}, false
	}
	return ev.next, true
}

// IsScheduled reports whether the event is still pending.
func (s *Scheduler) IsScheduled(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.events[uint64(h)]
	return ok
}

// ActiveCount reports the number of pending events.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// CancelAll drops every pending event and releases the tick
// subscription.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.events)
	for id, ev := range s.events {
		ev.cancelled = true
		delete(s.events, id)
	}
	s.triggers = s.triggers[:0]
	s.updateSubscriptionLocked()
	if n > 0 {
		s.log.Debug("all events cancelled", logx.Int("count", n))
	}
}

// Close cancels everything and rejects further registrations. The tick
// subscription is released deterministically; callers must not rely on
// garbage collection for teardown.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ev := range s.events {
		ev.cancelled = true
		delete(s.events, id)
	}
	s.triggers = s.triggers[:0]
	s.closed = true
	s.updateSubscriptionLocked()
}

// updateSubscriptionLocked attaches to or detaches from the tick
// source based on whether any active event remains. Call with s.mu
// held.
func (s *Scheduler) updateSubscriptionLocked() {
	if s.src == nil {
		return
	}
	active := len(s.events) > 0 && !s.closed
	switch {
	case active && !s.attached:
		s.sub = s.src.Subscribe(s.onTick)
		s.attached = true
	case !active && s.attached:
		s.src.Unsubscribe(s.sub)
		s.attached = false
	}
}

type fireJob struct {
	id        uint64
	label     string
	kind      Kind
	scheduled time.Time
	now       time.Time
	fn        func()
}

// onTick advances the registry one pass: collect due events, compute
// their next triggers (or remove them), then dispatch callbacks off
// the lock in registration order.
func (s *Scheduler) onTick(now time.Time) {
	s.mu.Lock()

	horizon := now.Add(s.tolerance)
	var due []*event
	for {
		top, ok := s.triggers.peek()
		if !ok || top.at.After(horizon) {
			break
		}
		item := s.triggers.pop()
		ev, live := s.events[item.id]
		if !live || ev.gen != item.gen || ev.cancelled {
			// Stale heap entry from a cancel or reschedule; sweep it.
			continue
		}
		due = append(due, ev)
	}

	// Firing order within a pass is registration order, regardless of
	// how trigger times interleave.
	sort.Slice(due, func(i, j int) bool { return due[i].id < due[j].id })

	jobs := make([]fireJob, 0, len(due))
	for _, ev := range due {
		jobs = append(jobs, fireJob{
			id:        ev.id,
			label:     ev.label,
			kind:      ev.kind,
			scheduled: ev.next,
			now:       now,
			fn:        ev.fn,
		})

		switch ev.kind {
		case KindOnce:
			delete(s.events, ev.id)
		case KindRecurring:
			ev.next = now.Add(ev.interval)
			ev.gen++
			s.triggers.push(triggerItem{at: ev.next, id: ev.id, gen: ev.gen})
		case KindCron:
			next := ev.sched.Next(now)
			if next.IsZero() {
				delete(s.events, ev.id)
				break
			}
			ev.next = next
			ev.gen++
			s.triggers.push(triggerItem{at: ev.next, id: ev.id, gen: ev.gen})
		}
	}

	s.updateSubscriptionLocked()
	s.mu.Unlock()

	// Dispatch off the tick goroutine so callbacks can never stall the
	// loop. Within the pass they run sequentially in registration
	// order; fire() isolates each one, so a panicking callback cannot
	// take its siblings down with it.
	if len(jobs) > 0 {
		go func() {
			for _, job := range jobs {
				s.fire(job)
			}
		}()
	}
}

func (s *Scheduler) fire(job fireJob) {
	rec := FireRecord{
		EventID:   Handle(job.id),
		Label:     job.label,
		Kind:      job.kind,
		Scheduled: job.scheduled,
		Fired:     job.now,
	}
	if lag := job.now.Sub(job.scheduled); lag > 0 {
		rec.Lag = lag
	}

	start := time.Now()
	defer func() {
		rec.Duration = time.Since(start)
		if r := recover(); r != nil {
			rec.PanicText = fmt.Sprint(r)
			if s.panicLim.Allow() {
				s.log.Error("event callback panic",
					logx.Uint64("id", job.id),
					logx.String("label", job.label),
					logx.Any("panic", r),
					logx.Stack(string(debug.Stack())))
			}
		}
		if s.onFired != nil {
			s.onFired(rec)
		}
	}()
	job.fn()
}
