package timer

import (
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"timekit/pkg/clock"
	logx "timekit/pkg/logx"
	"timekit/pkg/tick"
	"timekit/pkg/timefmt"
)

// ErrNegativeDuration rejects durations below zero. Validation happens
// at the call boundary, before any state changes.
var ErrNegativeDuration = errors.New("timer: duration must be >= 0")

// DefaultNotifyInterval bounds how often tick callbacks fire,
// regardless of the tick source's cadence.
const DefaultNotifyInterval = 50 * time.Millisecond

// Mode selects whether a Timer counts down to zero or up from zero.
type Mode int

const (
	Countdown Mode = iota
	Countup
)

func (m Mode) String() string {
	if m == Countup {
		return "countup"
	}
	return "countdown"
}

// State is the timer state machine position.
type State int

const (
	Idle State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// Option customizes a Timer or Cooldown.
type Option func(*options)

type options struct {
	clk            clock.Clock
	src            tick.Source
	log            logx.Logger
	notifyInterval time.Duration
}

// WithClock overrides the system clock.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clk = clk }
}

// WithTickSource attaches the timer to a tick source while running.
// Without one, the timer still answers queries but delivers no tick or
// completion notifications.
func WithTickSource(src tick.Source) Option {
	return func(o *options) { o.src = src }
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(log logx.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithNotifyInterval overrides DefaultNotifyInterval. Values at or
// below zero disable the throttle.
func WithNotifyInterval(d time.Duration) Option {
	return func(o *options) { o.notifyInterval = d }
}

func buildOptions(opts []Option) options {
	o := options{clk: clock.System{}, notifyInterval: DefaultNotifyInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clk == nil {
		o.clk = clock.System{}
	}
	return o
}

// Timer is a countdown/countup state machine.
//
// While Paused, elapsed time is frozen: the pause gap is excluded by
// shifting the start time forward on Resume. Owners must call Stop to
// detach from the tick source; teardown is not left to the garbage
// collector.
type Timer struct {
	clk clock.Clock
	src tick.Source
	log logx.Logger

	mu       sync.Mutex
	duration time.Duration
	mode     Mode
	state    State
	start    time.Time
	pausedAt time.Time

	limiter *rate.Limiter

	tickCBs callbacks[func(time.Duration)]
	doneCBs callbacks[func()]

	sub      tick.Handle
	attached bool
}

// New creates an Idle timer.
func New(duration time.Duration, mode Mode, opts ...Option) (*Timer, error) {
	if duration < 0 {
		return nil, ErrNegativeDuration
	}
	o := buildOptions(opts)

	t := &Timer{
		clk:      o.clk,
		src:      o.src,
		log:      o.log,
		duration: duration,
		mode:     mode,
	}
	if o.notifyInterval > 0 {
		t.limiter = rate.NewLimiter(rate.Every(o.notifyInterval), 1)
	}
	return t, nil
}

// Start moves Idle -> Running. It returns false (and does nothing)
// when the timer is already Running or Paused.
func (t *Timer) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Idle {
		return false
	}
	t.state = Running
	t.start = t.clk.Now()
	if t.src != nil && !t.attached {
		t.sub = t.src.Subscribe(t.onTick)
		t.attached = true
	}
	t.log.Debug("timer started", logx.String("mode", t.mode.String()), logx.Duration("duration", t.duration))
	return true
}

// Pause moves Running -> Paused, freezing elapsed time.
func (t *Timer) Pause() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Running {
		return false
	}
	t.state = Paused
	t.pausedAt = t.clk.Now()
	return true
}

// Resume moves Paused -> Running. The pause gap is excluded from
// elapsed time.
func (t *Timer) Resume() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Paused {
		return false
	}
	now := t.clk.Now()
	t.start = t.start.Add(now.Sub(t.pausedAt))
	t.pausedAt = time.Time{}
	t.state = Running
	return true
}

// Stop returns to Idle from any state, resets accumulated time, and
// releases the tick subscription.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.stopLocked()
	t.mu.Unlock()
}

func (t *Timer) stopLocked() {
	t.state = Idle
	t.start = time.Time{}
	t.pausedAt = time.Time{}
	if t.attached {
		t.src.Unsubscribe(t.sub)
		t.attached = false
	}
}

// SetDuration updates the duration in any state. If a running
// countdown has already passed the new duration, completion fires
// immediately rather than waiting for the next tick.
func (t *Timer) SetDuration(d time.Duration) error {
	if d < 0 {
		return ErrNegativeDuration
	}
	t.mu.Lock()
	t.duration = d

	var done []func()
	if t.mode == Countdown && t.state == Running && t.elapsedLocked(t.clk.Now()) >= d {
		done = t.doneCBs.snapshot()
		t.stopLocked()
	}
	t.mu.Unlock()

	t.fireCompletion(done)
	return nil
}

// Duration reports the configured duration.
func (t *Timer) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration
}

// Time reports remaining time (Countdown) or elapsed time (Countup).
// Idle timers report the full duration (Countdown) or zero (Countup);
// paused timers report the value frozen at pause time.
func (t *Timer) Time() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.valueLocked(t.clk.Now())
}

// Progress reports normalized completion in [0, 1]: 0 just started,
// 1 complete. A countup past its nominal duration stays capped at 1
// and keeps running; it does not auto-complete.
func (t *Timer) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.duration <= 0 {
		if t.state == Idle && t.mode == Countup {
			return 0
		}
		return 1
	}
	p := t.elapsedLocked(t.clk.Now()).Seconds() / t.duration.Seconds()
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// EndTime reports when a countdown will complete. While Paused it is
// recomputed from "now" plus the frozen remaining time, not the
// original end time. The second result is false for countup timers.
func (t *Timer) EndTime() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode != Countdown {
		return time.Time{}, false
	}
	now := t.clk.Now()
	if t.state == Running {
		return t.start.Add(t.duration), true
	}
	return now.Add(t.valueLocked(now)), true
}

// TimeString renders Time() via the formatting package.
func (t *Timer) TimeString(style timefmt.Style) string {
	return timefmt.Duration(t.Time(), style)
}

func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == Running
}

func (t *Timer) IsPaused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == Paused
}

// OnTick registers fn to receive Time() on each tick while running, at
// most once per notify interval.
func (t *Timer) OnTick(fn func(time.Duration)) CallbackHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tickCBs.add(fn)
}

// OnComplete registers fn to fire exactly once when a countdown
// reaches zero.
func (t *Timer) OnComplete(fn func()) CallbackHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doneCBs.add(fn)
}

// RemoveTick detaches a tick callback. False for unknown handles.
func (t *Timer) RemoveTick(h CallbackHandle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tickCBs.remove(h)
}

// RemoveComplete detaches a completion callback.
func (t *Timer) RemoveComplete(h CallbackHandle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doneCBs.remove(h)
}

func (t *Timer) elapsedLocked(now time.Time) time.Duration {
	switch t.state {
	case Running:
		return now.Sub(t.start)
	case Paused:
		return t.pausedAt.Sub(t.start)
	default:
		return 0
	}
}

func (t *Timer) valueLocked(now time.Time) time.Duration {
	if t.state == Idle {
		if t.mode == Countdown {
			return t.duration
		}
		return 0
	}
	elapsed := t.elapsedLocked(now)
	if t.mode == Countup {
		return elapsed
	}
	remaining := t.duration - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// onTick runs on the tick source's goroutine. Callback lists are
// snapshotted under the lock and invoked outside it.
func (t *Timer) onTick(now time.Time) {
	t.mu.Lock()
	if t.state != Running {
		t.mu.Unlock()
		return
	}

	val := t.valueLocked(now)

	var ticks []func(time.Duration)
	if t.limiter == nil || t.limiter.Allow() {
		ticks = t.tickCBs.snapshot()
	}

	var done []func()
	if t.mode == Countdown && t.duration-t.elapsedLocked(now) <= 0 {
		done = t.doneCBs.snapshot()
		t.stopLocked()
	}
	t.mu.Unlock()

	for _, fn := range ticks {
		t.safeCall(func() { fn(val) })
	}
	t.fireCompletion(done)
}

func (t *Timer) fireCompletion(done []func()) {
	if len(done) == 0 {
		return
	}
	t.log.Debug("timer completed", logx.Duration("duration", t.Duration()))
	for _, fn := range done {
		fn := fn
		t.safeCall(fn)
	}
}

// safeCall isolates one callback: a panic is logged and must not block
// sibling callbacks or propagate into the tick source.
func (t *Timer) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("timer callback panic", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	fn()
}
