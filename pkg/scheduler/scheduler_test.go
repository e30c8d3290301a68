package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"timekit/pkg/clock"
	"timekit/pkg/tick"
)

var t0 = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func newHarness() (*clock.Mock, *tick.Pump, *Scheduler) {
	clk := clock.NewMock(t0)
	pump := tick.NewPump(clk)
	s := New(clk, pump)
	return clk, pump, s
}

// advance moves the mock clock and delivers one tick.
func advance(clk *clock.Mock, pump *tick.Pump, d time.Duration) {
	clk.Advance(d)
	pump.Tick()
}

// waitFor polls until cond is true or the deadline passes. Needed
// because callbacks dispatch on their own goroutine.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestScheduleValidation(t *testing.T) {
	t.Parallel()
	_, _, s := newHarness()

	if _, err := s.ScheduleOnce(-time.Second, func() {}); err != ErrNegativeDelay {
		t.Fatalf("negative delay: got %v, want ErrNegativeDelay", err)
	}
	if _, err := s.ScheduleRecurring(0, func() {}); err != ErrNonPositiveInterval {
		t.Fatalf("zero interval: got %v, want ErrNonPositiveInterval", err)
	}
	if _, err := s.ScheduleOnce(time.Second, nil); err != ErrNilCallback {
		t.Fatalf("nil callback: got %v, want ErrNilCallback", err)
	}
	if _, err := s.ScheduleCron("not a cron", func() {}); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestScheduleOnceFiresExactlyOnce(t *testing.T) {
	t.Parallel()
	clk, pump, s := newHarness()

	var fired atomic.Int32
	h, err := s.ScheduleOnce(2*time.Second, func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("ScheduleOnce: %v", err)
	}

	// t=1s: not due yet.
	advance(clk, pump, time.Second)
	if got := s.ActiveCount(); got != 1 {
		t.Fatalf("ActiveCount at t=1s: got %d, want 1", got)
	}
	if n := fired.Load(); n != 0 {
		t.Fatalf("fired early: %d", n)
	}

	// t=2.02s: due; fires exactly once and leaves the registry.
	advance(clk, pump, 1020*time.Millisecond)
	if got := s.ActiveCount(); got != 0 {
		t.Fatalf("ActiveCount after firing: got %d, want 0", got)
	}
	waitFor(t, func() bool { return fired.Load() == 1 }, "one-shot to fire")

	// Further ticks change nothing.
	advance(clk, pump, 10*time.Second)
	if n := fired.Load(); n != 1 {
		t.Fatalf("one-shot fired %d times", n)
	}
	if s.IsScheduled(h) {
		t.Fatal("handle still scheduled after firing")
	}
}

func TestDueToleranceNeverFiresTooEarly(t *testing.T) {
	t.Parallel()
	clk, pump, s := newHarness()

	if _, err := s.ScheduleOnce(10*time.Second, func() {}); err != nil {
		t.Fatalf("ScheduleOnce: %v", err)
	}

	// 100ms early is outside the 16ms tolerance.
	advance(clk, pump, 9900*time.Millisecond)
	if got := s.ActiveCount(); got != 1 {
		t.Fatal("fired more than the tolerance below the trigger time")
	}

	// 10ms early is inside it.
	advance(clk, pump, 90*time.Millisecond)
	if got := s.ActiveCount(); got != 0 {
		t.Fatal("did not fire within the jitter tolerance")
	}
}

func TestCancelBeforeTrigger(t *testing.T) {
	t.Parallel()
	clk, pump, s := newHarness()

	var fired atomic.Int32
	h, _ := s.ScheduleOnce(time.Second, func() { fired.Add(1) })

	if !s.Cancel(h) {
		t.Fatal("Cancel returned false for a pending event")
	}
	if s.Cancel(h) {
		t.Fatal("second Cancel returned true")
	}

	advance(clk, pump, 5*time.Second)
	time.Sleep(10 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Fatalf("cancelled event fired %d times", n)
	}
	if s.TimeRemaining(h) != 0 {
		t.Fatal("TimeRemaining nonzero for cancelled handle")
	}
}

func TestCancelAfterFiringIsNoop(t *testing.T) {
	t.Parallel()
	clk, pump, s := newHarness()

	h, _ := s.ScheduleOnce(time.Second, func() {})
	advance(clk, pump, 2*time.Second)
	if s.Cancel(h) {
		t.Fatal("Cancel returned true after the event already fired")
	}
}

func TestRecurringDriftAccumulating(t *testing.T) {
	t.Parallel()
	clk, pump, s := newHarness()

	var fired atomic.Int32
	h, err := s.ScheduleRecurring(5*time.Second, func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("ScheduleRecurring: %v", err)
	}

	advance(clk, pump, 5*time.Second)
	waitFor(t, func() bool { return fired.Load() == 1 }, "first firing")

	// Late tick at t=12s: fires once, next trigger slips to t=17s
	// (now+interval), no catch-up firing at t=15s.
	advance(clk, pump, 7*time.Second)
	waitFor(t, func() bool { return fired.Load() == 2 }, "second firing")

	at, ok := s.ScheduledAt(h)
	if !ok {
		t.Fatal("recurring event missing after firing")
	}
	if want := t0.Add(17 * time.Second); !at.Equal(want) {
		t.Fatalf("next trigger = %v, want %v (drift-accumulating)", at, want)
	}

	advance(clk, pump, 3*time.Second) // t=15s, before the slipped trigger
	time.Sleep(10 * time.Millisecond)
	if n := fired.Load(); n != 2 {
		t.Fatalf("catch-up firing happened: %d", n)
	}

	if !s.Cancel(h) {
		t.Fatal("Cancel recurring failed")
	}
	advance(clk, pump, time.Minute)
	time.Sleep(10 * time.Millisecond)
	if n := fired.Load(); n != 2 {
		t.Fatalf("fired after cancel: %d", n)
	}
}

func TestFiringOrderIsRegistrationOrder(t *testing.T) {
	t.Parallel()
	clk, pump, s := newHarness()

	order := make(chan int, 3)
	// Registered 1,2,3 but with trigger times 3s, 1s, 2s.
	if _, err := s.ScheduleOnce(3*time.Second, func() { order <- 1 }); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ScheduleOnce(1*time.Second, func() { order <- 2 }); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ScheduleOnce(2*time.Second, func() { order <- 3 }); err != nil {
		t.Fatal(err)
	}

	// All three become due in the same pass.
	advance(clk, pump, 5*time.Second)

	for want := 1; want <= 3; want++ {
		select {
		case got := <-order:
			if got != want {
				t.Fatalf("firing order: got %d, want %d", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for callback %d", want)
		}
	}
}

func TestCallbackPanicIsolation(t *testing.T) {
	t.Parallel()
	clk, pump, s := newHarness()

	var survived atomic.Bool
	if _, err := s.ScheduleOnce(time.Second, func() { panic("boom") }); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ScheduleOnce(time.Second, func() { survived.Store(true) }); err != nil {
		t.Fatal(err)
	}

	advance(clk, pump, 2*time.Second)
	waitFor(t, func() bool { return survived.Load() }, "sibling callback after panic")

	// The loop itself survives too.
	var after atomic.Bool
	if _, err := s.ScheduleOnce(time.Second, func() { after.Store(true) }); err != nil {
		t.Fatal(err)
	}
	advance(clk, pump, 2*time.Second)
	waitFor(t, func() bool { return after.Load() }, "event scheduled after panic")
}

func TestReschedule(t *testing.T) {
	t.Parallel()
	clk, pump, s := newHarness()

	h, _ := s.ScheduleOnce(2*time.Second, func() {})

	// Reschedule reuses the original delay from "now".
	clk.Advance(time.Second)
	if !s.Reschedule(h) {
		t.Fatal("Reschedule returned false for a pending event")
	}
	at, _ := s.ScheduledAt(h)
	if want := t0.Add(3 * time.Second); !at.Equal(want) {
		t.Fatalf("rescheduled trigger = %v, want %v", at, want)
	}

	// Explicit delay.
	if ok, err := s.RescheduleAfter(h, 10*time.Second); err != nil || !ok {
		t.Fatalf("RescheduleAfter: ok=%v err=%v", ok, err)
	}
	at, _ = s.ScheduledAt(h)
	if want := t0.Add(11 * time.Second); !at.Equal(want) {
		t.Fatalf("trigger after RescheduleAfter = %v, want %v", at, want)
	}

	if _, err := s.RescheduleAfter(h, -time.Second); err != ErrNegativeDelay {
		t.Fatalf("negative reschedule: got %v, want ErrNegativeDelay", err)
	}

	// The old heap entry is stale; only the new trigger fires.
	var fired atomic.Int32
	h2, _ := s.ScheduleOnce(time.Second, func() { fired.Add(1) })
	if ok, err := s.RescheduleAfter(h2, 30*time.Second); err != nil || !ok {
		t.Fatalf("RescheduleAfter: ok=%v err=%v", ok, err)
	}
	advance(clk, pump, 5*time.Second)
	time.Sleep(10 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("stale heap entry fired after reschedule")
	}

	s.Cancel(h)
	if s.Reschedule(h) {
		t.Fatal("Reschedule returned true for a cancelled event")
	}
}

func TestLazyTickSubscription(t *testing.T) {
	t.Parallel()
	clk := clock.NewMock(t0)
	pump := tick.NewPump(clk)
	s := New(clk, pump)

	if n := pump.SubscriberCount(); n != 0 {
		t.Fatalf("idle scheduler holds %d subscriptions", n)
	}

	h, _ := s.ScheduleOnce(time.Second, func() {})
	if n := pump.SubscriberCount(); n != 1 {
		t.Fatalf("active scheduler holds %d subscriptions, want 1", n)
	}

	s.Cancel(h)
	if n := pump.SubscriberCount(); n != 0 {
		t.Fatalf("scheduler kept subscription after last cancel: %d", n)
	}

	// Firing the last one-shot also releases the subscription.
	_, _ = s.ScheduleOnce(time.Second, func() {})
	clk.Advance(2 * time.Second)
	pump.Tick()
	if n := pump.SubscriberCount(); n != 0 {
		t.Fatalf("scheduler kept subscription after last firing: %d", n)
	}
}

func TestSnapshotAndInspection(t *testing.T) {
	t.Parallel()
	clk, _, s := newHarness()

	h1, _ := s.ScheduleOnce(2*time.Second, func() {}, WithLabel("alpha"))
	h2, _ := s.ScheduleRecurring(5*time.Second, func() {}, WithLabel("beta"))

	if got := s.ActiveCount(); got != 2 {
		t.Fatalf("ActiveCount = %d, want 2", got)
	}
	if !s.IsScheduled(h1) || !s.IsScheduled(h2) {
		t.Fatal("IsScheduled false for pending events")
	}
	if got := s.TimeRemaining(h1); got != 2*time.Second {
		t.Fatalf("TimeRemaining = %v, want 2s", got)
	}
	clk.Advance(time.Second)
	if got := s.TimeRemaining(h1); got != time.Second {
		t.Fatalf("TimeRemaining after 1s = %v, want 1s", got)
	}

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot len = %d, want 2", len(snap))
	}
	if snap[0].Label != "alpha" || snap[1].Label != "beta" {
		t.Fatalf("snapshot order/labels wrong: %+v", snap)
	}
	if snap[0].Recurring || !snap[1].Recurring {
		t.Fatalf("snapshot recurring flags wrong: %+v", snap)
	}

	s.CancelAll()
	if got := s.ActiveCount(); got != 0 {
		t.Fatalf("ActiveCount after CancelAll = %d", got)
	}
}

func TestScheduleCron(t *testing.T) {
	t.Parallel()
	clk, pump, s := newHarness()

	var fired atomic.Int32
	h, err := s.ScheduleCron("@every 1m", func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("ScheduleCron: %v", err)
	}

	at, _ := s.ScheduledAt(h)
	if want := t0.Add(time.Minute); !at.Equal(want) {
		t.Fatalf("cron first trigger = %v, want %v", at, want)
	}

	advance(clk, pump, time.Minute)
	waitFor(t, func() bool { return fired.Load() == 1 }, "cron firing")
	if !s.IsScheduled(h) {
		t.Fatal("cron event vanished after firing")
	}
}

func TestCloseRejectsRegistrations(t *testing.T) {
	t.Parallel()
	_, pump, s := newHarness()

	_, _ = s.ScheduleOnce(time.Second, func() {})
	s.Close()
	if n := pump.SubscriberCount(); n != 0 {
		t.Fatalf("Close left %d tick subscriptions", n)
	}
	if _, err := s.ScheduleOnce(time.Second, func() {}); err != ErrClosed {
		t.Fatalf("schedule after Close: got %v, want ErrClosed", err)
	}
}
