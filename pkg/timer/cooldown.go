package timer

import (
	"sync"
	"time"

	"timekit/pkg/clock"
)

// Cooldown throttles a repeated action: it records when the action was
// last used and reports readiness once the configured duration has
// elapsed.
//
// Use never blocks and never enforces readiness itself; callers gate
// with IsReady first. This keeps the common pattern cheap:
//
//	if cd.IsReady() {
//		cd.Use()
//		doAction()
//	}
type Cooldown struct {
	clk clock.Clock

	mu       sync.Mutex
	duration time.Duration
	lastUsed time.Time
	active   bool
}

// NewCooldown creates a ready Cooldown.
func NewCooldown(duration time.Duration, opts ...Option) (*Cooldown, error) {
	if duration < 0 {
		return nil, ErrNegativeDuration
	}
	o := buildOptions(opts)
	return &Cooldown{clk: o.clk, duration: duration}, nil
}

// IsReady reports whether the action may run: true before any Use, and
// true again once the duration has elapsed since the last Use.
func (c *Cooldown) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return true
	}
	return c.clk.Now().Sub(c.lastUsed) >= c.duration
}

// Use records the action as used now. It always succeeds, regardless
// of readiness.
func (c *Cooldown) Use() {
	c.mu.Lock()
	c.lastUsed = c.clk.Now()
	c.active = true
	c.mu.Unlock()
}

// Remaining reports time until ready, floored at zero.
func (c *Cooldown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return 0
	}
	rem := c.duration - c.clk.Now().Sub(c.lastUsed)
	if rem < 0 {
		rem = 0
	}
	return rem
}

// Progress reports recovery in [0, 1]: 1 means ready, 0 means just
// used. Note this is the inverse orientation of Timer.Progress, where
// 1 means complete.
func (c *Cooldown) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || c.duration <= 0 {
		return 1
	}
	p := c.clk.Now().Sub(c.lastUsed).Seconds() / c.duration.Seconds()
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Reset forces the cooldown ready, as if never used.
func (c *Cooldown) Reset() {
	c.mu.Lock()
	c.active = false
	c.lastUsed = time.Time{}
	c.mu.Unlock()
}

// SetDuration updates the cooldown window. It applies retroactively to
// the last Use.
func (c *Cooldown) SetDuration(d time.Duration) error {
	if d < 0 {
		return ErrNegativeDuration
	}
	c.mu.Lock()
	c.duration = d
	c.mu.Unlock()
	return nil
}

// Duration reports the configured window.
func (c *Cooldown) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}
