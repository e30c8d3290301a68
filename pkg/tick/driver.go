package tick

import (
	"sync"
	"time"

	"timekit/pkg/clock"
	logx "timekit/pkg/logx"
)

// Driver is a Bus fed by a background time.Ticker. It is the
// production tick source; tests use Pump instead.
type Driver struct {
	*Bus

	clk      clock.Clock
	interval time.Duration
	log      logx.Logger

	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewDriver creates a stopped Driver that will tick every interval
// once started. Intervals below 1ms are raised to 1ms.
func NewDriver(interval time.Duration, clk clock.Clock, log logx.Logger) *Driver {
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Driver{
		Bus:      NewBus(),
		clk:      clk,
		interval: interval,
		log:      log,
	}
}

// Start launches the tick goroutine. Calling Start on a running Driver
// is a no-op.
func (d *Driver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopCh != nil {
		return
	}
	d.stopCh = make(chan struct{})
	stopCh := d.stopCh

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		t := time.NewTicker(d.interval)
		defer t.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-t.C:
				d.Publish(d.clk.Now())
			}
		}
	}()
	d.log.Debug("tick driver started", logx.Duration("interval", d.interval))
}

// Stop halts the tick goroutine and waits for it to exit. Subscriptions
// survive a Stop/Start cycle.
func (d *Driver) Stop() {
	d.mu.Lock()
	if d.stopCh == nil {
		d.mu.Unlock()
		return
	}
	close(d.stopCh)
	d.stopCh = nil
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Debug("tick driver stopped")
}

// Pump is a Bus advanced by hand. Tests pair it with a clock.Mock to
// make timing behavior fully deterministic.
type Pump struct {
	*Bus
	clk clock.Clock
}

func NewPump(clk clock.Clock) *Pump {
	if clk == nil {
		clk = clock.System{}
	}
	return &Pump{Bus: NewBus(), clk: clk}
}

// Tick delivers one tick stamped with the pump clock's current time.
func (p *Pump) Tick() {
	p.Publish(p.clk.Now())
}
