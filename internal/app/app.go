// Package app wires the daemon together: config, logging, tick driver,
// scheduler, and the firing journal.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"timekit/internal/config"
	"timekit/internal/history"
	"timekit/pkg/clock"
	logx "timekit/pkg/logx"
	"timekit/pkg/scheduler"
	"timekit/pkg/tick"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	log  logx.Logger
	logs *logx.Service

	clk    clock.Clock
	driver *tick.Driver
	sched  *scheduler.Scheduler
	store  history.Store

	mu      sync.Mutex
	handles map[string]scheduler.Handle

	updates     chan *config.Config
	watchCancel context.CancelFunc
	watchWG     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logs, log := logx.New(cfg.Logging.Logx())
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		return c.Validate()
	})

	store, err := history.Open(history.Config{
		Enabled:    cfg.History.Enabled,
		Driver:     cfg.History.Driver,
		Path:       cfg.History.Path,
		MaxRecords: cfg.History.MaxRecords,
	}, log.With(logx.String("comp", "history")))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	interval, err := cfg.Tick.IntervalDuration()
	if err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, err
	}
	tolerance, err := cfg.Scheduler.ToleranceDuration()
	if err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, err
	}

	clk := clock.System{}
	driver := tick.NewDriver(interval, clk, log.With(logx.String("comp", "tick")))

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logs,
		clk:     clk,
		driver:  driver,
		store:   store,
		handles: map[string]scheduler.Handle{},
	}

	a.sched = scheduler.New(clk, driver,
		scheduler.WithLogger(log.With(logx.String("comp", "scheduler"))),
		scheduler.WithTolerance(tolerance),
		scheduler.WithFireHook(a.journal),
	)
	return a, nil
}

// Logger exposes the root logger for callers that embed the app.
func (a *App) Logger() logx.Logger { return a.log }

// Scheduler exposes the running scheduler for ad-hoc registrations.
func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }

func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgm.Get()
	if cfg == nil {
		return fmt.Errorf("app: config not loaded")
	}

	a.driver.Start()
	if err := a.applySchedules(cfg); err != nil {
		a.driver.Stop()
		return err
	}

	// Config watch + reload loop.
	wctx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	a.updates = a.cfgm.Subscribe(1)
	updates := a.updates
	a.watchWG.Add(2)
	go func() {
		defer a.watchWG.Done()
		if err := a.cfgm.Watch(wctx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go func() {
		defer a.watchWG.Done()
		for {
			select {
			case <-wctx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.applyConfig(cfg)
			}
		}
	}()

	a.startWatchdog()

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("systemd notified ready")
	}

	a.log.Info("timekit started",
		logx.Int("schedules", len(cfg.Schedules)),
		logx.Bool("history", cfg.History.Enabled))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if a.watchCancel != nil {
		a.watchCancel()
	}
	a.watchWG.Wait()
	if a.updates != nil {
		a.cfgm.Unsubscribe(a.updates)
		a.updates = nil
	}

	a.sched.Close()
	a.driver.Stop()
	if err := a.store.Close(); err != nil {
		a.log.Warn("history close failed", logx.Err(err))
	}
	a.log.Info("timekit stopped")
	return a.logs.Close()
}

// applyConfig handles a hot reload: swap log sinks, then re-register
// the declared schedule set.
func (a *App) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.logs.Apply(cfg.Logging.Logx())
	if err := a.applySchedules(cfg); err != nil {
		a.log.Warn("schedule reload failed", logx.Err(err))
		return
	}
	a.log.Info("config reloaded", logx.Int("schedules", len(cfg.Schedules)))
}

// applySchedules replaces the declared schedule set wholesale: cancel
// everything registered from config, then register the new set. Ad-hoc
// events registered through Scheduler() directly are not touched.
func (a *App) applySchedules(cfg *config.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for name, h := range a.handles {
		a.sched.Cancel(h)
		delete(a.handles, name)
	}

	for _, sc := range cfg.Schedules {
		sc := sc
		msg := sc.Message
		if msg == "" {
			msg = sc.Name
		}
		fire := func() {
			a.log.Info("schedule fired", logx.String("name", sc.Name), logx.String("msg", msg))
		}

		ps, err := config.ParseSchedule(sc.Spec)
		if err != nil {
			return fmt.Errorf("schedule %q: %w", sc.Name, err)
		}

		var h scheduler.Handle
		switch ps.Kind {
		case config.SpecCron:
			h, err = a.sched.ScheduleCron(ps.Cron, fire, scheduler.WithLabel(sc.Name))
		case config.SpecInterval:
			h, err = a.sched.ScheduleRecurring(ps.Every, fire, scheduler.WithLabel(sc.Name))
		case config.SpecOnce:
			h, err = a.sched.ScheduleOnce(ps.Every, fire, scheduler.WithLabel(sc.Name))
		default:
			err = fmt.Errorf("unsupported schedule kind")
		}
		if err != nil {
			return fmt.Errorf("schedule %q: %w", sc.Name, err)
		}
		a.handles[sc.Name] = h
	}
	return nil
}

// journal runs on callback goroutines via the scheduler's fire hook.
func (a *App) journal(rec scheduler.FireRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := a.store.Append(ctx, history.Record{
		EventID:   uint64(rec.EventID),
		Label:     rec.Label,
		Kind:      string(rec.Kind),
		Scheduled: rec.Scheduled,
		Fired:     rec.Fired,
		Lag:       rec.Lag,
		Duration:  rec.Duration,
		PanicText: rec.PanicText,
	})
	if err != nil {
		a.log.Debug("history append failed", logx.Err(err))
	}
}

// startWatchdog keeps systemd's watchdog fed off the scheduler itself,
// which doubles as a liveness check for the tick loop.
func (a *App) startWatchdog() {
	wd, err := daemon.SdWatchdogEnabled(false)
	if err != nil || wd <= 0 {
		return
	}
	interval := wd / 2
	_, err = a.sched.ScheduleRecurring(interval, func() {
		_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
	}, scheduler.WithLabel("systemd-watchdog"))
	if err != nil {
		a.log.Warn("watchdog schedule failed", logx.Err(err))
		return
	}
	a.log.Debug("systemd watchdog enabled", logx.Duration("interval", interval))
}
