package config

import (
	"fmt"
	"strings"
	"time"

	"timekit/pkg/logx"
)

// Config is the daemon configuration, loaded from YAML (or JSON) and
// hot-reloadable via Manager.Watch.
type Config struct {
	Logging   LoggingConfig    `json:"logging"`
	Tick      TickConfig       `json:"tick"`
	Scheduler SchedulerConfig  `json:"scheduler"`
	History   HistoryConfig    `json:"history"`
	Schedules []ScheduleConfig `json:"schedules"`
}

type LoggingConfig struct {
	Level   string `json:"level"`
	Console *bool  `json:"console"`
	File    struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path"`
	} `json:"file"`
}

// Logx converts to the logging package's config shape.
func (c LoggingConfig) Logx() logx.Config {
	console := true
	if c.Console != nil {
		console = *c.Console
	}
	out := logx.Config{Level: c.Level, Console: console}
	out.File.Enabled = c.File.Enabled
	out.File.Path = c.File.Path
	return out
}

type TickConfig struct {
	// Interval between host ticks, e.g. "100ms". The period is a
	// target, not a guarantee; all consumers tolerate jitter.
	Interval string `json:"interval"`
}

func (c TickConfig) IntervalDuration() (time.Duration, error) {
	return parseDurationOrDefault("tick.interval", c.Interval, 100*time.Millisecond)
}

type SchedulerConfig struct {
	// Tolerance below the trigger time within which an event may fire,
	// e.g. "16ms".
	Tolerance string `json:"tolerance"`
}

func (c SchedulerConfig) ToleranceDuration() (time.Duration, error) {
	return parseDurationOrDefault("scheduler.tolerance", c.Tolerance, 16*time.Millisecond)
}

type HistoryConfig struct {
	Enabled    bool   `json:"enabled"`
	Driver     string `json:"driver"` // "sqlite" | "memory"
	Path       string `json:"path"`
	MaxRecords int    `json:"max_records"`
}

// ScheduleConfig declares one event registered at daemon start.
//
// Spec forms (see ParseSchedule): cron ("*/5 * * * *", "@hourly"),
// interval ("30s", "02:30"), or one-shot ("once:5m").
type ScheduleConfig struct {
	Name string `json:"name"`
	Spec string `json:"spec"`
	// Message logged when the schedule fires; defaults to the name.
	Message string `json:"message"`
}

// Validate rejects configs that cannot be applied. It is also used as
// the Manager's pre-commit validator during hot reload.
func (c *Config) Validate() error {
	if _, err := c.Tick.IntervalDuration(); err != nil {
		return err
	}
	if _, err := c.Scheduler.ToleranceDuration(); err != nil {
		return err
	}
	switch strings.TrimSpace(strings.ToLower(c.History.Driver)) {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("history.driver: unknown driver %q", c.History.Driver)
	}
	if c.History.Enabled && strings.EqualFold(c.History.Driver, "sqlite") && strings.TrimSpace(c.History.Path) == "" {
		return fmt.Errorf("history.path is required for the sqlite driver")
	}
	seen := map[string]bool{}
	for i, sc := range c.Schedules {
		name := strings.TrimSpace(sc.Name)
		if name == "" {
			return fmt.Errorf("schedules[%d]: name required", i)
		}
		if seen[name] {
			return fmt.Errorf("schedules[%d]: duplicate name %q", i, name)
		}
		seen[name] = true
		if _, err := ParseSchedule(sc.Spec); err != nil {
			return fmt.Errorf("schedules[%d] (%s): %w", i, name, err)
		}
	}
	return nil
}
