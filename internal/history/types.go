package history

import (
	"context"
	"errors"
	"time"
)

// ErrDisabled is returned by stores that discard writes.
var ErrDisabled = errors.New("history: disabled")

type Config struct {
	Enabled bool
	Driver  string // "sqlite" | "memory"
	Path    string
	// MaxRecords bounds the journal; older rows are pruned. <= 0 means
	// the default of 1000.
	MaxRecords  int
	BusyTimeout time.Duration
}

// Record is one completed firing.
type Record struct {
	EventID   uint64
	Label     string
	Kind      string
	Scheduled time.Time
	Fired     time.Time
	Lag       time.Duration
	Duration  time.Duration
	PanicText string
}

type Store interface {
	Append(ctx context.Context, r Record) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

const defaultMaxRecords = 1000

func (c Config) maxRecords() int {
	if c.MaxRecords <= 0 {
		return defaultMaxRecords
	}
	return c.MaxRecords
}
