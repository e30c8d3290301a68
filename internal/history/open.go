package history

import (
	"context"
	"fmt"
	"strings"

	logx "timekit/pkg/logx"
)

// Open selects a Store from config. A disabled config yields a no-op
// store so callers never need nil checks.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if !cfg.Enabled {
		return nopStore{}, nil
	}
	switch strings.TrimSpace(strings.ToLower(cfg.Driver)) {
	case "", "memory":
		return newMemory(cfg), nil
	case "sqlite":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("history: unknown driver %q", cfg.Driver)
	}
}

type nopStore struct{}

func (nopStore) Append(context.Context, Record) error { return nil }

func (nopStore) Recent(context.Context, int) ([]Record, error) { return nil, ErrDisabled }

func (nopStore) Close() error { return nil }
