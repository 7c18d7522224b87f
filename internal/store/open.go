package store

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/storefront/pkg/db"
)

type Options struct {
	Driver    string
	DSN       string
	RedisURL  string
	Namespace string
}

// Open returns the KeyValueStore selected by opts.Driver (memory, sqlite, postgres or redis).
func Open(ctx context.Context, opts Options) (KeyValueStore, error) {
	switch opts.Driver {
	case "memory":
		return NewMemory(), nil
	case db.DialectSQLite, db.DialectPostgres:
		gdb, err := db.Open(ctx, opts.Driver, opts.DSN)
		if err != nil {
			return nil, err
		}
		s, err := NewGorm(gdb)
		if err != nil {
			_ = db.Close(gdb)
			return nil, err
		}
		return s, nil
	case "redis":
		return NewRedis(ctx, opts.RedisURL, opts.Namespace)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
