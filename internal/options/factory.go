package options

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	mydb "github.com/TimurManjosov/goplacement/internal/db"
)

// FactoryConfig selects and configures a Store backend.
type FactoryConfig struct {
	Type           string // memory, file or postgres
	DSN            string
	ConnectTimeout time.Duration
	File           string
}

// NewStore creates a new store based on the given store type.
// Supported types: "memory", "file", "postgres"
func NewStore(ctx context.Context, cfg FactoryConfig, log zerolog.Logger) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(nil), nil
	case "file":
		return NewFileStore(cfg.File, log)
	case "postgres":
		pool, err := mydb.NewPool(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		if err := mydb.WaitReady(ctx, pool, cfg.ConnectTimeout, log); err != nil {
			pool.Close()
			return nil, err
		}
		st, err := NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
