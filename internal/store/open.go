package store

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	KindMemory   = "memory"
	KindFile     = "file"
	KindPostgres = "postgres"
)

type Options struct {
	Kind        string
	DataDir     string
	DatabaseURL string
}

// Open builds the backend named by opts.Kind. The postgres backend is
// migrated before it is returned.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Backend, error) {
	switch opts.Kind {
	case KindMemory:
		logger.Warn("using in-memory store; state is lost on exit")
		return NewMemory(), nil
	case KindFile, "":
		logger.Info("using file store", "dir", opts.DataDir)
		return OpenFile(opts.DataDir)
	case KindPostgres:
		if err := Migrate(opts.DatabaseURL); err != nil {
			return nil, err
		}
		pool, err := Connect(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres store")
		return NewPostgres(pool), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", opts.Kind)
	}
}
