package vector

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// NewBackend creates the backend selected by config.Backend
func NewBackend(ctx context.Context, config *Config, logger *zap.Logger) (Backend, error) {
	switch config.Backend {
	case "", "memory":
		logger.Info("Using exact in-memory vector backend")
		return NewMemoryBackend(logger), nil

	case "postgres":
		backend, err := NewPGBackend(&config.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if config.Postgres.CreateIndex {
			if err := backend.CreateIndex(ctx); err != nil {
				backend.Close()
				return nil, err
			}
		}
		return backend, nil

	default:
		return nil, fmt.Errorf("unknown vector backend: %s", config.Backend)
	}
}
