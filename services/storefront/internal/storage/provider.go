package storage

import (
	"context"
	"fmt"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/storefront/services/storefront/internal/clientstate"
	"github.com/appetiteclub/storefront/services/storefront/internal/mongo"
	"github.com/appetiteclub/storefront/services/storefront/internal/postgres"
)

// Backend is a started client state store together with its shutdown hook.
type Backend struct {
	Name  string
	Store clientstate.Store
	stop  func(context.Context) error
}

func (b *Backend) Stop(ctx context.Context) error {
	if b.stop == nil {
		return nil
	}
	return b.stop(ctx)
}

// FromProperties opens the client state backend selected by storage.backend.
func FromProperties(ctx context.Context, config *aqm.Config, logger aqm.Logger) (*Backend, error) {
	if config == nil {
		return nil, fmt.Errorf("storage: properties required")
	}

	backend, _ := config.GetString("storage.backend")
	return Open(ctx, backend, config, logger)
}

// Open starts the named backend. An empty name selects mongo.
func Open(ctx context.Context, backend string, config *aqm.Config, logger aqm.Logger) (*Backend, error) {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	switch backend {
	case "", "mongo":
		repo := mongo.NewBaseRepo(config, logger)
		if err := repo.Start(ctx); err != nil {
			return nil, fmt.Errorf("storage: mongo backend: %w", err)
		}
		db := repo.GetDatabase()
		if db == nil {
			return nil, fmt.Errorf("storage: mongo backend: database is nil")
		}
		return &Backend{Name: "mongo", Store: mongo.NewClientStateRepo(db), stop: repo.Stop}, nil

	case "postgres":
		db := postgres.NewDB(config, logger)
		if err := db.Start(ctx); err != nil {
			return nil, fmt.Errorf("storage: postgres backend: %w", err)
		}
		return &Backend{Name: "postgres", Store: postgres.NewClientStateRepo(db.Handle()), stop: db.Stop}, nil

	case "memory":
		return &Backend{Name: "memory", Store: clientstate.NewMemoryStore()}, nil

	default:
		return nil, fmt.Errorf("storage: unsupported backend %q", backend)
	}
}
