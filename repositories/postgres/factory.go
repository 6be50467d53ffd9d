package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/koroglumert/oneuptimelocal-sub000/config"
	"github.com/koroglumert/oneuptimelocal-sub000/repositories"
	"github.com/koroglumert/oneuptimelocal-sub000/services/accesscontrol"
)

// StoreFactory creates the storage driver and transaction manager
type StoreFactory struct {
	db       *DB
	registry *accesscontrol.Registry
	logger   *zap.Logger
}

// NewStoreFactory connects to the database and creates a store factory
func NewStoreFactory(cfg *config.Config, registry *accesscontrol.Registry, logger *zap.Logger) (*StoreFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	return &StoreFactory{db: db, registry: registry, logger: logger}, nil
}

// InitSchema initializes the database schema
func (f *StoreFactory) InitSchema(ctx context.Context) error {
	return f.db.InitSchema(ctx)
}

// NewEntityStore creates the entity store
func (f *StoreFactory) NewEntityStore() repositories.EntityStore {
	return NewEntityStore(f.db, f.registry, f.logger)
}

// GetTransactionManager returns a transaction manager
func (f *StoreFactory) GetTransactionManager() repositories.TransactionManager {
	return NewTransactionManager(f.db, f.logger)
}

// GetDB returns the database connection
func (f *StoreFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *StoreFactory) Close() error {
	return f.db.Close()
}
