// Package app is the central wiring point for dependency injection.
package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/koroglumert/oneuptimelocal-sub000/catalog"
	"github.com/koroglumert/oneuptimelocal-sub000/config"
	"github.com/koroglumert/oneuptimelocal-sub000/handlers"
	"github.com/koroglumert/oneuptimelocal-sub000/middleware"
	"github.com/koroglumert/oneuptimelocal-sub000/models"
	"github.com/koroglumert/oneuptimelocal-sub000/repositories"
	"github.com/koroglumert/oneuptimelocal-sub000/repositories/postgres"
	"github.com/koroglumert/oneuptimelocal-sub000/services/accesscontrol"
	"github.com/koroglumert/oneuptimelocal-sub000/services/datastore"
)

// Dependencies holds all application dependencies.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Storage
	StoreFactory *postgres.StoreFactory
	Store        repositories.EntityStore
	TxManager    repositories.TransactionManager

	// Engine
	Registry    *accesscontrol.Registry
	Evaluator   *accesscontrol.Evaluator
	DataService *datastore.Service
	Sweeper     *datastore.RetentionSweeper

	// HTTP
	TokenValidator *middleware.TokenValidator
	AuthMiddleware *middleware.AuthMiddleware
	CRUDHandler    *handlers.CRUDHandler
	HealthHandler  *handlers.HealthHandler
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Registry: catalog.NewRegistry(),
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initEngine(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize data engine: %w", err)
	}

	deps.initHTTP(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection, schema, and store
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewStoreFactory(cfg, d.Registry, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create store factory: %w", err)
	}

	d.StoreFactory = factory
	d.DB = factory.GetDB()

	if err := factory.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Store = factory.NewEntityStore()
	d.TxManager = factory.GetTransactionManager()

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initEngine wires the evaluator, data service, and retention sweeper
func (d *Dependencies) initEngine(cfg *config.Config) error {
	d.Evaluator = accesscontrol.NewEvaluator(d.Registry, cfg.Billing.Enabled, d.Logger)

	var cipher *datastore.ColumnCipher
	if cfg.Crypto.EncryptionSecret != "" {
		var err error
		cipher, err = datastore.NewColumnCipher(cfg.Crypto.EncryptionSecret)
		if err != nil {
			return fmt.Errorf("failed to create column cipher: %w", err)
		}
	} else {
		d.Logger.Warn("encryption secret not set, encrypted columns unavailable")
	}

	d.DataService = datastore.NewService(d.Registry, d.Evaluator, d.Store, d.TxManager, cipher, d.Logger)
	d.Sweeper = datastore.NewRetentionSweeper(d.DataService, d.Registry, d.TxManager,
		cfg.Retention.SweepInterval, cfg.Retention.KeepFor, d.Logger)

	return nil
}

// initHTTP wires the token validator, middleware, and handlers
func (d *Dependencies) initHTTP(cfg *config.Config) {
	d.TokenValidator = middleware.NewTokenValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	var billing middleware.BillingResolver
	if cfg.Billing.Enabled {
		billing = &projectBillingResolver{service: d.DataService}
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.TokenValidator, billing, d.Logger)

	d.CRUDHandler = handlers.NewCRUDHandler(d.DataService, d.Registry, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.DB, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.StoreFactory != nil {
		if err := d.StoreFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

// projectBillingResolver loads a tenant's plan with a root read on the
// projects table.
type projectBillingResolver struct {
	service *datastore.Service
}

func (r *projectBillingResolver) ProjectBilling(ctx context.Context, projectID uuid.UUID) (models.PlanType, bool, error) {
	row, err := r.service.FindOne(ctx, models.Project{}.TableName(),
		accesscontrol.RawQuery{"id": projectID.String()},
		accesscontrol.RawSelect{"plan_type": true, "subscription_unpaid": true},
		accesscontrol.NewRootContext())
	if err != nil {
		return "", false, err
	}

	plan := models.PlanFree
	if v, ok := row["plan_type"].(string); ok && v != "" {
		plan = models.PlanType(v)
	}

	unpaid := false
	switch v := row["subscription_unpaid"].(type) {
	case bool:
		unpaid = v
	case string:
		unpaid = v == "true"
	}

	return plan, unpaid, nil
}
