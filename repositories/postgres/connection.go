package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/koroglumert/oneuptimelocal-sub000/config"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	// Check if we can query
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Projects are the tenants
		CREATE TABLE IF NOT EXISTS projects (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			slug VARCHAR(255) NOT NULL UNIQUE,
			plan_type VARCHAR(50) NOT NULL DEFAULT 'Free',
			subscription_unpaid BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			version BIGINT NOT NULL DEFAULT 1,
			deleted_at TIMESTAMP,
			deleted_by_user_id UUID
		);

		-- Users are global, not tenant scoped
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			password VARCHAR(255),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			version BIGINT NOT NULL DEFAULT 1,
			deleted_at TIMESTAMP,
			deleted_by_user_id UUID
		);

		-- Labels drive row-level access control
		CREATE TABLE IF NOT EXISTS labels (
			id UUID PRIMARY KEY,
			project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			color VARCHAR(50) NOT NULL DEFAULT '#000000',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			version BIGINT NOT NULL DEFAULT 1,
			deleted_at TIMESTAMP,
			deleted_by_user_id UUID,
			UNIQUE(project_id, name)
		);

		-- Monitors
		CREATE TABLE IF NOT EXISTS monitors (
			id UUID PRIMARY KEY,
			project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			slug VARCHAR(255) NOT NULL UNIQUE,
			description TEXT,
			monitor_type VARCHAR(50) NOT NULL,
			url TEXT,
			labels UUID[] NOT NULL DEFAULT '{}',
			created_by_user_id UUID,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			version BIGINT NOT NULL DEFAULT 1,
			deleted_at TIMESTAMP,
			deleted_by_user_id UUID,
			UNIQUE(project_id, name)
		);

		-- Incidents
		CREATE TABLE IF NOT EXISTS incidents (
			id UUID PRIMARY KEY,
			project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			title VARCHAR(500) NOT NULL,
			description TEXT,
			severity VARCHAR(50) NOT NULL,
			monitor_id UUID REFERENCES monitors(id) ON DELETE SET NULL,
			labels UUID[] NOT NULL DEFAULT '{}',
			is_visible_on_status_page BOOLEAN NOT NULL DEFAULT true,
			created_by_user_id UUID,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			version BIGINT NOT NULL DEFAULT 1,
			deleted_at TIMESTAMP,
			deleted_by_user_id UUID
		);

		-- Status pages
		CREATE TABLE IF NOT EXISTS status_pages (
			id UUID PRIMARY KEY,
			project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			slug VARCHAR(255) NOT NULL UNIQUE,
			is_public BOOLEAN NOT NULL DEFAULT false,
			custom_domain VARCHAR(255),
			created_by_user_id UUID,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			version BIGINT NOT NULL DEFAULT 1,
			deleted_at TIMESTAMP,
			deleted_by_user_id UUID,
			UNIQUE(project_id, name)
		);

		-- API keys carry an encrypted secret column
		CREATE TABLE IF NOT EXISTS api_keys (
			id UUID PRIMARY KEY,
			project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			secret TEXT NOT NULL,
			expires_at TIMESTAMP,
			created_by_user_id UUID,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			version BIGINT NOT NULL DEFAULT 1,
			deleted_at TIMESTAMP,
			deleted_by_user_id UUID,
			UNIQUE(project_id, name)
		);

		-- Indexes for tenant scoping and label filters
		CREATE INDEX IF NOT EXISTS idx_labels_project_id ON labels(project_id);
		CREATE INDEX IF NOT EXISTS idx_monitors_project_id ON monitors(project_id);
		CREATE INDEX IF NOT EXISTS idx_monitors_labels ON monitors USING GIN(labels);
		CREATE INDEX IF NOT EXISTS idx_incidents_project_id ON incidents(project_id);
		CREATE INDEX IF NOT EXISTS idx_incidents_monitor_id ON incidents(monitor_id);
		CREATE INDEX IF NOT EXISTS idx_incidents_labels ON incidents USING GIN(labels);
		CREATE INDEX IF NOT EXISTS idx_status_pages_project_id ON status_pages(project_id);
		CREATE INDEX IF NOT EXISTS idx_api_keys_project_id ON api_keys(project_id);
		CREATE INDEX IF NOT EXISTS idx_projects_deleted_at ON projects(deleted_at);
		CREATE INDEX IF NOT EXISTS idx_incidents_deleted_at ON incidents(deleted_at);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
