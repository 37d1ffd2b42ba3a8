package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arjun-computer-geek/saas-demo/config"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool and verifies it with a ping
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
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %v", repositories.ErrStoreUnavailable, err)
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

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Organizations table
		CREATE TABLE IF NOT EXISTS organizations (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			slug VARCHAR(100) NOT NULL UNIQUE,
			status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
			auth_epoch BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Users table
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL DEFAULT '',
			password_hash TEXT,
			is_super_admin BOOLEAN NOT NULL DEFAULT false,
			disabled BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Memberships table
		CREATE TABLE IF NOT EXISTS memberships (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			org_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			role VARCHAR(20) NOT NULL DEFAULT 'USER',
			disabled BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, org_id)
		);

		-- Invites table
		CREATE TABLE IF NOT EXISTS invites (
			id UUID PRIMARY KEY,
			token VARCHAR(128) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL,
			org_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			role VARCHAR(20) NOT NULL DEFAULT 'USER',
			invited_by UUID REFERENCES users(id) ON DELETE SET NULL,
			expires_at TIMESTAMP NOT NULL,
			accepted BOOLEAN NOT NULL DEFAULT false,
			accepted_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Indexes for performance
		CREATE INDEX IF NOT EXISTS idx_organizations_status ON organizations(status);
		CREATE INDEX IF NOT EXISTS idx_memberships_org_id ON memberships(org_id);
		CREATE INDEX IF NOT EXISTS idx_memberships_user_id ON memberships(user_id);
		-- At most one pending invite per (email, org)
		CREATE UNIQUE INDEX IF NOT EXISTS idx_invites_pending_email_org ON invites(email, org_id) WHERE accepted = false;
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db.InitAuditSchema(ctx)
}

// InitAuditSchema initializes the audit_logs table (no foreign keys, so it
// also works on the separate audit database when DATABASE_URL_AUDIT is set).
func (db *DB) InitAuditSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id UUID PRIMARY KEY,
			org_id UUID,
			actor_id UUID,
			action VARCHAR(100) NOT NULL,
			resource_type VARCHAR(100) NOT NULL,
			resource_id UUID,
			details JSONB,
			ip_address VARCHAR(45),
			user_agent TEXT,
			request_id VARCHAR(255),
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_org_id ON audit_logs(org_id);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_actor_id ON audit_logs(actor_id);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	db.logger.Info("database schema initialized successfully")
	return nil
}
