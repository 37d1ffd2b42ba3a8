package postgres

import (
	"context"
	"database/sql"

	"github.com/arjun-computer-geek/saas-demo/config"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db      *DB
	auditDB *DB // Optional: separate DB for audit logs
	logger  *zap.Logger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	f := &RepositoryFactory{db: db, logger: logger}

	if cfg.AuditDatabase != nil {
		auditDB, err := NewDB(*cfg.AuditDatabase, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		f.auditDB = auditDB
	}

	return f, nil
}

// InitSchema creates the primary schema and, when configured, the audit schema
// on the separate audit database.
func (f *RepositoryFactory) InitSchema(ctx context.Context) error {
	if err := f.db.InitSchema(ctx); err != nil {
		return err
	}
	if f.auditDB != nil {
		return f.auditDB.InitAuditSchema(ctx)
	}
	return nil
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	auditDB := f.db
	if f.auditDB != nil {
		auditDB = f.auditDB
	}
	return &repositories.Repositories{
		Organizations: NewOrganizationRepository(f.db, f.logger),
		Users:         NewUserRepository(f.db, f.logger),
		Memberships:   NewMembershipRepository(f.db, f.logger),
		Invites:       NewInviteRepository(f.db, f.logger),
		AuditLogs:     NewAuditRepository(auditDB, f.logger),
	}
}

// GetTransactionManager returns a transaction manager
func (f *RepositoryFactory) GetTransactionManager() repositories.TransactionManager {
	return NewTransactionManager(f.db, f.logger)
}

// Ping checks the primary database
func (f *RepositoryFactory) Ping(ctx context.Context) error {
	return f.db.HealthCheck(ctx)
}

// Pools returns the open connection pools keyed by role, for pool metrics
func (f *RepositoryFactory) Pools() map[string]*sql.DB {
	pools := map[string]*sql.DB{"primary": f.db.DB}
	if f.auditDB != nil {
		pools["audit"] = f.auditDB.DB
	}
	return pools
}

// Close closes the database connection(s)
func (f *RepositoryFactory) Close() error {
	if f.auditDB != nil {
		_ = f.auditDB.Close()
	}
	return f.db.Close()
}
