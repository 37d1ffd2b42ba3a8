package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arjun-computer-geek/saas-demo/config"
	"github.com/arjun-computer-geek/saas-demo/internal/observability"
	"github.com/arjun-computer-geek/saas-demo/middleware"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	"github.com/arjun-computer-geek/saas-demo/repositories/memory"
	"github.com/arjun-computer-geek/saas-demo/repositories/postgres"
	redisrepo "github.com/arjun-computer-geek/saas-demo/repositories/redis"
	"github.com/arjun-computer-geek/saas-demo/services/audit"
	"github.com/arjun-computer-geek/saas-demo/services/auth"
	"github.com/arjun-computer-geek/saas-demo/services/invite"
	"github.com/arjun-computer-geek/saas-demo/services/membership"
	"github.com/arjun-computer-geek/saas-demo/services/organization"
	"github.com/arjun-computer-geek/saas-demo/services/password"
	"github.com/arjun-computer-geek/saas-demo/services/token"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const auditStopTimeout = 5 * time.Second

// Pinger is a dependency that can report its health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Redis   goredis.UniversalClient

	// Primary store: exactly one of RepoFactory and MemoryStore is set
	RepoFactory *postgres.RepositoryFactory
	MemoryStore *memory.Store

	// Repositories
	Repos     *repositories.Repositories
	TxManager repositories.TransactionManager
	Sessions  *redisrepo.RevocationStore

	// Services
	Hasher      password.Hasher
	Tokens      *token.Service
	Audit       *audit.AuditService
	Auth        *auth.Service
	Invites     *invite.Provisioner
	Memberships *membership.Service
	Lifecycle   *organization.Lifecycle

	// Middleware
	AuthMiddleware *middleware.AuthMiddleware
	RoleMiddleware *middleware.RoleMiddleware
	LoginLimiter   *middleware.RateLimiter

	ownsRedis     bool
	cancelJanitor context.CancelFunc
}

// Option customizes NewDependencies
type Option func(*Dependencies)

// WithRedisClient uses client instead of dialing cfg.Redis. The caller
// keeps ownership and closes it.
func WithRedisClient(client goredis.UniversalClient) Option {
	return func(d *Dependencies) {
		d.Redis = client
	}
}

// NewDependencies creates and wires up all application dependencies.
// Every component is constructed here and nowhere else.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}
	for _, opt := range opts {
		opt(deps)
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics()
	}

	// Initialize the primary store
	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize the revocation store
	if err := deps.initRedis(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initMiddleware(cfg)

	if err := deps.Audit.Start(); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to start audit service: %w", err)
	}

	janitorCtx, cancel := context.WithCancel(context.Background())
	deps.cancelJanitor = cancel
	go deps.LoginLimiter.Run(janitorCtx)

	logger.Info("all dependencies initialized successfully",
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("auth_mode", cfg.Auth.Mode))
	return deps, nil
}

// initDatabase opens PostgreSQL, or the in-process store for the memory driver
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if cfg.Database.Driver == config.DriverMemory {
		d.MemoryStore = memory.NewStore(d.Logger)
		d.Repos = d.MemoryStore.Repositories()
		d.TxManager = d.MemoryStore
		d.Logger.Warn("using in-memory primary store, data is lost on restart")
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}
	d.RepoFactory = factory

	if err := factory.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	for name, pool := range factory.Pools() {
		if err := d.Metrics.RegisterDB(name, pool); err != nil {
			d.Logger.Warn("failed to register pool metrics", zap.String("pool", name), zap.Error(err))
		}
	}

	d.Repos = factory.NewRepositories()
	d.TxManager = factory.GetTransactionManager()
	d.Logger.Info("repositories initialized")
	return nil
}

func (d *Dependencies) initRedis(cfg *config.Config) error {
	if d.Redis == nil {
		client, err := redisrepo.NewClient(cfg.Redis, d.Logger)
		if err != nil {
			return err
		}
		d.Redis = client
		d.ownsRedis = true
	}

	// The org index must outlive every session it lists
	indexTTL := cfg.Auth.RefreshTokenTTL
	if cfg.Auth.AccessTokenTTL > indexTTL {
		indexTTL = cfg.Auth.AccessTokenTTL
	}
	d.Sessions = redisrepo.NewRevocationStore(d.Redis, indexTTL, d.Logger)
	return nil
}

func (d *Dependencies) initServices(cfg *config.Config) error {
	hasher, err := password.New(cfg.Password)
	if err != nil {
		return fmt.Errorf("password hasher: %w", err)
	}
	d.Hasher = hasher

	codec, err := token.NewCodec(cfg.Auth)
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	d.Tokens = token.NewService(d.Sessions, d.Repos.Organizations, codec, cfg.Auth, d.Metrics, d.Logger)
	d.Audit = audit.NewAuditService(d.Repos.AuditLogs, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.Workers,
	})
	d.Auth = auth.NewService(d.Repos, d.Hasher, d.Tokens, d.Audit, d.Logger)
	d.Invites = invite.NewProvisioner(d.Repos, d.TxManager, d.Hasher, d.Audit, cfg.Invite, d.Logger)
	d.Memberships = membership.NewService(d.Repos, d.TxManager, d.Hasher, d.Audit, d.Logger)
	d.Lifecycle = organization.NewLifecycle(d.Repos, d.TxManager, d.Tokens, d.Audit, d.Logger)

	d.Logger.Info("services initialized",
		zap.String("password_hasher", cfg.Password.Algorithm),
		zap.String("signing_method", cfg.Auth.SigningMethod))
	return nil
}

func (d *Dependencies) initMiddleware(cfg *config.Config) {
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Tokens, d.Metrics, d.Logger)
	d.RoleMiddleware = middleware.NewRoleMiddleware(d.Repos.Memberships, cfg.Auth.StoreTimeout, d.Logger)
	d.LoginLimiter = middleware.NewRateLimiter(cfg.RateLimit.LoginPerSecond, cfg.RateLimit.LoginBurst, d.Logger)
}

// HealthChecks returns the dependencies the readiness probe pings
func (d *Dependencies) HealthChecks() map[string]Pinger {
	checks := map[string]Pinger{}
	switch {
	case d.RepoFactory != nil:
		checks["database"] = d.RepoFactory
	case d.MemoryStore != nil:
		checks["database"] = d.MemoryStore
	}
	if d.Sessions != nil {
		checks["redis"] = d.Sessions
	}
	return checks
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.cancelJanitor != nil {
		d.cancelJanitor()
	}

	// Drain queued audit entries before the store goes away
	if d.Audit != nil {
		if err := d.Audit.Stop(auditStopTimeout); err != nil && !errors.Is(err, audit.ErrNotStarted) {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.ownsRedis && d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		} else {
			d.Logger.Info("redis connection closed")
		}
	}

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return errors.Join(errs...)
}
