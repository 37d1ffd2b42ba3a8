package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Auth modes select the access-credential flavor.
const (
	AuthModeToken   = "token"
	AuthModeSession = "session"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const devJWTSecret = "dev-only-insecure-secret-change-me-0123456789"

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	AuditDatabase *DatabaseConfig // Optional: separate DB for audit logs. When nil, audit uses main DB.
	Redis         RedisConfig
	Auth          AuthConfig
	Password      PasswordConfig
	Invite        InviteConfig
	RateLimit     RateLimitConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
	Bootstrap     BootstrapConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	RequestTimeout     time.Duration
	CORSAllowedOrigins []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	Driver           string
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// RedisConfig holds the revocation store connection settings
type RedisConfig struct {
	URL          string // From REDIS_URL when set
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// AuthConfig holds token and session settings
type AuthConfig struct {
	Mode            string
	SigningMethod   string // hs256 or ed25519
	JWTSecret       string
	PrivateKey      string // base64 ed25519 private key
	PublicKey       string // base64 ed25519 public key
	Issuer          string
	Audience        string
	Leeway          time.Duration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	StoreTimeout    time.Duration
	CookieDomain    string
	CookieSecure    bool
}

// PasswordConfig selects and tunes the password hasher
type PasswordConfig struct {
	Algorithm     string // argon2id or bcrypt
	Argon2Memory  uint32 // KiB
	Argon2Time    uint32
	Argon2Threads uint8
	Argon2SaltLen uint32
	Argon2KeyLen  uint32
	BcryptCost    int
}

// InviteConfig holds invite settings
type InviteConfig struct {
	TTL            time.Duration
	FrontendOrigin string
}

// RateLimitConfig holds the login throttle settings
type RateLimitConfig struct {
	LoginPerSecond float64
	LoginBurst     int
}

// AuditConfig holds the async audit worker settings
type AuditConfig struct {
	BufferSize int
	Workers    int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// BootstrapConfig seeds a super-admin at startup when set
type BootstrapConfig struct {
	SuperAdminEmail    string
	SuperAdminPassword string
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	environment := getEnv("ENVIRONMENT", "development")
	frontendOrigin := getEnv("FRONTEND_ORIGIN", "http://localhost:5173")

	cfg := &Config{
		Environment: environment,
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			Port:               getPort(),
			ReadTimeout:        getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:       getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout:    getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:     getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{frontendOrigin}),
		},
		Database:      loadDatabaseConfig(),
		AuditDatabase: loadAuditDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Auth: AuthConfig{
			Mode:            strings.ToLower(getEnv("AUTH_MODE", AuthModeToken)),
			SigningMethod:   strings.ToLower(getEnv("JWT_SIGNING_METHOD", "hs256")),
			JWTSecret:       getEnv("JWT_SECRET", ""),
			PrivateKey:      getEnv("JWT_PRIVATE_KEY", ""),
			PublicKey:       getEnv("JWT_PUBLIC_KEY", ""),
			Issuer:          getEnv("JWT_ISSUER", "saas-demo"),
			Audience:        getEnv("JWT_AUDIENCE", "saas-demo-api"),
			Leeway:          getEnvAsDuration("JWT_LEEWAY", 30*time.Second),
			AccessTokenTTL:  getEnvAsDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL: getEnvAsDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
			StoreTimeout:    getEnvAsDuration("STORE_TIMEOUT", 2*time.Second),
			CookieDomain:    getEnv("COOKIE_DOMAIN", ""),
		},
		Password: PasswordConfig{
			Algorithm:     strings.ToLower(getEnv("PASSWORD_HASHER", "argon2id")),
			Argon2Memory:  uint32(getEnvAsInt("ARGON2_MEMORY_KIB", 64*1024)),
			Argon2Time:    uint32(getEnvAsInt("ARGON2_TIME", 1)),
			Argon2Threads: uint8(getEnvAsInt("ARGON2_THREADS", 4)),
			Argon2SaltLen: uint32(getEnvAsInt("ARGON2_SALT_LENGTH", 16)),
			Argon2KeyLen:  uint32(getEnvAsInt("ARGON2_KEY_LENGTH", 32)),
			BcryptCost:    getEnvAsInt("BCRYPT_COST", 10),
		},
		Invite: InviteConfig{
			TTL:            getEnvAsDuration("INVITE_TTL", 7*24*time.Hour),
			FrontendOrigin: strings.TrimRight(frontendOrigin, "/"),
		},
		RateLimit: RateLimitConfig{
			LoginPerSecond: getEnvAsFloat("LOGIN_RATE_PER_SECOND", 1),
			LoginBurst:     getEnvAsInt("LOGIN_RATE_BURST", 5),
		},
		Audit: AuditConfig{
			BufferSize: getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			Workers:    getEnvAsInt("AUDIT_WORKERS", 2),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
		Bootstrap: BootstrapConfig{
			SuperAdminEmail:    getEnv("SUPERADMIN_EMAIL", ""),
			SuperAdminPassword: getEnv("SUPERADMIN_PASSWORD", ""),
		},
	}

	cfg.Auth.CookieSecure = cfg.IsProduction()
	if cfg.Auth.JWTSecret == "" && cfg.Auth.SigningMethod == "hs256" && !cfg.IsProduction() {
		cfg.Auth.JWTSecret = devJWTSecret
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	case DriverMemory:
		if c.IsProduction() {
			return fmt.Errorf("memory database driver is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Redis.URL == "" && c.Redis.Addr == "" {
		return fmt.Errorf("redis configuration required: set REDIS_URL or REDIS_ADDR")
	}

	if c.Auth.Mode != AuthModeToken && c.Auth.Mode != AuthModeSession {
		return fmt.Errorf("AUTH_MODE must be %q or %q", AuthModeToken, AuthModeSession)
	}
	switch c.Auth.SigningMethod {
	case "hs256":
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
		}
	case "ed25519":
		if c.Auth.PrivateKey == "" || c.Auth.PublicKey == "" {
			return fmt.Errorf("JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required for ed25519")
		}
	default:
		return fmt.Errorf("unknown JWT signing method %q", c.Auth.SigningMethod)
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.Auth.RefreshTokenTTL < c.Auth.AccessTokenTTL {
		return fmt.Errorf("refresh token TTL must not be shorter than access token TTL")
	}

	if c.Password.Algorithm != "argon2id" && c.Password.Algorithm != "bcrypt" {
		return fmt.Errorf("PASSWORD_HASHER must be argon2id or bcrypt")
	}
	if c.Invite.TTL <= 0 {
		return fmt.Errorf("invite TTL must be positive")
	}
	if c.RateLimit.LoginPerSecond <= 0 || c.RateLimit.LoginBurst <= 0 {
		return fmt.Errorf("login rate limit must be positive")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// LogString returns the redis target without credentials
func (c *RedisConfig) LogString() string {
	if c.URL != "" {
		if u, err := url.Parse(c.URL); err == nil {
			return fmt.Sprintf("addr=%s db=%s", u.Host, strings.TrimPrefix(u.Path, "/"))
		}
		return "addr=<from REDIS_URL>"
	}
	return fmt.Sprintf("addr=%s db=%d", c.Addr, c.DB)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	driver := strings.ToLower(getEnv("DATABASE_DRIVER", DriverPostgres))
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			Driver:           driver,
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Driver:          driver,
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "dev"),
		Password:        getEnv("DB_PASSWORD", "dev_password"),
		Database:        getEnv("DB_NAME", "saas"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// loadAuditDatabaseConfig loads audit DB config from DATABASE_URL_AUDIT.
// Returns nil when not set (audit uses main DB).
func loadAuditDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL_AUDIT", "")
	if dbURL == "" {
		return nil
	}
	return &DatabaseConfig{
		Driver:           DriverPostgres,
		ConnectionString: dbURL,
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:          getEnv("REDIS_URL", ""),
		Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
		Password:     getEnv("REDIS_PASSWORD", ""),
		DB:           getEnvAsInt("REDIS_DB", 0),
		DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 2*time.Second),
		ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", time.Second),
		WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", time.Second),
		PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 20),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
