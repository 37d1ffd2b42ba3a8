package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
				assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.CORSAllowedOrigins)
				assert.Equal(t, DriverPostgres, cfg.Database.Driver)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
				assert.Equal(t, AuthModeToken, cfg.Auth.Mode)
				assert.Equal(t, "hs256", cfg.Auth.SigningMethod)
				assert.NotEmpty(t, cfg.Auth.JWTSecret, "development falls back to a dev secret")
				assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
				assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenTTL)
				assert.Equal(t, 2*time.Second, cfg.Auth.StoreTimeout)
				assert.False(t, cfg.Auth.CookieSecure)
				assert.Equal(t, "argon2id", cfg.Password.Algorithm)
				assert.Equal(t, 7*24*time.Hour, cfg.Invite.TTL)
				assert.Equal(t, 1.0, cfg.RateLimit.LoginPerSecond)
				assert.Equal(t, 5, cfg.RateLimit.LoginBurst)
				assert.Equal(t, 1000, cfg.Audit.BufferSize)
				assert.Nil(t, cfg.AuditDatabase)
			},
		},
		{
			name: "production configuration",
			envVars: map[string]string{
				"ENVIRONMENT":  "production",
				"SERVER_PORT":  "9000",
				"DATABASE_URL": "postgres://u:p@prod-db.example.com:5433/saas",
				"REDIS_URL":    "redis://:secret@cache:6379/2",
				"JWT_SECRET":   testSecret,
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
				assert.False(t, cfg.IsDevelopment())
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.True(t, cfg.Auth.CookieSecure)
				assert.Equal(t, testSecret, cfg.Auth.JWTSecret)
				assert.Equal(t, "host=prod-db.example.com port=5433 database=saas", cfg.Database.LogString())
				assert.Equal(t, "addr=cache:6379 db=2", cfg.Redis.LogString())
			},
		},
		{
			name: "session mode with ed25519 keys",
			envVars: map[string]string{
				"AUTH_MODE":          "SESSION",
				"JWT_SIGNING_METHOD": "ed25519",
				"JWT_PRIVATE_KEY":    "priv",
				"JWT_PUBLIC_KEY":     "pub",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, AuthModeSession, cfg.Auth.Mode)
				assert.Equal(t, "ed25519", cfg.Auth.SigningMethod)
				assert.Empty(t, cfg.Auth.JWTSecret)
			},
		},
		{
			name: "custom timeouts and pool settings",
			envVars: map[string]string{
				"SERVER_READ_TIMEOUT":  "60s",
				"SERVER_WRITE_TIMEOUT": "90s",
				"DB_MAX_OPEN_CONNS":    "50",
				"DB_MAX_IDLE_CONNS":    "10",
				"ACCESS_TOKEN_TTL":     "5m",
				"REFRESH_TOKEN_TTL":    "24h",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, 50, cfg.Database.MaxOpenConns)
				assert.Equal(t, 10, cfg.Database.MaxIdleConns)
				assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL)
				assert.Equal(t, 24*time.Hour, cfg.Auth.RefreshTokenTTL)
			},
		},
		{
			name: "observability and cors configuration",
			envVars: map[string]string{
				"LOG_LEVEL":            "debug",
				"LOG_FORMAT":           "console",
				"METRICS_ENABLED":      "false",
				"CORS_ALLOWED_ORIGINS": "https://a.example.com, https://b.example.com",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Observability.LogLevel)
				assert.Equal(t, "console", cfg.Observability.LogFormat)
				assert.False(t, cfg.Observability.MetricsEnabled)
				assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSAllowedOrigins)
			},
		},
		{
			name: "frontend origin trailing slash trimmed",
			envVars: map[string]string{
				"FRONTEND_ORIGIN": "https://app.example.com/",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://app.example.com", cfg.Invite.FrontendOrigin)
			},
		},
		{
			name: "PORT env var takes precedence over SERVER_PORT",
			envVars: map[string]string{
				"PORT":        "9443",
				"SERVER_PORT": "9000",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
			},
		},
		{
			name: "memory driver in development",
			envVars: map[string]string{
				"DATABASE_DRIVER": "memory",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DriverMemory, cfg.Database.Driver)
			},
		},
		{
			name: "separate audit database",
			envVars: map[string]string{
				"DATABASE_URL_AUDIT": "postgres://u:p@audit:5432/audit",
			},
			check: func(t *testing.T, cfg *Config) {
				require.NotNil(t, cfg.AuditDatabase)
				assert.Equal(t, "postgres://u:p@audit:5432/audit", cfg.AuditDatabase.DSN())
			},
		},
		{
			name: "production without jwt secret",
			envVars: map[string]string{
				"ENVIRONMENT": "production",
			},
			wantErr: true,
		},
		{
			name: "memory driver in production",
			envVars: map[string]string{
				"ENVIRONMENT":     "production",
				"JWT_SECRET":      testSecret,
				"DATABASE_DRIVER": "memory",
			},
			wantErr: true,
		},
		{
			name: "unknown auth mode",
			envVars: map[string]string{
				"AUTH_MODE": "cookie",
			},
			wantErr: true,
		},
		{
			name: "refresh ttl shorter than access ttl",
			envVars: map[string]string{
				"ACCESS_TOKEN_TTL":  "1h",
				"REFRESH_TOKEN_TTL": "30m",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := New(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Environment: "development",
		Database: DatabaseConfig{
			Driver:   DriverPostgres,
			Host:     "localhost",
			User:     "user",
			Database: "db",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Auth: AuthConfig{
			Mode:            AuthModeToken,
			SigningMethod:   "hs256",
			JWTSecret:       testSecret,
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
		},
		Password:      PasswordConfig{Algorithm: "argon2id"},
		Invite:        InviteConfig{TTL: time.Hour},
		RateLimit:     RateLimitConfig{LoginPerSecond: 1, LoginBurst: 1},
		Observability: ObservabilityConfig{LogLevel: "info"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{
			name:   "missing database host",
			mutate: func(c *Config) { c.Database.Host = "" },
			errMsg: "database configuration required",
		},
		{
			name:   "missing database user",
			mutate: func(c *Config) { c.Database.User = "" },
			errMsg: "database user is required",
		},
		{
			name:   "unknown driver",
			mutate: func(c *Config) { c.Database.Driver = "sqlite" },
			errMsg: "unknown database driver",
		},
		{
			name:   "missing redis",
			mutate: func(c *Config) { c.Redis.Addr = "" },
			errMsg: "redis configuration required",
		},
		{
			name:   "short jwt secret",
			mutate: func(c *Config) { c.Auth.JWTSecret = "short" },
			errMsg: "JWT_SECRET",
		},
		{
			name:   "ed25519 without keys",
			mutate: func(c *Config) { c.Auth.SigningMethod = "ed25519" },
			errMsg: "JWT_PRIVATE_KEY",
		},
		{
			name:   "unknown hasher",
			mutate: func(c *Config) { c.Password.Algorithm = "md5" },
			errMsg: "PASSWORD_HASHER",
		},
		{
			name:   "missing log level",
			mutate: func(c *Config) { c.Observability.LogLevel = "" },
			errMsg: "log level is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		environment string
		want        bool
	}{
		{"production", true},
		{"prod", true},
		{"development", false},
		{"staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsProduction())
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		Database: "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	assert.Equal(t, expected, cfg.DSN())
	assert.NotContains(t, cfg.LogString(), "testpass")
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 8080}
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestGetEnvHelpers(t *testing.T) {
	os.Clearenv()
	os.Setenv("TEST_INT", "42")
	os.Setenv("TEST_BAD_INT", "not-a-number")
	os.Setenv("TEST_BOOL", "false")
	os.Setenv("TEST_FLOAT", "3.14")
	os.Setenv("TEST_DURATION", "30s")
	os.Setenv("TEST_LIST", " a, ,b ")

	assert.Equal(t, 42, getEnvAsInt("TEST_INT", 10))
	assert.Equal(t, 10, getEnvAsInt("TEST_BAD_INT", 10))
	assert.Equal(t, 10, getEnvAsInt("MISSING", 10))
	assert.False(t, getEnvAsBool("TEST_BOOL", true))
	assert.Equal(t, 3.14, getEnvAsFloat("TEST_FLOAT", 1.0))
	assert.Equal(t, 30*time.Second, getEnvAsDuration("TEST_DURATION", time.Second))
	assert.Equal(t, []string{"a", "b"}, getEnvAsList("TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvAsList("MISSING", []string{"x"}))
}
