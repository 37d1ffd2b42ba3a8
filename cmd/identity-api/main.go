package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arjun-computer-geek/saas-demo/app"
	"github.com/arjun-computer-geek/saas-demo/config"
	"github.com/arjun-computer-geek/saas-demo/internal/observability"
	"github.com/arjun-computer-geek/saas-demo/routes"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New(ctx)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", addr), zap.Error(err))
	}

	if err := run(ctx, cfg, logger, ln); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

// run wires the dependencies, serves on ln until ctx is done, then shuts
// down gracefully.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, ln net.Listener, opts ...app.Option) error {
	deps, err := app.NewDependencies(ctx, cfg, logger, opts...)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := deps.Close(closeCtx); err != nil {
			logger.Error("failed to close dependencies", zap.Error(err))
		}
	}()

	if _, err := deps.SeedSuperAdmin(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to seed super-admin: %w", err)
	}

	srv := newServer(cfg, routes.SetupRoutes(deps), logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("identity-api listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("environment", cfg.Environment))
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func newServer(cfg *config.Config, handler http.Handler, logger *zap.Logger) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          zap.NewStdLog(logger),
	}
}
