package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	pb "github.com/KiruiElisha/esg-compliance/api/v1"
	"github.com/KiruiElisha/esg-compliance/internal/config"
	handler "github.com/KiruiElisha/esg-compliance/internal/grpc"
	"github.com/KiruiElisha/esg-compliance/internal/httpapi"
	"github.com/KiruiElisha/esg-compliance/internal/overview"
	"github.com/KiruiElisha/esg-compliance/internal/repository"
	"github.com/KiruiElisha/esg-compliance/internal/scoring"
	"github.com/KiruiElisha/esg-compliance/internal/service"
	"github.com/KiruiElisha/esg-compliance/pkg/cache"
	dbbuilder "github.com/KiruiElisha/esg-compliance/pkg/database"
	grpcsrv "github.com/KiruiElisha/esg-compliance/pkg/grpc/server"
	"github.com/KiruiElisha/esg-compliance/pkg/metrics"
)

type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	dbPool     *sql.DB
	cache      *cache.Cache
	grpcServer *grpcsrv.Server
	httpServer *http.Server
	httpLis    net.Listener
	checks     map[string]httpapi.HealthCheck
}

// healthInterval is how often dependencies are checked for the gRPC health status.
const healthInterval = 15 * time.Second

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if driverIsSQLite(cfg.DBDriver) && !dbbuilder.IsMemory(cfg.DBPath) {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dbPool, err := dbbuilder.New(ctx,
		dbbuilder.WithDriver(cfg.DBDriver),
		dbbuilder.WithDataSource(cfg.DBPath),
		dbbuilder.WithLogger(logger.Named("database")),
	)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}
	logger.Info("Database pool initialized", zap.String("path", cfg.DBPath))

	a := &App{
		cfg:    cfg,
		logger: logger,
		dbPool: dbPool,
		checks: map[string]httpapi.HealthCheck{"database": dbPool.PingContext},
	}

	if cfg.DBAutoMigrate {
		if err := repository.Migrate(ctx, dbPool); err != nil {
			a.close()
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
		logger.Info("Database schema migrated")
	}

	// A nil interface value, not a typed nil *cache.Cache, keeps the overview cache-free.
	var cacher overview.Cacher
	if cfg.CacheEnabled() {
		a.cache, err = cache.New(ctx,
			cache.WithAddress(cfg.RedisAddr),
			cache.WithPassword(cfg.RedisPassword),
			cache.WithDB(cfg.RedisDB),
		)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("cache init failed: %w", err)
		}
		cacher = a.cache
		a.checks["cache"] = a.cache.Ping
		logger.Info("Cache client initialized", zap.String("addr", cfg.RedisAddr))
	} else {
		logger.Info("REDIS_ADDR not set, serving without a cache")
	}

	m := metrics.New()

	recordRepo := repository.NewRecordRepository(dbPool)
	dashboardService := service.NewDashboardService(recordRepo, logger.Named("dashboard"),
		service.WithScoringOptions(scoring.Options{IgnoreEmptyCategories: cfg.IgnoreEmptyCategories}),
	)

	cachedOverview := overview.NewCached(dashboardService, cacher, logger, cfg.CacheTTL,
		overview.WithCacheObserver(m),
	)
	grpcHandlers := handler.NewGRPCHandlers(cachedOverview, logger)

	a.grpcServer, err = grpcsrv.New(
		grpcsrv.WithPort(cfg.GRPCPort),
		grpcsrv.WithLogger(logger),
		grpcsrv.WithReflection(cfg.GRPCReflectionEnabled),
		grpcsrv.WithLogging(true),
		grpcsrv.WithRequestID(true),
		grpcsrv.WithMetrics(m),
	)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create gRPC server: %w", err)
	}

	a.grpcServer.RegisterServiceWithHealth(pb.ServiceName, func(s *grpc.Server) {
		pb.RegisterESGOverviewServer(s, grpcHandlers)
	})

	if cfg.HTTPEnabled() {
		events := service.NewDocumentEvents(recordRepo, logger.Named("document-events"))
		opts := []httpapi.Option{httpapi.WithMetrics(m), httpapi.WithDocumentEvents(events)}
		for name, check := range a.checks {
			opts = append(opts, httpapi.WithHealthCheck(name, check))
		}

		a.httpLis, err = net.Listen("tcp", ":"+strconv.Itoa(cfg.HTTPPort))
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to listen on http port %d: %w", cfg.HTTPPort, err)
		}
		a.httpServer = &http.Server{
			Handler:           httpapi.NewRouter(cachedOverview, logger, opts...),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
		}
	}

	return a, nil
}

func driverIsSQLite(driver string) bool {
	return driver == "sqlite3" || driver == "sqlite"
}

// Run starts the servers and blocks until ctx is done or a shutdown signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application starting")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.grpcServer.Start()

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		a.monitorHealth(monitorCtx, healthInterval)
	}()

	httpErr := make(chan error, 1)
	if a.httpServer != nil {
		a.logger.Info("HTTP server starting", zap.String("addr", a.httpLis.Addr().String()))
		go func() {
			if err := a.httpServer.Serve(a.httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErr <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-httpErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	a.logger.Info("application shutting down")
	stopMonitor()
	<-monitorDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http shutdown error", zap.Error(err))
		}
	}
	if err := a.grpcServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("grpc shutdown did not drain in time", zap.Error(err))
	}

	a.close()
	a.logger.Info("shutdown completed")
	_ = a.logger.Sync()
	return runErr
}

// monitorHealth marks the overview service NOT_SERVING while any dependency check
// fails and SERVING again once they all pass.
func (a *App) monitorHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		healthy := a.checkDependencies(ctx)
		if healthy == serving {
			continue
		}
		serving = healthy
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if healthy {
			status = healthpb.HealthCheckResponse_SERVING
		}
		a.grpcServer.SetServiceHealth(pb.ServiceName, status)
	}
}

func (a *App) checkDependencies(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	for name, check := range a.checks {
		if err := check(ctx); err != nil {
			a.logger.Warn("dependency check failed", zap.String("check", name), zap.Error(err))
			return false
		}
	}
	return true
}

func (a *App) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("cache shutdown error", zap.Error(err))
		}
	}
	if a.dbPool != nil {
		if err := a.dbPool.Close(); err != nil {
			a.logger.Error("database shutdown error", zap.Error(err))
		}
	}
}
