package di

import (
	"context"

	"attendance-backend/application/ports"
	"attendance-backend/infrastructure/cache"
	"attendance-backend/infrastructure/config"
	"attendance-backend/infrastructure/persistence/memory"
	"attendance-backend/interfaces/http/rest"
	"attendance-backend/interfaces/http/rest/handlers"
	"attendance-backend/monitoring/alerting"
	"attendance-backend/monitoring/attendtracker"
	"attendance-backend/monitoring/errtracker"
	"attendance-backend/monitoring/perftracker"
	"attendance-backend/pkg/auth"
	apperrors "attendance-backend/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// ProvideLogger creates a new logger instance.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideRegistry creates the prometheus registry with the standard process
// and runtime collectors.
func ProvideRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// ProvideMetrics registers the application collectors.
func ProvideMetrics(registry *prometheus.Registry) *perftracker.Metrics {
	return perftracker.NewMetrics(registry)
}

// ProvideNotifier creates the alert notifier. Alerts are logged; external
// delivery channels hang off this interface when they arrive.
func ProvideNotifier(logger *zap.Logger) alerting.Notifier {
	return alerting.NewLogNotifier(logger)
}

// ProvideErrorTracker creates the generic error tracker.
func ProvideErrorTracker(logger *zap.Logger, notifier alerting.Notifier) *errtracker.Tracker {
	return errtracker.New(logger, notifier)
}

// ProvideAttendanceTracker creates the attendance-domain error tracker.
func ProvideAttendanceTracker(logger *zap.Logger, notifier alerting.Notifier) *attendtracker.Tracker {
	return attendtracker.New(logger, notifier)
}

// ProvidePerformanceTracker creates the performance tracker with its
// prometheus mirrors attached.
func ProvidePerformanceTracker(logger *zap.Logger, notifier alerting.Notifier, metrics *perftracker.Metrics) *perftracker.Tracker {
	return perftracker.New(logger, notifier, metrics)
}

// ProvideMemoryStore creates the in-process cache tier.
func ProvideMemoryStore() *cache.MemoryStore {
	return cache.NewMemoryStore()
}

// ProvideRedisStore connects the external cache tier. A disabled or
// unreachable Redis yields nil; the service then runs memory-only.
func ProvideRedisStore(cfg *config.Config, logger *zap.Logger) *cache.RedisStore {
	if !cfg.RedisEnabled {
		return nil
	}

	store, err := cache.NewRedisStore(cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Warn("Redis unavailable, continuing with memory-only cache",
			zap.String("addr", cfg.RedisAddr),
			zap.Error(err),
		)
		return nil
	}

	logger.Info("Redis cache tier connected", zap.String("addr", cfg.RedisAddr))
	return store
}

// ProvideTieredCache composes the cache tiers and wires the hit/miss
// counters into prometheus.
func ProvideTieredCache(redis *cache.RedisStore, local *cache.MemoryStore, logger *zap.Logger, metrics *perftracker.Metrics) *cache.TieredCache {
	var external cache.Store
	if redis != nil {
		external = redis
	}
	return cache.NewTieredCache(external, local, logger,
		cache.WithStatsCallbacks(metrics.CacheHit, metrics.CacheMiss))
}

// ProvideJWTValidator creates the token validator. Development falls back
// to a fixed secret so the service starts without configuration.
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" && cfg.IsDevelopment() {
		secret = "development-secret-change-in-production"
	}

	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: secret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
	})
}

// ProvideErrorHandler creates the error boundary with the error tracker
// registered as its reporter.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger, errTracker *errtracker.Tracker) *apperrors.ErrorHandler {
	reporter := handlers.NewErrorTrackerReporter(errTracker)
	return apperrors.NewErrorHandler(logger, cfg.Debug || cfg.IsDevelopment(), reporter)
}

// ProvideAttendanceRepository creates the in-memory attendance store. The
// development roster lets the boundary routes answer without an import job.
func ProvideAttendanceRepository(cfg *config.Config) ports.AttendanceRepository {
	repo := memory.NewAttendanceRepository()
	if cfg.IsDevelopment() {
		repo.SeedStudents(developmentRoster())
	}
	return repo
}

func developmentRoster() []ports.Student {
	return []ports.Student{
		{ID: "stu-001", Name: "Aarav Sharma", RollNumber: "01", ClassID: "class-10a"},
		{ID: "stu-002", Name: "Diya Patel", RollNumber: "02", ClassID: "class-10a"},
		{ID: "stu-003", Name: "Ishaan Gupta", RollNumber: "03", ClassID: "class-10a"},
		{ID: "stu-004", Name: "Mira Rao", RollNumber: "01", ClassID: "class-10b"},
		{ID: "stu-005", Name: "Kabir Singh", RollNumber: "02", ClassID: "class-10b"},
	}
}

// ProvideRouter creates the configured HTTP router.
func ProvideRouter(
	cfg *config.Config,
	logger *zap.Logger,
	validator *auth.JWTValidator,
	errorHandler *apperrors.ErrorHandler,
	errTracker *errtracker.Tracker,
	attTracker *attendtracker.Tracker,
	perfTracker *perftracker.Tracker,
	tieredCache *cache.TieredCache,
	repo ports.AttendanceRepository,
	registry *prometheus.Registry,
) *rest.Router {
	return rest.NewRouter(cfg, logger, validator, errorHandler, errTracker, attTracker, perfTracker, tieredCache, repo, registry)
}

// StartBackgroundLoops launches the tracker cleanup loops and the system
// sampler. They stop when the context is cancelled.
func (c *Container) StartBackgroundLoops(ctx context.Context) {
	c.ErrorTracker.StartCleanupLoop(ctx, c.Config.CleanupInterval)
	c.AttendanceTracker.StartCleanupLoop(ctx, c.Config.CleanupInterval)
	c.PerformanceTracker.StartCleanupLoop(ctx, c.Config.CleanupInterval)
	c.PerformanceTracker.StartSampler(ctx, c.Config.SamplerInterval)
}

// Close releases external resources.
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("Failed to close Redis connection", zap.Error(err))
		}
	}
	_ = c.Logger.Sync()
}
