// Package rest wires the HTTP surface: monitoring analytics, attendance
// boundary routes, and the operational endpoints.
package rest

import (
	"net/http"
	"time"

	"attendance-backend/application/ports"
	"attendance-backend/infrastructure/cache"
	"attendance-backend/infrastructure/config"
	"attendance-backend/interfaces/http/rest/handlers"
	"attendance-backend/interfaces/http/rest/middleware"
	"attendance-backend/monitoring/attendtracker"
	"attendance-backend/monitoring/errtracker"
	"attendance-backend/monitoring/perftracker"
	"attendance-backend/pkg/auth"
	apperrors "attendance-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	studentSummaryTTL = 5 * time.Minute
	classStudentsTTL  = 10 * time.Minute
)

// Router creates and configures the HTTP router.
type Router struct {
	cfg          *config.Config
	logger       *zap.Logger
	validator    *auth.JWTValidator
	errorHandler *apperrors.ErrorHandler
	errTracker   *errtracker.Tracker
	attTracker   *attendtracker.Tracker
	perfTracker  *perftracker.Tracker
	cache        *cache.TieredCache
	repo         ports.AttendanceRepository
	registry     *prometheus.Registry
}

// NewRouter creates a new router instance.
func NewRouter(
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
) *Router {
	return &Router{
		cfg:          cfg,
		logger:       logger,
		validator:    validator,
		errorHandler: errorHandler,
		errTracker:   errTracker,
		attTracker:   attTracker,
		perfTracker:  perfTracker,
		cache:        tieredCache,
		repo:         repo,
		registry:     registry,
	}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger(rt.logger))
	router.Use(rt.errorHandler.Middleware)
	router.Use(middleware.Performance(rt.perfTracker))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Cache"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Operational endpoints, unauthenticated
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))

	router.Route("/api/v2", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, rt.logger))

		r.Route("/monitoring", rt.monitoringRoutes)
		r.Route("/attendance", rt.attendanceRoutes)
	})

	return router
}

// monitoringRoutes mounts the analytics surface. Reads are open to Admin
// and Teacher; mutation and export are Admin-only.
func (rt *Router) monitoringRoutes(r chi.Router) {
	errHandler := handlers.NewErrorMonitoringHandler(rt.errTracker, rt.errorHandler, rt.logger)
	attHandler := handlers.NewAttendanceMonitoringHandler(rt.attTracker, rt.errorHandler, rt.logger)
	perfHandler := handlers.NewPerformanceHandler(rt.perfTracker, rt.cache, rt.errorHandler, rt.logger)

	readOnly := middleware.RequireRole("Admin", "Teacher")
	adminOnly := middleware.RequireRole("Admin")

	r.Route("/errors", func(r chi.Router) {
		r.With(readOnly).Get("/analytics", errHandler.GetAnalytics)
		r.With(readOnly).Get("/health", errHandler.GetHealth)
		r.With(readOnly).Get("/stats/{name}/{code}", errHandler.GetStats)
		r.With(adminOnly).Post("/cleanup", errHandler.Cleanup)
		r.With(adminOnly).Put("/thresholds", errHandler.UpdateThresholds)
		r.With(adminOnly).Get("/export", errHandler.Export)
	})

	r.Route("/attendance", func(r chi.Router) {
		r.With(readOnly).Get("/analytics", attHandler.GetAnalytics)
		r.With(readOnly).Get("/health", attHandler.GetHealth)
		r.With(readOnly).Get("/stats/{operation}", attHandler.GetOperationStats)
		r.With(adminOnly).Post("/cleanup", attHandler.Cleanup)
		r.With(adminOnly).Put("/thresholds", attHandler.UpdateThresholds)
		r.With(adminOnly).Get("/export", attHandler.Export)
	})

	r.Route("/performance", func(r chi.Router) {
		r.With(readOnly).Get("/api", perfHandler.GetAPIPerformance)
		r.With(readOnly).Get("/database", perfHandler.GetDatabasePerformance)
		r.With(readOnly).Get("/system", perfHandler.GetSystemPerformance)
		r.With(readOnly).Get("/alerts", perfHandler.GetAlerts)
		r.With(readOnly).Get("/advanced", perfHandler.GetAdvanced)
		r.With(readOnly).Get("/cache", perfHandler.GetCacheStats)
		r.With(readOnly).Get("/optimization", perfHandler.GetOptimization)
		r.With(adminOnly).Put("/thresholds", perfHandler.UpdateThresholds)
		r.With(adminOnly).Post("/cleanup", perfHandler.Cleanup)
	})
}

// attendanceRoutes mounts the attendance boundary. Reads go through the
// cache middleware; the bulk write invalidates its class namespace through
// the invalidation middleware.
func (rt *Router) attendanceRoutes(r chi.Router) {
	handler := handlers.NewAttendanceHandler(rt.repo, rt.perfTracker, rt.attTracker, rt.cache, rt.errorHandler, rt.logger)

	staff := middleware.RequireRole("Admin", "Teacher")

	r.With(staff).Post("/mark", handler.MarkAttendance)

	r.With(staff, middleware.Invalidate(rt.cache, rt.logger, func(req *http.Request) []string {
		return []string{"class:" + chi.URLParam(req, "classID") + ":*"}
	})).Post("/classes/{classID}/bulk", handler.BulkMarkAttendance)

	r.With(staff, middleware.Cached(rt.cache, rt.logger, studentSummaryKey, studentSummaryTTL)).
		Get("/students/{studentID}/summary", handler.GetStudentSummary)

	r.With(staff, middleware.Cached(rt.cache, rt.logger, classStudentsKey, classStudentsTTL)).
		Get("/classes/{classID}/students", handler.GetClassStudents)
}

// studentSummaryKey builds the cache key for a student summary read. Range
// queries get distinct keys but share the student:<id> namespace so one
// write invalidates them all.
func studentSummaryKey(r *http.Request) string {
	studentID := chi.URLParam(r, "studentID")
	if studentID == "" {
		return ""
	}
	key := "student:" + studentID + ":summary"
	if from := r.URL.Query().Get("from"); from != "" {
		key += ":" + from
	}
	if to := r.URL.Query().Get("to"); to != "" {
		key += ":" + to
	}
	return key
}

// classStudentsKey builds the cache key for a class roster read.
func classStudentsKey(r *http.Request) string {
	classID := chi.URLParam(r, "classID")
	if classID == "" {
		return ""
	}
	return "class:" + classID + ":students"
}

// healthCheck reports liveness plus the trackers' own health summaries.
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	status := "healthy"
	errHealth := rt.errTracker.HealthStatus()
	attHealth := rt.attTracker.HealthStatus()
	if errHealth.Status == "critical" || attHealth.Status == "critical" {
		status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"` + status + `"}`))
}

// readinessCheck verifies the cache layer answers before accepting traffic.
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	probe := "readiness:probe"
	if err := rt.cache.SetBytes(req.Context(), probe, []byte("ok"), time.Minute); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
