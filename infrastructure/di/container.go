// Package di assembles the application object graph with google/wire.
package di

import (
	"attendance-backend/application/ports"
	"attendance-backend/infrastructure/cache"
	"attendance-backend/infrastructure/config"
	"attendance-backend/interfaces/http/rest"
	"attendance-backend/monitoring/alerting"
	"attendance-backend/monitoring/attendtracker"
	"attendance-backend/monitoring/errtracker"
	"attendance-backend/monitoring/perftracker"
	"attendance-backend/pkg/auth"
	apperrors "attendance-backend/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Container holds all application dependencies.
type Container struct {
	Config             *config.Config
	Logger             *zap.Logger
	Registry           *prometheus.Registry
	Metrics            *perftracker.Metrics
	Notifier           alerting.Notifier
	ErrorTracker       *errtracker.Tracker
	AttendanceTracker  *attendtracker.Tracker
	PerformanceTracker *perftracker.Tracker
	Redis              *cache.RedisStore
	Memory             *cache.MemoryStore
	Cache              *cache.TieredCache
	Validator          *auth.JWTValidator
	ErrorHandler       *apperrors.ErrorHandler
	Repository         ports.AttendanceRepository
	Router             *rest.Router
}
