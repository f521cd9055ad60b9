// Package alerting defines the alert record shared by all trackers and the
// notifier boundary used to hand fired alerts to the outside world.
package alerting

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Severity classifies how serious an event is. The vocabulary differs
// slightly between trackers but maps onto a single ordinal scale.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityMedium   Severity = "medium"
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
)

// Ordinal returns the rank of a severity, highest first. Unknown values
// rank lowest.
func (s Severity) Ordinal() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh, SeverityError:
		return 4
	case SeverityWarning, SeverityMedium:
		return 3
	case SeverityInfo, SeverityLow:
		return 2
	default:
		return 0
	}
}

// Alert is an immutable record of a threshold rule firing. Alerts are
// observational only: they never mutate tracker state and are cleared only
// by time-based cleanup of the history they live in.
type Alert struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Severity  Severity               `json:"severity"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// New builds an alert stamped with the current time.
func New(alertType string, severity Severity, data map[string]interface{}) Alert {
	return Alert{
		ID:        uuid.New().String(),
		Type:      alertType,
		Severity:  severity,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// Notifier receives fired alerts. Delivery to a real channel (pager, chat,
// mail) is an out-of-process integration; implementations here must never
// block or fail the tracking path.
type Notifier interface {
	Notify(alert Alert)
}

// LogNotifier is the in-process delivery stub: it writes alerts to the
// application log and nothing else.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs alerts via zap.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the alert at a level matching its severity.
func (n *LogNotifier) Notify(alert Alert) {
	fields := []zap.Field{
		zap.String("alert_id", alert.ID),
		zap.String("alert_type", alert.Type),
		zap.String("severity", string(alert.Severity)),
		zap.Time("fired_at", alert.Timestamp),
		zap.Any("data", alert.Data),
	}

	switch {
	case alert.Severity.Ordinal() >= SeverityCritical.Ordinal():
		n.logger.Error("Alert fired", fields...)
	case alert.Severity.Ordinal() >= SeverityWarning.Ordinal():
		n.logger.Warn("Alert fired", fields...)
	default:
		n.logger.Info("Alert fired", fields...)
	}
}
