package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// ErrorResponse is the API error response format.
type ErrorResponse struct {
	Error     bool                   `json:"error"`
	Kind      string                 `json:"kind"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// Reporter receives every handled error together with its request, after the
// response has been decided. Implementations forward into the monitoring
// trackers; they must never panic into the response path (Handle guards with
// recover regardless).
type Reporter interface {
	Report(r *http.Request, err error, status int)
}

// ErrorHandler is the single error-handling boundary: it classifies the
// error, formats the user-facing response, and forwards the raw error plus
// request context to the registered reporters as a side effect.
type ErrorHandler struct {
	logger        *zap.Logger
	debug         bool
	defaultStatus int
	reporters     []Reporter
}

// NewErrorHandler creates an error handler.
func NewErrorHandler(logger *zap.Logger, debug bool, reporters ...Reporter) *ErrorHandler {
	return &ErrorHandler{
		logger:        logger,
		debug:         debug,
		defaultStatus: http.StatusInternalServerError,
		reporters:     reporters,
	}
}

// Handle processes an error and sends an HTTP response. The response is
// written before the error is reported, so a reporter failure is invisible
// to the caller.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	requestID := r.Header.Get("X-Request-ID")

	var status int
	var response ErrorResponse

	if appErr := GetAppError(err); appErr != nil {
		status = appErr.HTTPStatus
		if status == 0 {
			status = h.defaultStatus
		}

		response = ErrorResponse{
			Error:     true,
			Kind:      string(appErr.Kind),
			Message:   appErr.Message,
			Code:      appErr.Code,
			Details:   appErr.Details,
			RequestID: requestID,
		}

		h.logError(r, appErr, status)
	} else {
		status = h.defaultStatus
		response = ErrorResponse{
			Error:     true,
			Kind:      string(KindInternal),
			Message:   "An internal error occurred",
			RequestID: requestID,
		}

		h.logger.Error("Unhandled error",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID),
			zap.Int("status", status),
		)

		if h.debug {
			response.Message = err.Error()
		}
	}

	h.sendJSON(w, status, response)
	h.report(r, err, status)
}

// report forwards the error to every reporter, swallowing anything they
// throw. Tracking is a side effect that must never affect the response.
func (h *ErrorHandler) report(r *http.Request, err error, status int) {
	for _, reporter := range h.reporters {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					h.logger.Error("Error reporter panicked",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
					)
				}
			}()
			reporter.Report(r, err, status)
		}()
	}
}

// logError logs an application error at a level matching its status.
func (h *ErrorHandler) logError(r *http.Request, err *AppError, status int) {
	fields := []zap.Field{
		zap.String("error_kind", string(err.Kind)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", r.Header.Get("X-Request-ID")),
	}

	if err.Code != "" {
		fields = append(fields, zap.String("error_code", err.Code))
	}
	if err.Cause != nil {
		fields = append(fields, zap.Error(err.Cause))
	}
	if err.Details != nil {
		fields = append(fields, zap.Any("details", err.Details))
	}

	switch {
	case status >= 500:
		h.logger.Error(err.Message, fields...)
	case status >= 400:
		h.logger.Warn(err.Message, fields...)
	default:
		h.logger.Info(err.Message, fields...)
	}
}

// sendJSON sends a JSON response.
func (h *ErrorHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// Middleware returns an HTTP middleware that converts panics into handled
// internal errors.
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				err := NewInternalError(fmt.Sprintf("panic: %v", rec))
				h.Handle(w, r, err)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
