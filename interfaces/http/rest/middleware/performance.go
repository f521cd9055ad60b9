package middleware

import (
	"net/http"
	"time"

	"attendance-backend/monitoring/perftracker"
	"attendance-backend/pkg/common"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Performance feeds every request into the performance tracker. Endpoints
// are keyed by the chi route pattern so /students/123 and /students/456
// aggregate under one signature.
func Performance(tracker *perftracker.Tracker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}

			req := perftracker.APIRequest{
				Method:     r.Method,
				Path:       path,
				Duration:   time.Since(start),
				StatusCode: ww.Status(),
			}
			if userID, ok := common.GetUserID(r.Context()); ok {
				req.UserID = userID
			}
			if role, ok := common.GetUserRole(r.Context()); ok {
				req.UserRole = role
			}

			tracker.TrackAPIRequest(req)
		})
	}
}
