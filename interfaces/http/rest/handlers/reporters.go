package handlers

import (
	"net/http"

	"attendance-backend/monitoring/errtracker"
	"attendance-backend/pkg/common"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// ErrorTrackerReporter forwards every handled error into the generic error
// tracker, with the request context attached. Registered on the error
// handler at the composition root.
type ErrorTrackerReporter struct {
	tracker *errtracker.Tracker
}

// NewErrorTrackerReporter creates the reporter.
func NewErrorTrackerReporter(tracker *errtracker.Tracker) *ErrorTrackerReporter {
	return &ErrorTrackerReporter{tracker: tracker}
}

// Report implements the error handler's Reporter interface.
func (rep *ErrorTrackerReporter) Report(r *http.Request, err error, status int) {
	reqCtx := errtracker.Context{
		Endpoint:  r.URL.Path,
		Method:    r.Method,
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
		RequestID: chimiddleware.GetReqID(r.Context()),
	}
	if userID, ok := common.GetUserID(r.Context()); ok {
		reqCtx.UserID = userID
	}
	if role, ok := common.GetUserRole(r.Context()); ok {
		reqCtx.UserRole = role
	}

	rep.tracker.Track(err, reqCtx)
}
