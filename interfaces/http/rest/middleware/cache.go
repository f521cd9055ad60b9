package middleware

import (
	"bytes"
	"net/http"
	"time"

	"attendance-backend/infrastructure/cache"

	"go.uber.org/zap"
)

// KeyFunc derives the cache key for a request. Returning "" skips caching
// for that request.
type KeyFunc func(r *http.Request) string

// PatternsFunc derives the cache key globs a write invalidates.
type PatternsFunc func(r *http.Request) []string

// Cached serves GET responses from the cache when possible and stores
// successful JSON responses on a miss. Hits are marked with X-Cache: HIT
// and never reach the handler.
func Cached(store *cache.TieredCache, logger *zap.Logger, key KeyFunc, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			cacheKey := key(r)
			if cacheKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			if body, found := store.Get(r.Context(), cacheKey); found {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				w.Write(body)
				return
			}

			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			rec.Header().Set("X-Cache", "MISS")

			next.ServeHTTP(rec, r)

			if rec.status >= 200 && rec.status < 300 && rec.body.Len() > 0 {
				if err := store.SetBytes(r.Context(), cacheKey, rec.body.Bytes(), ttl); err != nil {
					logger.Warn("Failed to cache response",
						zap.String("key", cacheKey),
						zap.Error(err),
					)
				}
			}
		})
	}
}

// Invalidate removes cache entries after a successful write. Patterns are
// evaluated per request so they can include path parameters. Invalidating
// nothing is not an error.
func Invalidate(store *cache.TieredCache, logger *zap.Logger, patterns PatternsFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK, discard: true}

			next.ServeHTTP(rec, r)

			if rec.status < 200 || rec.status >= 300 {
				return
			}

			for _, pattern := range patterns(r) {
				removed := store.DeletePattern(r.Context(), pattern)
				if removed > 0 {
					logger.Debug("Cache invalidated",
						zap.String("pattern", pattern),
						zap.Int("removed", removed),
					)
				}
			}
		})
	}
}

// recordingWriter captures the status code, and optionally the body, while
// passing everything through to the client.
type recordingWriter struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	discard     bool
	wroteHeader bool
}

func (w *recordingWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if !w.discard {
		w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}
