// Package cache provides the two-tier key/value cache used by read
// endpoints: a fast in-process tier that is always present, and an optional
// Redis tier that is strictly advisory. Keys are partitioned into semantic
// namespaces (student:<id>:summary, class:<id>:students) so writes can
// invalidate whole families with a glob.
package cache

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Store is a single cache tier. Values are serialized JSON.
type Store interface {
	// Get returns the value and whether it was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores a value with a per-key TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes an exact key.
	Delete(ctx context.Context, key string) error
	// DeletePattern removes all keys matching a wildcard glob and reports
	// how many were removed.
	DeletePattern(ctx context.Context, pattern string) (int, error)
	// Exists reports whether an unexpired value is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Clear removes everything.
	Clear(ctx context.Context) error
}

// globToRegexp compiles a glob pattern (only * is special) into an anchored
// regexp.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, `.*`)
	return regexp.Compile("^" + escaped + "$")
}
