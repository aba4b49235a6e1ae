// Package artifacts tracks generated documents in the processed directory
// and removes them from disk when their retention window lapses.
package artifacts

import (
	"os"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Registry is a TTL-bounded index of completed documents, keyed by the
// download filename.
type Registry struct {
	cache  *cache.Cache
	logger *zap.Logger
}

// NewRegistry creates a registry whose entries expire after ttl and are
// purged every purgeInterval. Expired or deleted entries have their file
// removed from disk.
func NewRegistry(ttl, purgeInterval time.Duration, logger *zap.Logger) *Registry {
	c := cache.New(ttl, purgeInterval)
	r := &Registry{cache: c, logger: logger}
	c.OnEvicted(func(filename string, v interface{}) {
		path, ok := v.(string)
		if !ok || path == "" {
			return
		}
		err := os.Remove(path)
		switch {
		case err == nil:
			logger.Info("expired artifact removed", zap.String("filename", filename))
		case !os.IsNotExist(err):
			logger.Warn("failed to remove expired artifact",
				zap.String("filename", filename), zap.Error(err))
		}
	})
	return r
}

// Register records a generated document under its download filename.
// Re-registering refreshes the retention window.
func (r *Registry) Register(filename, path string) {
	r.cache.Set(filename, path, cache.DefaultExpiration)
}

// Lookup resolves a download filename to its path.
func (r *Registry) Lookup(filename string) (string, bool) {
	v, found := r.cache.Get(filename)
	if !found {
		return "", false
	}
	return v.(string), true
}

// Drop evicts an artifact immediately, removing its file via the eviction
// callback.
func (r *Registry) Drop(filename string) {
	r.cache.Delete(filename)
}
