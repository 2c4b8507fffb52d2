package monitor

import (
	"log/slog"
	"time"
)

// storeOptions holds configuration for monitor stores.
type storeOptions struct {
	retention       time.Duration
	cleanupInterval time.Duration
	logger          *slog.Logger
}

// defaultStoreOptions returns the default store options.
func defaultStoreOptions() *storeOptions {
	return &storeOptions{
		cleanupInterval: time.Minute,
		logger:          slog.Default(),
	}
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

// WithRetention removes entries started more than age ago in the background.
//
// Default is 0, which keeps entries until DeleteOlderThan is called.
//
// Example:
//
//	store := monitor.NewMemoryStore(
//	    monitor.WithRetention(time.Hour),
//	)
func WithRetention(age time.Duration) StoreOption {
	return func(o *storeOptions) {
		if age > 0 {
			o.retention = age
		}
	}
}

// WithCleanupInterval sets how often expired entries are removed when a
// retention is configured. Default is 1 minute.
func WithCleanupInterval(interval time.Duration) StoreOption {
	return func(o *storeOptions) {
		if interval > 0 {
			o.cleanupInterval = interval
		}
	}
}

// WithLogger sets the logger of background cleanup.
func WithLogger(l *slog.Logger) StoreOption {
	return func(o *storeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}
