package monitor

import (
	"context"
	"errors"
	"time"
)

// Store errors
var (
	ErrStoreClosed   = errors.New("monitor: store is closed")
	ErrEntryNotFound = errors.New("monitor: entry not found")
)

// Store defines the interface for monitor storage.
// Implementations must be safe for concurrent use.
//
// The key depends on the entry mode:
//   - Handler: (firing_id, subscription_id)
//   - Queued: firing_id
type Store interface {
	// Record creates or replaces a monitor entry.
	Record(ctx context.Context, entry *Entry) error

	// Get retrieves an entry by its key. For Queued entries subscriptionID
	// can be empty. Returns nil, nil when no entry exists.
	Get(ctx context.Context, firingID, subscriptionID string) (*Entry, error)

	// GetByFiringID returns all entries of one firing, oldest first.
	GetByFiringID(ctx context.Context, firingID string) ([]*Entry, error)

	// List returns a page of entries matching the filter.
	List(ctx context.Context, filter Filter) (*Page, error)

	// Count returns the number of entries matching the filter.
	Count(ctx context.Context, filter Filter) (int64, error)

	// Complete sets the final status of an existing entry.
	// Returns ErrEntryNotFound if the entry does not exist.
	Complete(ctx context.Context, firingID, subscriptionID string, status Status, err error, duration time.Duration) error

	// DeleteOlderThan removes entries started more than age ago.
	// Returns the number of entries deleted.
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// Filter specifies criteria for listing monitor entries.
// All fields are optional. Empty filter returns all entries.
type Filter struct {
	FiringID       string
	SubscriptionID string
	EventName      string
	DispatcherID   string
	Priority       string

	Mode *Mode // nil = all modes

	Status   []Status // empty = all statuses
	HasError *bool    // nil = ignore

	StartTime time.Time // inclusive
	EndTime   time.Time // exclusive

	MinDuration time.Duration

	// Cursor-based pagination
	Cursor    string
	Limit     int
	OrderDesc bool
}

// Page represents a page of monitor entries with cursor-based pagination.
type Page struct {
	Entries    []*Entry `json:"entries" msgpack:"entries"`
	NextCursor string   `json:"next_cursor,omitempty" msgpack:"next_cursor,omitempty"`
	HasMore    bool     `json:"has_more" msgpack:"has_more"`
}

// DefaultLimit is the default page size when Limit is 0.
const DefaultLimit = 100

// MaxLimit is the maximum allowed page size.
const MaxLimit = 1000

// EffectiveLimit returns the effective limit, applying defaults and bounds.
func (f *Filter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultLimit
	}
	if f.Limit > MaxLimit {
		return MaxLimit
	}
	return f.Limit
}
