package monitor

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// MemoryStore implements Store using in-memory storage.
//
// Entries live for the lifetime of the process, like the dispatcher whose
// invocations they describe.
//
// Example:
//
//	store := monitor.NewMemoryStore(monitor.WithRetention(time.Hour))
//	defer store.Close()
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry // key: firingID or firingID:subscriptionID
	closed  bool

	logger *slog.Logger
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewMemoryStore creates a new in-memory monitor store.
func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(o)
	}

	s := &MemoryStore{
		entries: make(map[string]*Entry),
		logger:  o.logger.With("component", "monitor>memory"),
		stop:    make(chan struct{}),
	}
	if o.retention > 0 {
		s.wg.Add(1)
		go s.cleanup(o.retention, o.cleanupInterval)
	}
	return s
}

// makeKey creates the storage key based on mode.
func makeKey(firingID, subscriptionID string, mode Mode) string {
	if mode == Queued {
		return firingID
	}
	return firingID + ":" + subscriptionID
}

// lookup finds an entry by key, trying the queued key first. Callers hold s.mu.
func (s *MemoryStore) lookup(firingID, subscriptionID string) *Entry {
	if subscriptionID == "" {
		if entry, ok := s.entries[makeKey(firingID, "", Queued)]; ok {
			return entry
		}
	}
	return s.entries[makeKey(firingID, subscriptionID, Handler)]
}

// Record creates or replaces a monitor entry.
func (s *MemoryStore) Record(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	entryCopy := *entry
	s.entries[makeKey(entry.FiringID, entry.SubscriptionID, entry.Mode)] = &entryCopy
	return nil
}

// Get retrieves a monitor entry by its key.
func (s *MemoryStore) Get(ctx context.Context, firingID, subscriptionID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if entry := s.lookup(firingID, subscriptionID); entry != nil {
		entryCopy := *entry
		return &entryCopy, nil
	}
	return nil, nil
}

// GetByFiringID returns all entries of a firing.
func (s *MemoryStore) GetByFiringID(ctx context.Context, firingID string) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var entries []*Entry
	for _, entry := range s.entries {
		if entry.FiringID == firingID {
			entryCopy := *entry
			entries = append(entries, &entryCopy)
		}
	}
	sortEntries(entries, false)
	return entries, nil
}

// cursor represents the pagination cursor state.
type cursor struct {
	StartedAt time.Time `msgpack:"s"`
	Key       string    `msgpack:"k"`
}

func encodeCursor(c cursor) string {
	data, _ := msgpack.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeCursor(s string) (cursor, error) {
	var c cursor
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, err
	}
	err = msgpack.Unmarshal(data, &c)
	return c, err
}

func entryKey(e *Entry) string {
	return makeKey(e.FiringID, e.SubscriptionID, e.Mode)
}

// before orders entries by start time, then key.
func before(a *Entry, startedAt time.Time, key string) bool {
	if !a.StartedAt.Equal(startedAt) {
		return a.StartedAt.Before(startedAt)
	}
	return entryKey(a) < key
}

func sortEntries(entries []*Entry, desc bool) {
	sort.Slice(entries, func(i, j int) bool {
		if desc {
			return before(entries[j], entries[i].StartedAt, entryKey(entries[i]))
		}
		return before(entries[i], entries[j].StartedAt, entryKey(entries[j]))
	})
}

// List returns a page of entries matching the filter.
func (s *MemoryStore) List(ctx context.Context, filter Filter) (*Page, error) {
	var after *cursor
	if filter.Cursor != "" {
		c, err := decodeCursor(filter.Cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		after = &c
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var matches []*Entry
	for _, entry := range s.entries {
		if !matchesFilter(entry, filter) {
			continue
		}
		if after != nil {
			key := entryKey(entry)
			if filter.OrderDesc {
				// strictly before the cursor
				if !before(entry, after.StartedAt, after.Key) {
					continue
				}
			} else if before(entry, after.StartedAt, after.Key) || key == after.Key {
				continue
			}
		}
		entryCopy := *entry
		matches = append(matches, &entryCopy)
	}
	sortEntries(matches, filter.OrderDesc)

	limit := filter.EffectiveLimit()
	hasMore := len(matches) > limit
	if hasMore {
		matches = matches[:limit]
	}

	var nextCursor string
	if hasMore {
		last := matches[len(matches)-1]
		nextCursor = encodeCursor(cursor{StartedAt: last.StartedAt, Key: entryKey(last)})
	}

	return &Page{
		Entries:    matches,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// matchesFilter checks if an entry matches the filter criteria.
func matchesFilter(entry *Entry, filter Filter) bool {
	if filter.FiringID != "" && entry.FiringID != filter.FiringID {
		return false
	}
	if filter.SubscriptionID != "" && entry.SubscriptionID != filter.SubscriptionID {
		return false
	}
	if filter.EventName != "" && entry.EventName != filter.EventName {
		return false
	}
	if filter.DispatcherID != "" && entry.DispatcherID != filter.DispatcherID {
		return false
	}
	if filter.Priority != "" && entry.Priority != filter.Priority {
		return false
	}
	if filter.Mode != nil && entry.Mode != *filter.Mode {
		return false
	}
	if len(filter.Status) > 0 {
		found := false
		for _, s := range filter.Status {
			if entry.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.HasError != nil && *filter.HasError != entry.HasError() {
		return false
	}
	if !filter.StartTime.IsZero() && entry.StartedAt.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && !entry.StartedAt.Before(filter.EndTime) {
		return false
	}
	if filter.MinDuration > 0 && entry.Duration < filter.MinDuration {
		return false
	}
	return true
}

// Count returns the number of entries matching the filter.
func (s *MemoryStore) Count(ctx context.Context, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var count int64
	for _, entry := range s.entries {
		if matchesFilter(entry, filter) {
			count++
		}
	}
	return count, nil
}

// Complete sets the final status of an existing entry.
func (s *MemoryStore) Complete(ctx context.Context, firingID, subscriptionID string, status Status, err error, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	entry := s.lookup(firingID, subscriptionID)
	if entry == nil {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, makeKey(firingID, subscriptionID, Handler))
	}

	entry.Status = status
	if err != nil {
		entry.Error = err.Error()
	}
	entry.Duration = duration
	now := time.Now()
	entry.CompletedAt = &now
	return nil
}

// DeleteOlderThan removes entries older than the specified age.
func (s *MemoryStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	cutoff := time.Now().Add(-age)
	n := len(s.entries)
	maps.DeleteFunc(s.entries, func(_ string, entry *Entry) bool {
		return entry.StartedAt.Before(cutoff)
	})
	return int64(n - len(s.entries)), nil
}

func (s *MemoryStore) cleanup(retention, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			n, err := s.DeleteOlderThan(context.Background(), retention)
			if err != nil {
				return
			}
			if n > 0 {
				s.logger.Debug("expired monitor entries", "deleted", n)
			}
		}
	}
}

// Close stops background cleanup and drops all entries.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.entries = nil
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// Len returns the number of entries in the store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
