package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// IdempotencyStore tracks processed event IDs. Implementations must be safe
// for concurrent use.
type IdempotencyStore interface {
	Contains(ctx context.Context, eventID string) (bool, error)
	Add(ctx context.Context, eventID string) error
}

// MemoryIdempotencyStore is an in-memory IdempotencyStore. Entries expire
// after the configured TTL to bound memory growth.
type MemoryIdempotencyStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	ttl     time.Duration
}

// NewMemoryIdempotencyStore creates an in-memory store with the given TTL.
// Expired entries are cleaned up lazily on access.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		entries: make(map[string]time.Time),
		ttl:     ttl,
	}
}

// Contains reports whether the event ID exists and has not expired.
func (s *MemoryIdempotencyStore) Contains(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	ts, exists := s.entries[eventID]
	s.mu.RUnlock()

	if !exists {
		return false, nil
	}

	if time.Since(ts) > s.ttl {
		s.mu.Lock()
		delete(s.entries, eventID)
		s.mu.Unlock()
		return false, nil
	}

	return true, nil
}

// Add records the event ID with the current timestamp.
func (s *MemoryIdempotencyStore) Add(_ context.Context, eventID string) error {
	s.mu.Lock()
	s.entries[eventID] = time.Now()
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including any not yet expired.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// IdempotentHandler wraps a handler with event-ID deduplication. Events whose
// ID is already present in the store are skipped.
func IdempotentHandler(store IdempotencyStore, inner Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context, event *Event) error {
		if event.EventID == "" {
			return inner(ctx, event)
		}

		exists, err := store.Contains(ctx, event.EventID)
		if err != nil {
			logger.Warn("idempotency store lookup failed, processing anyway",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
			return inner(ctx, event)
		}

		if exists {
			logger.Debug("skipping duplicate event",
				slog.String("event_id", event.EventID),
				slog.String("event_type", event.EventType),
				slog.String("aggregate_id", event.AggregateID),
			)
			return nil
		}

		if err := inner(ctx, event); err != nil {
			return err
		}

		if addErr := store.Add(ctx, event.EventID); addErr != nil {
			logger.Warn("failed to record event ID in idempotency store",
				slog.String("event_id", event.EventID),
				slog.String("error", addErr.Error()),
			)
		}

		return nil
	}
}
