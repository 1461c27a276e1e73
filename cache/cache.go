// Package cache provides a keyed, request-deduplicating cache for
// server-derived reads and for mutation operations. Reads for the same
// key are coalesced into a single fetch; mutations run once per call
// and invalidate their dependent query keys on success.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Well-known query keys
const (
	KeyCurrentIdentity = "current-identity"
	KeyLeaderboard     = "leaderboard"
)

// Status of a cache entry
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// FetchFunc loads the value for a query key from the remote service
type FetchFunc func(ctx context.Context) (interface{}, error)

// MutateFunc performs a write operation against the remote service
type MutateFunc func(ctx context.Context) (interface{}, error)

type entry struct {
	status      Status
	value       interface{}
	err         error
	lastFetched time.Time
}

// Store is the in-memory data cache. Each key holds at most one
// in-flight fetch at a time; a response that resolves after its key
// was invalidated is discarded rather than applied (last request
// wins per key).
type Store struct {
	mu          sync.Mutex
	entries     map[string]*entry
	generations map[string]uint64
	group       singleflight.Group
	nowTime     func() time.Time
}

// StoreOption defines a function type to modify the Store instance
type StoreOption func(*Store)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// New creates an empty cache Store
func New(options ...StoreOption) *Store {
	s := &Store{
		entries:     make(map[string]*entry),
		generations: make(map[string]uint64),
		nowTime:     time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Query returns the cached value for key if fresh, otherwise triggers
// exactly one fetch per key even under concurrent callers and fans the
// result out to all waiters. A failed fetch marks the entry as errored
// and is retried on the next Query call, never in a loop.
//
// superseded reports that the key was invalidated or primed while this
// fetch was in flight: the result was discarded from the cache and the
// caller must not apply it to any derived state either - a newer
// operation owns the key.
func (s *Store) Query(ctx context.Context, key string, fetch FetchFunc) (value interface{}, superseded bool, err error) {
	s.mu.Lock()
	if e, ok := s.entries[key]; ok && e.status == StatusSuccess {
		value := e.value
		s.mu.Unlock()
		return value, false, nil
	}
	generation := s.generations[key]
	if e, ok := s.entries[key]; !ok || e.status != StatusPending {
		s.entries[key] = &entry{status: StatusPending}
	}
	s.mu.Unlock()

	// Coalesce on key+generation so callers arriving after an
	// invalidation never join a superseded fetch.
	flightKey := fmt.Sprintf("%s@%d", key, generation)
	value, err, _ = s.group.Do(flightKey, func() (interface{}, error) {
		return fetch(ctx)
	})

	s.mu.Lock()
	current := s.generations[key] == generation
	if current {
		if err != nil {
			s.entries[key] = &entry{status: StatusError, err: err, lastFetched: s.nowTime()}
		} else {
			s.entries[key] = &entry{status: StatusSuccess, value: value, lastFetched: s.nowTime()}
		}
	}
	s.mu.Unlock()

	return value, !current, err
}

// Mutate executes a write operation exactly once per invocation (no
// deduplication - each submit is a distinct user action). On success
// the named dependent query keys are invalidated so subsequent reads
// refetch.
func (s *Store) Mutate(ctx context.Context, op MutateFunc, invalidates ...string) (interface{}, error) {
	value, err := op(ctx)
	if err != nil {
		return nil, err
	}
	s.Invalidate(invalidates...)
	return value, nil
}

// Invalidate drops the entries for the given keys and supersedes any
// fetch currently in flight for them.
func (s *Store) Invalidate(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.generations[key]++
		delete(s.entries, key)
	}
}

// Prime stores a server-provided value for key directly, superseding
// any in-flight fetch. Used when a mutation response already carries
// the fresh value for a dependent query.
func (s *Store) Prime(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[key]++
	s.entries[key] = &entry{status: StatusSuccess, value: value, lastFetched: s.nowTime()}
}

// Peek reports the current entry for key without triggering a fetch
func (s *Store) Peek(key string) (interface{}, Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, "", false
	}
	return e.value, e.status, true
}
