package memory

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"memory-service/internal/common/logging"
)

const (
	// DefaultShortTermTTL is used when no default TTL is configured
	DefaultShortTermTTL = time.Hour
	// DefaultCleanupInterval controls the expired-item sweep frequency
	DefaultCleanupInterval = 10 * time.Minute
)

// ShortTermOptions configures a short-term memory instance.
type ShortTermOptions struct {
	// DefaultTTL is applied when Set receives a zero or negative TTL.
	DefaultTTL time.Duration
	// CleanupInterval is the period of the expired-item sweep. Reads
	// re-check expiry on access, so the sweep only bounds memory growth.
	CleanupInterval time.Duration
}

// ShortTermStore is the volatile in-process tier. Keys live in an expiring
// map owned exclusively by this instance; expired items are swept
// periodically and also filtered out on every read.
type ShortTermStore struct {
	namespace string
	cache     *gocache.Cache
	logger    logging.Logger

	hits   int64
	misses int64
	closed int32
}

// NewShortTermStore creates a short-term memory instance for the namespace.
// Returns a config error if the namespace is empty or contains the
// namespace separator.
func NewShortTermStore(namespace string, opts *ShortTermOptions) (*ShortTermStore, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}

	defaultTTL := DefaultShortTermTTL
	cleanupInterval := DefaultCleanupInterval
	if opts != nil {
		if opts.DefaultTTL > 0 {
			defaultTTL = opts.DefaultTTL
		}
		if opts.CleanupInterval > 0 {
			cleanupInterval = opts.CleanupInterval
		}
	}

	logger := logging.GetGlobalLogger().WithFields(
		logging.Field{Key: "tier", Value: string(TierShortTerm)},
		logging.Field{Key: "namespace", Value: namespace},
	)

	store := &ShortTermStore{
		namespace: namespace,
		cache:     gocache.New(defaultTTL, cleanupInterval),
		logger:    logger,
	}

	logger.Debug("Short-term memory created",
		logging.Duration("default_ttl", defaultTTL),
		logging.Duration("cleanup_interval", cleanupInterval),
	)

	return store, nil
}

// Initialize prepares the instance for use. The short-term tier has no
// external resources, so this is a no-op.
func (s *ShortTermStore) Initialize(ctx context.Context) error {
	return nil
}

// Close drops the instance's items and marks it closed. Idempotent.
func (s *ShortTermStore) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	s.cache.Flush()
	s.logger.Debug("Short-term memory closed")
	return nil
}

// Set stores value under the namespaced key.
//
// A zero or negative TTL falls back to the configured default TTL rather
// than meaning "never expire". The long-term tier interprets zero as "no
// expiry"; the asymmetry is part of the contract between tiers.
func (s *ShortTermStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	if atomic.LoadInt32(&s.closed) == 1 {
		return false
	}

	expiration := ttl
	if ttl <= 0 {
		expiration = gocache.DefaultExpiration
	}

	s.cache.Set(namespacedKey(s.namespace, key), value, expiration)
	return true
}

// Get returns the stored value, or false if absent or expired. The
// underlying cache re-checks expiry on access, so items whose TTL elapsed
// between sweeps still read as absent.
func (s *ShortTermStore) Get(ctx context.Context, key string) (interface{}, bool) {
	if atomic.LoadInt32(&s.closed) == 1 {
		return nil, false
	}

	value, found := s.cache.Get(namespacedKey(s.namespace, key))
	if found {
		atomic.AddInt64(&s.hits, 1)
	} else {
		atomic.AddInt64(&s.misses, 1)
	}
	return value, found
}

// Has reports whether the key exists and has not expired. It does not
// touch the hit/miss counters.
func (s *ShortTermStore) Has(ctx context.Context, key string) bool {
	if atomic.LoadInt32(&s.closed) == 1 {
		return false
	}

	_, found := s.cache.Get(namespacedKey(s.namespace, key))
	return found
}

// Delete removes the key and reports whether something was removed.
func (s *ShortTermStore) Delete(ctx context.Context, key string) bool {
	if atomic.LoadInt32(&s.closed) == 1 {
		return false
	}

	nsKey := namespacedKey(s.namespace, key)
	if _, found := s.cache.Get(nsKey); !found {
		return false
	}
	s.cache.Delete(nsKey)
	return true
}

// Clear removes every key under the given namespace and returns the count
// removed. Filtering is a linear scan over the instance's key set, the
// expected cost model for this tier.
func (s *ShortTermStore) Clear(ctx context.Context, namespace string) int {
	if atomic.LoadInt32(&s.closed) == 1 {
		return 0
	}
	if namespace == "" {
		namespace = s.namespace
	}

	prefix := namespacePrefix(namespace)
	removed := 0
	for storedKey := range s.cache.Items() {
		if strings.HasPrefix(storedKey, prefix) {
			s.cache.Delete(storedKey)
			removed++
		}
	}
	return removed
}

// Keys returns all live logical keys under the given namespace with the
// namespace prefix stripped.
func (s *ShortTermStore) Keys(ctx context.Context, namespace string) []string {
	if atomic.LoadInt32(&s.closed) == 1 {
		return nil
	}
	if namespace == "" {
		namespace = s.namespace
	}

	prefix := namespacePrefix(namespace)
	keys := make([]string, 0)
	for storedKey := range s.cache.Items() {
		if strings.HasPrefix(storedKey, prefix) {
			keys = append(keys, stripNamespace(namespace, storedKey))
		}
	}
	return keys
}

// Size returns the count of live keys in the instance's namespace.
func (s *ShortTermStore) Size(ctx context.Context) int {
	return len(s.Keys(ctx, ""))
}

// Type returns the tier tag for this instance.
func (s *ShortTermStore) Type() Tier {
	return TierShortTerm
}

// Namespace returns the namespace this instance is bound to.
func (s *ShortTermStore) Namespace() string {
	return s.namespace
}

// Stats returns hit/miss counters and the current namespace size.
func (s *ShortTermStore) Stats() Stats {
	return Stats{
		Hits:   atomic.LoadInt64(&s.hits),
		Misses: atomic.LoadInt64(&s.misses),
		Size:   s.Size(context.Background()),
	}
}
