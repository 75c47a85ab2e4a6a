package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"memory-service/internal/common/errors"
)

// Tier identifies which backend family a memory instance belongs to.
type Tier string

const (
	// TierShortTerm is the volatile in-process tier
	TierShortTerm Tier = "short-term"
	// TierLongTerm is the durable network-backed tier
	TierLongTerm Tier = "long-term"
)

// ParseTier converts a string to a Tier.
// Returns a validation error for anything outside the two known tiers.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierShortTerm, TierLongTerm:
		return Tier(s), nil
	default:
		return "", errors.ValidationError(fmt.Sprintf("invalid memory tier %q", s))
	}
}

// MemoryService is the capability contract satisfied by both tiers.
//
// Operations that the contract defines as non-throwing (Set, Get, Has,
// Delete, Clear) report failure through their return values and log the
// underlying cause; only construction and caller misuse produce errors.
type MemoryService interface {
	// Initialize prepares the backend for use. It is a no-op for the
	// short-term tier and establishes a connection for the long-term tier.
	// Safe to call more than once.
	Initialize(ctx context.Context) error

	// Close releases resources held by the instance. Idempotent.
	Close() error

	// Set stores value under the namespaced key. A zero or negative ttl
	// selects the tier's default behavior: the short-term tier substitutes
	// its configured default TTL, the long-term tier stores without expiry
	// unless a default TTL was configured. Returns false if the value could
	// not be stored.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) bool

	// Get returns the stored value, or false if the key is absent, expired,
	// or the stored payload could not be decoded.
	Get(ctx context.Context, key string) (interface{}, bool)

	// Has reports whether the key exists and has not expired.
	Has(ctx context.Context, key string) bool

	// Delete removes the key and reports whether something was removed.
	Delete(ctx context.Context, key string) bool

	// Clear removes every key under the given namespace and returns the
	// count removed. An empty namespace means the instance's own.
	Clear(ctx context.Context, namespace string) int

	// Keys returns all live logical keys (namespace prefix stripped) under
	// the given namespace. An empty namespace means the instance's own.
	Keys(ctx context.Context, namespace string) []string

	// Size returns the count of live keys in the instance's namespace.
	Size(ctx context.Context) int

	// Type returns the tier this instance implements.
	Type() Tier

	// Namespace returns the namespace this instance is bound to.
	Namespace() string
}

// Stats holds hit/miss counters for the short-term tier.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// ShortTermMemory extends MemoryService with capabilities only the
// volatile tier provides.
type ShortTermMemory interface {
	MemoryService

	// Stats returns hit/miss counters and the current namespace size.
	Stats() Stats
}

// LongTermMemory extends MemoryService with capabilities only the
// durable tier provides. The compound operations (Increment, Expire) map
// onto the store's atomic primitives and are race-free under concurrent
// callers.
type LongTermMemory interface {
	MemoryService

	// Search returns the keys in the instance's namespace matching the
	// glob-style pattern, each reported by its final separator-delimited
	// segment.
	Search(ctx context.Context, pattern string) ([]string, error)

	// GetRange reads the elements of a list value between start and stop
	// (inclusive, negative indexes count from the end).
	GetRange(ctx context.Context, key string, start, stop int64) ([]interface{}, error)

	// Push appends values to a list, creating it if absent.
	// Returns the resulting list length.
	Push(ctx context.Context, key string, values ...interface{}) (int64, error)

	// Increment atomically adds delta to the numeric value stored at key
	// and returns the new value. A missing key counts from zero.
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// Expire sets or refreshes the TTL on an existing key without
	// rewriting the value. Returns false if the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Ping checks liveness of the backing store.
	Ping(ctx context.Context) error
}

// namespaceSeparator joins namespace and logical key into the stored key.
// Namespaces may not contain it, which keeps derivation collision-free.
const namespaceSeparator = ":"

// validateNamespace rejects namespaces that would break key derivation.
func validateNamespace(namespace string) error {
	if namespace == "" {
		return errors.ConfigError("namespace is required")
	}
	if strings.Contains(namespace, namespaceSeparator) {
		return errors.ConfigError(fmt.Sprintf("namespace must not contain %q", namespaceSeparator))
	}
	return nil
}

// namespacedKey derives the physical key stored in the backend.
func namespacedKey(namespace, key string) string {
	return namespace + namespaceSeparator + key
}

// namespacePrefix returns the prefix shared by every key in a namespace.
func namespacePrefix(namespace string) string {
	return namespace + namespaceSeparator
}

// stripNamespace recovers the logical key from a stored key.
func stripNamespace(namespace, storedKey string) string {
	return strings.TrimPrefix(storedKey, namespacePrefix(namespace))
}
