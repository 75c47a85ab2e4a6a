package memory

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"memory-service/internal/common/errors"
	"memory-service/internal/common/logging"
)

const (
	// DefaultOpTimeout bounds every command against the remote store
	DefaultOpTimeout = 5 * time.Second
	// DefaultConnectTimeout bounds the initial PING when dialing
	DefaultConnectTimeout = 5 * time.Second
	// DefaultPoolSize is the redis connection pool size
	DefaultPoolSize = 10
)

// LongTermOptions configures a long-term memory instance.
type LongTermOptions struct {
	Address  string
	Password string
	DB       int
	PoolSize int

	// DefaultTTL is applied when Set receives a zero or negative TTL.
	// Left at zero, such writes are stored without expiry. This is the
	// opposite of the short-term tier, which substitutes its default TTL.
	DefaultTTL time.Duration

	// OpTimeout bounds each command so a slow store produces a failed
	// operation instead of a stuck caller.
	OpTimeout time.Duration

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration
}

// connState tracks the connection lifecycle of a long-term instance.
type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateReady
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateReady:
		return "ready"
	default:
		return "disconnected"
	}
}

// LongTermStore is the durable network-backed tier. Every operation first
// runs the connection guard, which walks the instance through
// disconnected -> connecting -> ready, so a dropped connection heals on the
// next use without the caller managing connection state.
//
// Values are JSON-encoded on write and decoded on read; a payload that no
// longer decodes is logged and reported as a miss rather than surfaced as
// corruption.
type LongTermStore struct {
	namespace string
	opts      LongTermOptions
	logger    logging.Logger

	mu     sync.Mutex
	state  connState
	client *redis.Client
	closed bool
}

// NewLongTermStore creates a long-term memory instance for the namespace.
// The remote store address is required; the connection itself is
// established lazily by Initialize or the first operation.
func NewLongTermStore(namespace string, opts *LongTermOptions) (*LongTermStore, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}
	if opts == nil || opts.Address == "" {
		return nil, errors.ConfigError("remote store address is required")
	}

	options := *opts
	if options.PoolSize <= 0 {
		options.PoolSize = DefaultPoolSize
	}
	if options.OpTimeout <= 0 {
		options.OpTimeout = DefaultOpTimeout
	}
	if options.ConnectTimeout <= 0 {
		options.ConnectTimeout = DefaultConnectTimeout
	}

	logger := logging.GetGlobalLogger().WithFields(
		logging.Field{Key: "tier", Value: string(TierLongTerm)},
		logging.Field{Key: "namespace", Value: namespace},
		logging.Field{Key: "address", Value: options.Address},
	)

	return &LongTermStore{
		namespace: namespace,
		opts:      options,
		logger:    logger,
	}, nil
}

// Initialize establishes the connection. Calling it while already
// connected is a no-op.
func (l *LongTermStore) Initialize(ctx context.Context) error {
	_, err := l.ensureConnected(ctx)
	return err
}

// Close releases the connection and marks the instance closed. Idempotent.
func (l *LongTermStore) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.state = stateDisconnected

	if l.client != nil {
		err := l.client.Close()
		l.client = nil
		l.logger.Debug("Long-term memory closed")
		return err
	}
	return nil
}

// ensureConnected returns a ready client, dialing if the instance is
// disconnected. Holding the mutex across the dial keeps concurrent callers
// from racing to create separate clients.
func (l *LongTermStore) ensureConnected(ctx context.Context) (*redis.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, errors.ConnectionError("memory instance is closed", nil)
	}
	if l.state == stateReady {
		return l.client, nil
	}

	l.state = stateConnecting
	client := redis.NewClient(&redis.Options{
		Addr:     l.opts.Address,
		Password: l.opts.Password,
		DB:       l.opts.DB,
		PoolSize: l.opts.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, l.opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		l.state = stateDisconnected
		return nil, errors.ConnectionError("failed to connect to Redis", err)
	}

	// Drop the stale client left behind by a failed connection
	if l.client != nil {
		l.client.Close()
	}
	l.client = client
	l.state = stateReady
	l.logger.Info("Long-term memory connected")
	return client, nil
}

// markDisconnected flags the instance so the next operation reconnects.
func (l *LongTermStore) markDisconnected(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.state != stateReady {
		return
	}
	l.state = stateDisconnected
	l.logger.Warn("Long-term memory disconnected", logging.Err(err))
}

// opContext bounds a single command against the remote store.
func (l *LongTermStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.opts.OpTimeout)
}

// Set stores the JSON-encoded value under the namespaced key.
//
// A zero or negative TTL stores without expiry unless a default TTL was
// configured; the short-term tier substitutes its default instead.
func (l *LongTermStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	data, err := json.Marshal(value)
	if err != nil {
		l.logger.Error("Failed to encode value", errors.SerializationError("value is not serializable", err),
			logging.String("key", key),
		)
		return false
	}

	client, err := l.ensureConnected(ctx)
	if err != nil {
		l.logger.Warn("Set skipped, not connected", logging.Err(err), logging.String("key", key))
		return false
	}

	expiration := ttl
	if ttl <= 0 {
		expiration = l.opts.DefaultTTL
	}

	opCtx, cancel := l.opContext(ctx)
	defer cancel()

	if err := client.Set(opCtx, namespacedKey(l.namespace, key), data, expiration).Err(); err != nil {
		l.markDisconnected(err)
		l.logger.Warn("Set failed", logging.Err(err), logging.String("key", key))
		return false
	}
	return true
}

// Get returns the decoded value, or false if the key is absent, expired,
// the store is unreachable, or the payload no longer decodes.
func (l *LongTermStore) Get(ctx context.Context, key string) (interface{}, bool) {
	client, err := l.ensureConnected(ctx)
	if err != nil {
		return nil, false
	}

	opCtx, cancel := l.opContext(ctx)
	defer cancel()

	data, err := client.Get(opCtx, namespacedKey(l.namespace, key)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		l.markDisconnected(err)
		l.logger.Warn("Get failed", logging.Err(err), logging.String("key", key))
		return nil, false
	}

	var value interface{}
	if err := json.Unmarshal([]byte(data), &value); err != nil {
		l.logger.Warn("Stored value is not decodable, treating as missing",
			logging.Err(err),
			logging.String("key", key),
		)
		return nil, false
	}
	return value, true
}

// Has reports whether the key exists, without fetching or decoding the value.
func (l *LongTermStore) Has(ctx context.Context, key string) bool {
	client, err := l.ensureConnected(ctx)
	if err != nil {
		return false
	}

	opCtx, cancel := l.opContext(ctx)
	defer cancel()

	count, err := client.Exists(opCtx, namespacedKey(l.namespace, key)).Result()
	if err != nil {
		l.markDisconnected(err)
		return false
	}
	return count > 0
}

// Delete removes the key and reports whether something was removed.
func (l *LongTermStore) Delete(ctx context.Context, key string) bool {
	client, err := l.ensureConnected(ctx)
	if err != nil {
		return false
	}

	opCtx, cancel := l.opContext(ctx)
	defer cancel()

	removed, err := client.Del(opCtx, namespacedKey(l.namespace, key)).Result()
	if err != nil {
		l.markDisconnected(err)
		l.logger.Warn("Delete failed", logging.Err(err), logging.String("key", key))
		return false
	}
	return removed > 0
}

// Clear removes every key under the given namespace using the store's
// pattern query, never client-side iteration of the full key set. Returns
// the count removed.
func (l *LongTermStore) Clear(ctx context.Context, namespace string) int {
	if namespace == "" {
		namespace = l.namespace
	}

	client, err := l.ensureConnected(ctx)
	if err != nil {
		return 0
	}

	opCtx, cancel := l.opContext(ctx)
	defer cancel()

	keys, err := scanKeys(opCtx, client, namespacePrefix(namespace)+"*")
	if err != nil {
		l.markDisconnected(err)
		l.logger.Warn("Clear failed", logging.Err(err), logging.String("clear_namespace", namespace))
		return 0
	}
	if len(keys) == 0 {
		return 0
	}

	if err := client.Del(opCtx, keys...).Err(); err != nil {
		l.markDisconnected(err)
		l.logger.Warn("Clear failed", logging.Err(err), logging.String("clear_namespace", namespace))
		return 0
	}
	return len(keys)
}

// Keys returns all logical keys under the given namespace with the prefix
// stripped, using the store's pattern query.
func (l *LongTermStore) Keys(ctx context.Context, namespace string) []string {
	if namespace == "" {
		namespace = l.namespace
	}

	client, err := l.ensureConnected(ctx)
	if err != nil {
		return nil
	}

	opCtx, cancel := l.opContext(ctx)
	defer cancel()

	storedKeys, err := scanKeys(opCtx, client, namespacePrefix(namespace)+"*")
	if err != nil {
		l.markDisconnected(err)
		l.logger.Warn("Keys failed", logging.Err(err), logging.String("keys_namespace", namespace))
		return nil
	}

	keys := make([]string, 0, len(storedKeys))
	for _, storedKey := range storedKeys {
		keys = append(keys, stripNamespace(namespace, storedKey))
	}
	return keys
}

// Size returns the count of live keys in the instance's namespace.
func (l *LongTermStore) Size(ctx context.Context) int {
	return len(l.Keys(ctx, ""))
}

// Type returns the tier tag for this instance.
func (l *LongTermStore) Type() Tier {
	return TierLongTerm
}

// Namespace returns the namespace this instance is bound to.
func (l *LongTermStore) Namespace() string {
	return l.namespace
}

// Search returns the keys in the instance's namespace matching the
// glob-style pattern. The pattern is scoped to the namespace before it
// reaches the store. Each match is reported by its final
// separator-delimited segment, so search("session:*") yields "a" for the
// stored key "auth:session:a".
func (l *LongTermStore) Search(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		return nil, errors.ValidationError("search pattern is required")
	}

	client, err := l.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := l.opContext(ctx)
	defer cancel()

	storedKeys, err := scanKeys(opCtx, client, namespacePrefix(l.namespace)+pattern)
	if err != nil {
		l.markDisconnected(err)
		return nil, errors.InternalError("pattern search failed", err)
	}

	keys := make([]string, 0, len(storedKeys))
	for _, storedKey := range storedKeys {
		segments := strings.Split(storedKey, namespaceSeparator)
		keys = append(keys, segments[len(segments)-1])
	}
	return keys, nil
}

// GetRange reads list elements between start and stop (inclusive).
// Elements that no longer decode are skipped with a warning.
func (l *LongTermStore) GetRange(ctx context.Context, key string, start, stop int64) ([]interface{}, error) {
	client, err := l.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := l.opContext(ctx)
	defer cancel()

	raw, err := client.LRange(opCtx, namespacedKey(l.namespace, key), start, stop).Result()
	if err != nil {
		l.markDisconnected(err)
		return nil, errors.InternalError("range read failed", err)
	}

	values := make([]interface{}, 0, len(raw))
	for _, item := range raw {
		var value interface{}
		if err := json.Unmarshal([]byte(item), &value); err != nil {
			l.logger.Warn("Skipping undecodable list element",
				logging.Err(err),
				logging.String("key", key),
			)
			continue
		}
		values = append(values, value)
	}
	return values, nil
}

// Push appends JSON-encoded values to the list stored at key, creating it
// if absent. Returns the resulting list length.
func (l *LongTermStore) Push(ctx context.Context, key string, values ...interface{}) (int64, error) {
	if len(values) == 0 {
		return 0, errors.ValidationError("at least one value is required")
	}

	encoded := make([]interface{}, 0, len(values))
	for _, value := range values {
		data, err := json.Marshal(value)
		if err != nil {
			return 0, errors.SerializationError("value is not serializable", err)
		}
		encoded = append(encoded, data)
	}

	client, err := l.ensureConnected(ctx)
	if err != nil {
		return 0, err
	}

	opCtx, cancel := l.opContext(ctx)
	defer cancel()

	length, err := client.RPush(opCtx, namespacedKey(l.namespace, key), encoded...).Result()
	if err != nil {
		l.markDisconnected(err)
		return 0, errors.InternalError("push failed", err)
	}
	return length, nil
}

// Increment atomically adds delta to the numeric value at key using the
// store's INCRBY primitive, so concurrent callers never lose updates.
func (l *LongTermStore) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	client, err := l.ensureConnected(ctx)
	if err != nil {
		return 0, err
	}

	opCtx, cancel := l.opContext(ctx)
	defer cancel()

	value, err := client.IncrBy(opCtx, namespacedKey(l.namespace, key), delta).Result()
	if err != nil {
		l.markDisconnected(err)
		return 0, errors.InternalError("increment failed", err)
	}
	return value, nil
}

// Expire sets or refreshes the TTL on an existing key without rewriting
// the value. Returns false if the key does not exist.
func (l *LongTermStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.ValidationError("ttl must be positive")
	}

	client, err := l.ensureConnected(ctx)
	if err != nil {
		return false, err
	}

	opCtx, cancel := l.opContext(ctx)
	defer cancel()

	ok, err := client.Expire(opCtx, namespacedKey(l.namespace, key), ttl).Result()
	if err != nil {
		l.markDisconnected(err)
		return false, errors.InternalError("expire failed", err)
	}
	return ok, nil
}

// Ping checks liveness of the backing store. Health-check callers treat an
// error as "disconnected".
func (l *LongTermStore) Ping(ctx context.Context) error {
	client, err := l.ensureConnected(ctx)
	if err != nil {
		return err
	}

	opCtx, cancel := l.opContext(ctx)
	defer cancel()

	if err := client.Ping(opCtx).Err(); err != nil {
		l.markDisconnected(err)
		return errors.ConnectionError("remote store unreachable", err)
	}
	return nil
}

// scanKeys collects the keys matching a pattern via SCAN.
func scanKeys(ctx context.Context, client *redis.Client, match string) ([]string, error) {
	iter := client.Scan(ctx, 0, match, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
