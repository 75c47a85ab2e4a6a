package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memory-service/internal/common/errors"
)

func setupLongTerm(t *testing.T, namespace string) (*LongTermStore, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := NewLongTermStore(namespace, &LongTermOptions{
		Address:   mr.Addr(),
		OpTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { store.Close() })

	return store, mr
}

func TestNewLongTermStore(t *testing.T) {
	t.Run("missing address", func(t *testing.T) {
		_, err := NewLongTermStore("orders", &LongTermOptions{})
		assert.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	})

	t.Run("nil options", func(t *testing.T) {
		_, err := NewLongTermStore("orders", nil)
		assert.Error(t, err)
	})

	t.Run("invalid namespace", func(t *testing.T) {
		_, err := NewLongTermStore("a:b", &LongTermOptions{Address: "localhost:6379"})
		assert.Error(t, err)
	})

	t.Run("unreachable store fails initialize, not construction", func(t *testing.T) {
		store, err := NewLongTermStore("orders", &LongTermOptions{
			Address:        "localhost:1",
			ConnectTimeout: 200 * time.Millisecond,
		})
		require.NoError(t, err)

		err = store.Initialize(context.Background())
		assert.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
	})
}

func TestLongTermStore_RoundTrip(t *testing.T) {
	store, _ := setupLongTerm(t, "cache")
	ctx := context.Background()

	t.Run("set then get structured value", func(t *testing.T) {
		ok := store.Set(ctx, "userId:42", map[string]interface{}{"name": "a"}, 0)
		assert.True(t, ok)

		value, found := store.Get(ctx, "userId:42")
		require.True(t, found)
		assert.Equal(t, map[string]interface{}{"name": "a"}, value)
	})

	t.Run("set then get string", func(t *testing.T) {
		store.Set(ctx, "plain", "hello", 0)

		value, found := store.Get(ctx, "plain")
		require.True(t, found)
		assert.Equal(t, "hello", value)
	})

	t.Run("numbers come back as float64", func(t *testing.T) {
		store.Set(ctx, "count", 42, 0)

		value, found := store.Get(ctx, "count")
		require.True(t, found)
		assert.Equal(t, float64(42), value)
	})

	t.Run("delete then get", func(t *testing.T) {
		assert.True(t, store.Delete(ctx, "userId:42"))
		_, found := store.Get(ctx, "userId:42")
		assert.False(t, found)
	})

	t.Run("get missing key", func(t *testing.T) {
		_, found := store.Get(ctx, "never-set")
		assert.False(t, found)
	})
}

func TestLongTermStore_NamespaceIsolation(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx := context.Background()
	opts := &LongTermOptions{Address: mr.Addr()}

	ns1, err := NewLongTermStore("ns1", opts)
	require.NoError(t, err)
	defer ns1.Close()

	ns2, err := NewLongTermStore("ns2", opts)
	require.NoError(t, err)
	defer ns2.Close()

	ns1.Set(ctx, "k", "v1", 0)
	ns2.Set(ctx, "k", "v2", 0)

	v1, found := ns1.Get(ctx, "k")
	require.True(t, found)
	assert.Equal(t, "v1", v1)

	v2, found := ns2.Get(ctx, "k")
	require.True(t, found)
	assert.Equal(t, "v2", v2)

	// Clearing one namespace leaves the other untouched
	assert.Equal(t, 1, ns1.Clear(ctx, ""))
	_, found = ns2.Get(ctx, "k")
	assert.True(t, found)
}

func TestLongTermStore_Expiry(t *testing.T) {
	store, mr := setupLongTerm(t, "session")
	ctx := context.Background()

	t.Run("explicit ttl expires", func(t *testing.T) {
		store.Set(ctx, "k", "v", time.Second)

		assert.True(t, store.Has(ctx, "k"))

		mr.FastForward(2 * time.Second)
		assert.False(t, store.Has(ctx, "k"))
		_, found := store.Get(ctx, "k")
		assert.False(t, found)
	})

	t.Run("zero ttl means no expiry by default", func(t *testing.T) {
		store.Set(ctx, "forever", "v", 0)

		mr.FastForward(24 * time.Hour)
		assert.True(t, store.Has(ctx, "forever"))
	})
}

func TestLongTermStore_DefaultTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store, err := NewLongTermStore("session", &LongTermOptions{
		Address:    mr.Addr(),
		DefaultTTL: time.Second,
	})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	store.Set(ctx, "k", "v", 0)

	assert.True(t, store.Has(ctx, "k"))
	mr.FastForward(2 * time.Second)
	assert.False(t, store.Has(ctx, "k"))
}

func TestLongTermStore_ClearAndKeys(t *testing.T) {
	store, _ := setupLongTerm(t, "auth")
	ctx := context.Background()

	store.Set(ctx, "a", 1, 0)
	store.Set(ctx, "b", 2, 0)
	store.Set(ctx, "c", 3, 0)

	t.Run("keys strips the namespace prefix", func(t *testing.T) {
		keys := store.Keys(ctx, "")
		assert.ElementsMatch(t, []string{"a", "b", "c"}, keys)
	})

	t.Run("size counts namespace keys", func(t *testing.T) {
		assert.Equal(t, 3, store.Size(ctx))
	})

	t.Run("clear own namespace", func(t *testing.T) {
		assert.Equal(t, 3, store.Clear(ctx, ""))
		assert.Equal(t, 0, store.Size(ctx))
	})

	t.Run("clear empty namespace returns zero", func(t *testing.T) {
		assert.Equal(t, 0, store.Clear(ctx, ""))
	})
}

func TestLongTermStore_Search(t *testing.T) {
	store, _ := setupLongTerm(t, "auth")
	ctx := context.Background()

	store.Set(ctx, "session:a", "v", 0)
	store.Set(ctx, "session:b", "v", 0)
	store.Set(ctx, "other:c", "v", 0)

	t.Run("pattern-scoped listing", func(t *testing.T) {
		keys, err := store.Search(ctx, "session:*")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b"}, keys)
	})

	t.Run("no matches", func(t *testing.T) {
		keys, err := store.Search(ctx, "missing:*")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("empty pattern is caller error", func(t *testing.T) {
		_, err := store.Search(ctx, "")
		assert.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	})
}

func TestLongTermStore_PushAndGetRange(t *testing.T) {
	store, _ := setupLongTerm(t, "feed")
	ctx := context.Background()

	t.Run("push returns list length", func(t *testing.T) {
		length, err := store.Push(ctx, "events", "first", "second")
		require.NoError(t, err)
		assert.Equal(t, int64(2), length)

		length, err = store.Push(ctx, "events", map[string]interface{}{"id": "third"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), length)
	})

	t.Run("full range", func(t *testing.T) {
		values, err := store.GetRange(ctx, "events", 0, -1)
		require.NoError(t, err)
		require.Len(t, values, 3)
		assert.Equal(t, "first", values[0])
		assert.Equal(t, "second", values[1])
		assert.Equal(t, map[string]interface{}{"id": "third"}, values[2])
	})

	t.Run("sub range", func(t *testing.T) {
		values, err := store.GetRange(ctx, "events", 0, 1)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"first", "second"}, values)
	})

	t.Run("missing key yields empty range", func(t *testing.T) {
		values, err := store.GetRange(ctx, "nothing", 0, -1)
		require.NoError(t, err)
		assert.Empty(t, values)
	})

	t.Run("push requires values", func(t *testing.T) {
		_, err := store.Push(ctx, "events")
		assert.Error(t, err)
	})
}

func TestLongTermStore_Increment(t *testing.T) {
	store, _ := setupLongTerm(t, "counters")
	ctx := context.Background()

	t.Run("missing key counts from zero", func(t *testing.T) {
		value, err := store.Increment(ctx, "visits", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), value)
	})

	t.Run("applies delta", func(t *testing.T) {
		value, err := store.Increment(ctx, "visits", 5)
		require.NoError(t, err)
		assert.Equal(t, int64(6), value)
	})

	t.Run("concurrent increments never lose updates", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Increment(ctx, "concurrent", 1)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		value, err := store.Increment(ctx, "concurrent", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(100), value)
	})
}

func TestLongTermStore_Expire(t *testing.T) {
	store, mr := setupLongTerm(t, "session")
	ctx := context.Background()

	t.Run("refreshes ttl without rewriting", func(t *testing.T) {
		store.Set(ctx, "k", "v", 0)

		ok, err := store.Expire(ctx, "k", time.Second)
		require.NoError(t, err)
		assert.True(t, ok)

		mr.FastForward(2 * time.Second)
		assert.False(t, store.Has(ctx, "k"))
	})

	t.Run("missing key", func(t *testing.T) {
		ok, err := store.Expire(ctx, "missing", time.Second)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("non-positive ttl is caller error", func(t *testing.T) {
		_, err := store.Expire(ctx, "k", 0)
		assert.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	})
}

func TestLongTermStore_Serialization(t *testing.T) {
	store, mr := setupLongTerm(t, "cache")
	ctx := context.Background()

	t.Run("unencodable value fails the write", func(t *testing.T) {
		assert.False(t, store.Set(ctx, "bad", make(chan int), 0))
	})

	t.Run("undecodable payload reads as missing", func(t *testing.T) {
		// Corrupt payload written outside the service
		require.NoError(t, mr.Set("cache:corrupt", "{not json"))

		_, found := store.Get(ctx, "corrupt")
		assert.False(t, found)

		// Existence check does not decode and still sees the key
		assert.True(t, store.Has(ctx, "corrupt"))
	})
}

func TestLongTermStore_Disconnection(t *testing.T) {
	store, mr := setupLongTerm(t, "orders")
	ctx := context.Background()

	store.Set(ctx, "k", "v", 0)

	t.Run("reads miss and writes fail while down", func(t *testing.T) {
		mr.Close()

		assert.False(t, store.Set(ctx, "k2", "v", 0))
		_, found := store.Get(ctx, "k")
		assert.False(t, found)
		assert.False(t, store.Has(ctx, "k"))
		assert.Error(t, store.Ping(ctx))
	})

	t.Run("recovers without manual reset", func(t *testing.T) {
		require.NoError(t, mr.Restart())

		assert.NoError(t, store.Ping(ctx))
		assert.True(t, store.Set(ctx, "k3", "v", 0))
		_, found := store.Get(ctx, "k3")
		assert.True(t, found)
	})
}

func TestLongTermStore_Close(t *testing.T) {
	store, _ := setupLongTerm(t, "lifecycle")
	ctx := context.Background()

	t.Run("close is idempotent", func(t *testing.T) {
		assert.NoError(t, store.Close())
		assert.NoError(t, store.Close())
	})

	t.Run("operations after close fail", func(t *testing.T) {
		assert.False(t, store.Set(ctx, "k", "v", 0))
		assert.Error(t, store.Ping(ctx))
		_, err := store.Increment(ctx, "k", 1)
		assert.Error(t, err)
	})
}

func TestLongTermStore_Type(t *testing.T) {
	store, _ := setupLongTerm(t, "meta")
	assert.Equal(t, TierLongTerm, store.Type())
	assert.Equal(t, "meta", store.Namespace())
}
