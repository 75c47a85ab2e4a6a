// Package memory provides a dual-tier key-value storage abstraction.
//
// This package wraps battle-tested storage libraries:
//   - github.com/patrickmn/go-cache for the short-term in-process tier
//   - github.com/go-redis/redis/v8 for the long-term durable tier
//
// Both tiers implement the MemoryService interface and partition their keys
// by namespace. A Factory manages one live instance per (tier, namespace)
// pair and closes all of them at shutdown.
//
// 1. Short-Term Memory - volatile in-process cache
//   - Per-item TTL with a configured default
//   - Periodic sweep of expired items
//   - Hit/miss statistics
//
// 2. Long-Term Memory - durable Redis-backed store
//   - Explicit connect/close lifecycle with automatic reconnection
//   - JSON serialization of values
//   - Pattern search, range reads, atomic increment, TTL refresh
//
// The tiers deliberately disagree about a zero TTL on Set: the short-term
// tier falls back to its configured default TTL, while the long-term tier
// stores without expiry unless a default was configured. Callers that must
// choose behavior per tier read the tag returned by Type().
//
// Usage:
//
//	factory := memory.NewFactory(memory.FactoryConfig{
//		Redis: memory.LongTermOptions{Address: "localhost:6379"},
//	})
//	defer factory.CloseAll()
//
//	short, _ := factory.GetShortTermMemory("session", nil)
//	short.Set(ctx, "token:42", "abc", 0)
//
//	long, _ := factory.GetLongTermMemory(ctx, "orders", nil)
//	long.Set(ctx, "order:1", map[string]string{"status": "open"}, time.Hour)
package memory
