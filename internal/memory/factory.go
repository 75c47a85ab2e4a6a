package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"memory-service/internal/common/errors"
	"memory-service/internal/common/logging"
)

// FactoryConfig holds the defaults applied to instances created without
// per-call options.
type FactoryConfig struct {
	Redis     LongTermOptions
	ShortTerm ShortTermOptions
}

// Factory is the single source of truth mapping (tier, namespace) to a
// live memory instance. Lookup-then-insert is atomic: the registry mutex is
// held across construction and initialization, so concurrent first-time
// requests for one namespace always share a single backend instance.
type Factory struct {
	mu        sync.Mutex
	config    FactoryConfig
	shortTerm map[string]ShortTermMemory
	longTerm  map[string]LongTermMemory
	logger    logging.Logger
}

// NewFactory creates an empty factory with the given defaults.
func NewFactory(config FactoryConfig) *Factory {
	return &Factory{
		config:    config,
		shortTerm: make(map[string]ShortTermMemory),
		longTerm:  make(map[string]LongTermMemory),
		logger:    logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "memory_factory"}),
	}
}

// GetShortTermMemory returns the cached short-term instance for the
// namespace, creating one if none exists. Passing nil options uses the
// factory defaults.
func (f *Factory) GetShortTermMemory(namespace string, opts *ShortTermOptions) (ShortTermMemory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if instance, exists := f.shortTerm[namespace]; exists {
		return instance, nil
	}

	if opts == nil {
		opts = &f.config.ShortTerm
	}

	instance, err := NewShortTermStore(namespace, opts)
	if err != nil {
		return nil, err
	}
	if err := instance.Initialize(context.Background()); err != nil {
		return nil, err
	}

	f.shortTerm[namespace] = instance
	f.logger.Info("Created short-term memory", logging.String("namespace", namespace))
	return instance, nil
}

// GetLongTermMemory returns the cached long-term instance for the
// namespace, creating and connecting one if none exists. Passing nil
// options uses the factory defaults.
//
// An unreachable remote store is not fatal here: the instance is cached in
// the disconnected state and reconnects on its next use. Configuration
// errors do propagate.
func (f *Factory) GetLongTermMemory(ctx context.Context, namespace string, opts *LongTermOptions) (LongTermMemory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if instance, exists := f.longTerm[namespace]; exists {
		return instance, nil
	}

	if opts == nil {
		opts = &f.config.Redis
	}

	instance, err := NewLongTermStore(namespace, opts)
	if err != nil {
		return nil, err
	}
	if err := instance.Initialize(ctx); err != nil {
		f.logger.Warn("Long-term memory created disconnected",
			logging.Err(err),
			logging.String("namespace", namespace),
		)
	}

	f.longTerm[namespace] = instance
	f.logger.Info("Created long-term memory", logging.String("namespace", namespace))
	return instance, nil
}

// GetMemory is a tier-dispatching convenience wrapper around the two typed
// getters. Returns a validation error for an unknown tier.
func (f *Factory) GetMemory(ctx context.Context, tier Tier, namespace string) (MemoryService, error) {
	switch tier {
	case TierShortTerm:
		return f.GetShortTermMemory(namespace, nil)
	case TierLongTerm:
		return f.GetLongTermMemory(ctx, namespace, nil)
	default:
		return nil, errors.ValidationError(fmt.Sprintf("invalid memory tier %q", tier))
	}
}

// CloseAll closes every cached instance across both tiers and clears the
// registries. A failure closing one instance never stops the sweep; the
// collected failures come back as a single error.
func (f *Factory) CloseAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var failures []string

	for namespace, instance := range f.shortTerm {
		if err := instance.Close(); err != nil {
			failures = append(failures, fmt.Sprintf("short-term/%s: %v", namespace, err))
			f.logger.Error("Failed to close short-term memory", err, logging.String("namespace", namespace))
		}
	}
	for namespace, instance := range f.longTerm {
		if err := instance.Close(); err != nil {
			failures = append(failures, fmt.Sprintf("long-term/%s: %v", namespace, err))
			f.logger.Error("Failed to close long-term memory", err, logging.String("namespace", namespace))
		}
	}

	f.shortTerm = make(map[string]ShortTermMemory)
	f.longTerm = make(map[string]LongTermMemory)
	f.logger.Info("Closed all memory instances")

	if len(failures) > 0 {
		return errors.InternalError("failed to close memory instances: "+strings.Join(failures, "; "), nil)
	}
	return nil
}
