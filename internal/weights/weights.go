// Package weights serves per-tenant scoring weights through a
// read-through cache. Reads hit memory first, then the weight table, and
// fall back to the default set for tenants that have never completed a
// WHO analysis. Entries change only as a side effect of a successful WHO
// write; the scoring read path never mutates them.
package weights

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/outfieldhq/learning-engine/internal/model"
)

// Source reports where a weight set came from.
type Source string

const (
	SourceLearned Source = "learned"
	SourceDefault Source = "default"
)

// Store is the slice of the pattern store the cache needs.
type Store interface {
	GetWeightCache(ctx context.Context, tenantID string) (*model.WeightCacheEntry, error)
	PutWeightCache(ctx context.Context, entry *model.WeightCacheEntry) error
}

// Cache is a concurrency-safe read-through weight cache.
type Cache struct {
	store  Store
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]*model.WeightCacheEntry
}

// New returns an empty cache backed by st.
func New(st Store, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:   st,
		logger:  logger.With(zap.String("component", "weights")),
		entries: make(map[string]*model.WeightCacheEntry),
	}
}

// Get returns the tenant's scoring weights and their source. Tenants
// without a cached entry get the default set. The returned map is a copy;
// callers can keep or mutate it freely.
func (c *Cache) Get(ctx context.Context, tenantID string) (map[string]float64, Source, error) {
	c.mu.RLock()
	entry, ok := c.entries[tenantID]
	c.mu.RUnlock()
	if ok {
		return copyWeights(entry.Weights), SourceLearned, nil
	}

	entry, err := c.store.GetWeightCache(ctx, tenantID)
	if err != nil {
		return nil, "", err
	}
	if entry == nil {
		return model.DefaultWeights(), SourceDefault, nil
	}

	c.mu.Lock()
	c.entries[tenantID] = entry
	c.mu.Unlock()

	return copyWeights(entry.Weights), SourceLearned, nil
}

// Entry returns the full cached entry (weights plus sample size,
// confidence and update time), or nil when the tenant has none stored.
func (c *Cache) Entry(ctx context.Context, tenantID string) (*model.WeightCacheEntry, error) {
	c.mu.RLock()
	entry, ok := c.entries[tenantID]
	c.mu.RUnlock()
	if ok {
		cp := *entry
		cp.Weights = copyWeights(entry.Weights)
		return &cp, nil
	}

	entry, err := c.store.GetWeightCache(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	c.mu.Lock()
	c.entries[tenantID] = entry
	c.mu.Unlock()

	cp := *entry
	cp.Weights = copyWeights(entry.Weights)
	return &cp, nil
}

// Refresh writes a newly learned entry through to the store and replaces
// the in-memory copy. Called by the orchestrator after a WHO pattern is
// stored, and nowhere else.
func (c *Cache) Refresh(ctx context.Context, entry *model.WeightCacheEntry) error {
	if err := c.store.PutWeightCache(ctx, entry); err != nil {
		return err
	}

	c.mu.Lock()
	c.entries[entry.TenantID] = entry
	c.mu.Unlock()

	c.logger.Info("weight cache refreshed",
		zap.String("tenant_id", entry.TenantID),
		zap.Int("sample_size", entry.SampleSize),
		zap.Float64("confidence", entry.Confidence),
	)
	return nil
}

func copyWeights(w map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
