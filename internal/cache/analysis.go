package cache

import (
	"time"

	"mediafetch/internal/selection"
	"mediafetch/internal/source"
)

// AnalysisBundle is the composite payload cached per asset: the resolved
// metadata, the scored stream categories, and optionally the selection plan
// derived from them.
type AnalysisBundle struct {
	Asset    source.AssetInfo         `json:"asset"`
	Analysis selection.Analysis       `json:"analysis"`
	Plan     *selection.SelectionPlan `json:"plan,omitempty"`
}

// AnalysisCache memoizes analysis bundles keyed by asset identifier.
//
// Plan writes are read-modify-write of the whole bundle rather than a partial
// update: concurrent writers to the same asset may race and the last writer's
// full bundle wins. No merging of partial analyses is attempted.
type AnalysisCache struct {
	inner *Cache[AnalysisBundle]
}

// NewAnalysisCache returns an analysis cache with the given TTL and capacity.
func NewAnalysisCache(ttl time.Duration, maxSize int) *AnalysisCache {
	return &AnalysisCache{inner: New[AnalysisBundle](ttl, maxSize)}
}

func analysisKey(assetID string) string {
	return "analysis:" + assetID
}

// Get returns the cached bundle for the asset, if present and fresh.
func (c *AnalysisCache) Get(assetID string) (AnalysisBundle, bool) {
	return c.inner.Get(analysisKey(assetID))
}

// Set stores the bundle for the asset, replacing any previous bundle.
func (c *AnalysisCache) Set(assetID string, bundle AnalysisBundle) {
	c.inner.Set(analysisKey(assetID), bundle)
}

// GetPlan returns the cached selection plan for the asset, if the bundle is
// present and carries one.
func (c *AnalysisCache) GetPlan(assetID string) (selection.SelectionPlan, bool) {
	bundle, ok := c.Get(assetID)
	if !ok || bundle.Plan == nil {
		return selection.SelectionPlan{}, false
	}
	return *bundle.Plan, true
}

// SetPlan attaches a plan to the asset's bundle, rewriting the whole bundle.
// If no bundle exists yet (or it expired), a bundle holding just the plan is
// stored.
func (c *AnalysisCache) SetPlan(assetID string, plan selection.SelectionPlan) {
	bundle, _ := c.Get(assetID)
	bundle.Plan = &plan
	c.Set(assetID, bundle)
}

// Delete removes the asset's bundle and reports whether it was present.
func (c *AnalysisCache) Delete(assetID string) bool {
	return c.inner.Delete(analysisKey(assetID))
}

// SweepExpired removes expired bundles and returns the count removed.
func (c *AnalysisCache) SweepExpired() int {
	return c.inner.SweepExpired()
}

// Stats returns a snapshot of the underlying cache counters.
func (c *AnalysisCache) Stats() Stats {
	return c.inner.Stats()
}

// Len returns the number of cached bundles.
func (c *AnalysisCache) Len() int {
	return c.inner.Len()
}
