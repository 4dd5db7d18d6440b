package model

import "time"

// WeightCacheEntry is the denormalized copy of a tenant's recommended
// scoring weights. The lead scorer reads this table on its hot path, so
// it is written only when a WHO pattern is stored and never holds a
// partially learned set.
type WeightCacheEntry struct {
	TenantID   string             `json:"tenant_id"`
	Weights    map[string]float64 `json:"weights"`
	SampleSize int                `json:"sample_size"`
	Confidence float64            `json:"confidence"`
	UpdatedAt  time.Time          `json:"updated_at"`
}
