package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual service.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// EngineMetrics is returned by GET /v1/metrics/engine.
type EngineMetrics struct {
	Projections     int64   `json:"projections"`
	ProjectionErrs  int64   `json:"projectionErrors"`
	ErrorRate       float64 `json:"errorRate"`
	StoreErrors     int64   `json:"storeErrors"`
	RateCacheHits   int64   `json:"rateCacheHits"`
	RateCacheMisses int64   `json:"rateCacheMisses"`
	CacheHitRate    float64 `json:"cacheHitRate"`
	Reminders       int64   `json:"remindersPublished"`
	Period          string  `json:"period"`
}

// RateResponse is returned by GET /v1/rates/cdi.
type RateResponse struct {
	Index      string  `json:"index"`
	AnnualRate float64 `json:"annualRate"`
	Source     string  `json:"source"` // provider, cache, default
}
