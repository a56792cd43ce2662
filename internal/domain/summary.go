package domain

// LatencySummary holds request latency percentiles in milliseconds
type LatencySummary struct {
	P50     float64 `json:"p50"`
	P95     float64 `json:"p95"`
	P99     float64 `json:"p99"`
	Samples int     `json:"samples"`
}

// FieldErrorCount is how often one field failed validation
type FieldErrorCount struct {
	Field string `json:"field"`
	Count int    `json:"count"`
}

// VersionCounts splits request outcomes for one API version
type VersionCounts struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
}

// ValidationSummary aggregates suggestion outcomes over a time window.
// It carries no timestamps so identical activity serializes identically.
type ValidationSummary struct {
	Window          string                       `json:"window"`
	TotalRequests   int                          `json:"totalRequests"`
	ValidRequests   int                          `json:"validRequests"`
	InvalidRequests int                          `json:"invalidRequests"`
	Duplicates      int                          `json:"duplicates"`
	RateLimited     int                          `json:"rateLimited"`
	ErrorRate       float64                      `json:"errorRate"`
	RequestsByTier  map[Tier]int                 `json:"requestsByTier"`
	ErrorsByTier    map[Tier]int                 `json:"errorsByTier"`
	WarningsByTier  map[Tier]int                 `json:"warningsByTier"`
	TopErrorFields  []FieldErrorCount            `json:"topErrorFields"`
	Latency         LatencySummary               `json:"latency"`
	ByVersion       map[APIVersion]VersionCounts `json:"byVersion"`
}
