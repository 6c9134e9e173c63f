// Package types contains output shapes shared by the engine, the service
// facade and the CLI.
package types

// RankedPost is one row of a ranking result.
type RankedPost struct {
	Rank      int     `json:"rank"`
	PostID    string  `json:"post_id"`
	Score     float64 `json:"score"`
	Likes     int64   `json:"likes"`
	Comments  int64   `json:"comments"`
	Shares    int64   `json:"shares"`
	Upvotes   int64   `json:"upvotes"`
	Downvotes int64   `json:"downvotes"`
	Timestamp float64 `json:"timestamp"`
	// AgeSeconds is measured against the run reference time.
	AgeSeconds float64 `json:"age_seconds"`
}

// Summary describes a finished ranking run.
type Summary struct {
	RunID          string  `json:"run_id"`
	Algorithm      string  `json:"algorithm"`
	TopK           int     `json:"top_k"`
	BatchSize      int     `json:"batch_size"`
	Batches        int     `json:"batches"`
	TotalProcessed int64   `json:"total_processed"`
	DurationMS     float64 `json:"duration_ms"`
	Throughput     float64 `json:"throughput_per_sec"`
	MemoryBytes    uint64  `json:"memory_bytes"`
	FromCache      bool    `json:"from_cache"`
	Partial        bool    `json:"partial"`
	ReferenceTime  float64 `json:"reference_time"`
}

// Ranking is the serialized form of a ranking run.
type Ranking struct {
	Summary Summary      `json:"summary"`
	Posts   []RankedPost `json:"posts"`
}
