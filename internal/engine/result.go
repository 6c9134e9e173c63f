package engine

import (
	"time"

	"github.com/okian/rankstream/internal/domain/model"
	"github.com/okian/rankstream/internal/domain/scoring"
	"github.com/okian/rankstream/internal/domain/types"
)

// Ranked is one post of a ranking result.
type Ranked struct {
	Rank  int // 1-based
	Score float64
	Post  model.Post
}

// Result is the outcome of a ranking run. It is not modified after it is
// returned.
type Result struct {
	RunID          string
	Algorithm      scoring.Algorithm
	TopK           int
	BatchSize      int
	Batches        int
	TotalProcessed int64
	Duration       time.Duration
	Throughput     float64 // records per second
	MemoryBytes    uint64  // heap in use when the run finished
	FromCache      bool
	Partial        bool
	ReferenceTime  time.Time

	// Posts are ordered by descending score.
	Posts []Ranked
}

// RankOf returns the 1-based rank of id, or 0 if it is not in the result.
func (r *Result) RankOf(id string) int {
	for _, p := range r.Posts {
		if p.Post.ID == id {
			return p.Rank
		}
	}
	return 0
}

// Clone returns a copy that shares no slices with r.
func (r *Result) Clone() *Result {
	cp := *r
	cp.Posts = append([]Ranked(nil), r.Posts...)
	return &cp
}

// RankedPosts converts the result rows to their serialized shape.
func (r *Result) RankedPosts() []types.RankedPost {
	ref := model.Seconds(r.ReferenceTime)
	out := make([]types.RankedPost, len(r.Posts))
	for i, p := range r.Posts {
		out[i] = types.RankedPost{
			Rank:       p.Rank,
			PostID:     p.Post.ID,
			Score:      p.Score,
			Likes:      p.Post.Likes,
			Comments:   p.Post.Comments,
			Shares:     p.Post.Shares,
			Upvotes:    p.Post.Upvotes,
			Downvotes:  p.Post.Downvotes,
			Timestamp:  p.Post.Timestamp,
			AgeSeconds: p.Post.Age(ref),
		}
	}
	return out
}

// Summary returns the run metadata in serialized shape.
func (r *Result) Summary() types.Summary {
	return types.Summary{
		RunID:          r.RunID,
		Algorithm:      string(r.Algorithm),
		TopK:           r.TopK,
		BatchSize:      r.BatchSize,
		Batches:        r.Batches,
		TotalProcessed: r.TotalProcessed,
		DurationMS:     float64(r.Duration) / float64(time.Millisecond),
		Throughput:     r.Throughput,
		MemoryBytes:    r.MemoryBytes,
		FromCache:      r.FromCache,
		Partial:        r.Partial,
		ReferenceTime:  model.Seconds(r.ReferenceTime),
	}
}

// Ranking returns the full serialized form.
func (r *Result) Ranking() types.Ranking {
	return types.Ranking{Summary: r.Summary(), Posts: r.RankedPosts()}
}
