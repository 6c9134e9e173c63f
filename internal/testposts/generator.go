// Package testposts generates deterministic synthetic posts and reference
// rankings for tests and benchmarks.
package testposts

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"time"

	"github.com/okian/rankstream/internal/domain/model"
	"github.com/okian/rankstream/internal/domain/scoring"
)

// Post profiles, picked uniformly.
const (
	profileAverage = iota
	profileViral
	profileStale
	profileControversial
	profileQuiet
	profileFuture
	profileCount
)

// maxAge is the oldest generated post relative to now, in seconds.
const maxAge = 7 * 24 * 3600

// Generate returns n posts derived from seed. The same seed and now always
// produce the same posts.
func Generate(n int, seed int64, now time.Time) []model.Post {
	rng := rand.New(rand.NewSource(seed))
	ref := model.Seconds(now)
	posts := make([]model.Post, n)
	for i := range posts {
		var c model.Counters
		age := rng.Float64() * maxAge

		switch rng.Intn(profileCount) {
		case profileAverage:
			c = model.Counters{Likes: rng.Int63n(200), Comments: rng.Int63n(40), Shares: rng.Int63n(10), Upvotes: rng.Int63n(300), Downvotes: rng.Int63n(50)}
		case profileViral:
			c = model.Counters{Likes: 5000 + rng.Int63n(50000), Comments: rng.Int63n(5000), Shares: rng.Int63n(8000), Upvotes: 10000 + rng.Int63n(90000), Downvotes: rng.Int63n(2000)}
			age = rng.Float64() * 6 * 3600
		case profileStale:
			c = model.Counters{Likes: rng.Int63n(2000), Comments: rng.Int63n(100), Shares: rng.Int63n(50), Upvotes: rng.Int63n(1000)}
			age = maxAge + rng.Float64()*maxAge
		case profileControversial:
			c = model.Counters{Comments: 500 + rng.Int63n(2000), Upvotes: rng.Int63n(3000), Downvotes: 1000 + rng.Int63n(4000)}
		case profileQuiet:
			// all counters zero
		case profileFuture:
			c = model.Counters{Likes: rng.Int63n(50), Upvotes: rng.Int63n(20)}
			age = -rng.Float64() * 600
		}

		p, err := model.New(fmt.Sprintf("post-%06d", i), c, ref-age, model.ClampNegative)
		if err != nil {
			panic(err) // generated values are always valid
		}
		posts[i] = p
	}
	return posts
}

// TopScores returns the k highest scores of posts under scorer, computed by
// a full sort.
func TopScores(posts []model.Post, scorer *scoring.Scorer, now time.Time, k int) []float64 {
	ref := model.Seconds(now)
	all := make([]float64, len(posts))
	for i, p := range posts {
		all[i] = scorer.Score(p, ref)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(all)))
	if k < len(all) {
		all = all[:k]
	}
	return all
}

// Shuffle returns a permuted copy of posts.
func Shuffle(posts []model.Post, seed int64) []model.Post {
	out := append([]model.Post(nil), posts...)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

type record struct {
	ID        string  `json:"post_id"`
	Likes     int64   `json:"likes"`
	Comments  int64   `json:"comments"`
	Shares    int64   `json:"shares"`
	Upvotes   int64   `json:"upvotes"`
	Downvotes int64   `json:"downvotes"`
	Timestamp float64 `json:"timestamp"`
}

// WriteJSONLines writes posts as one JSON object per line.
func WriteJSONLines(w io.Writer, posts []model.Post) error {
	enc := json.NewEncoder(w)
	for _, p := range posts {
		if err := enc.Encode(record{
			ID:        p.ID,
			Likes:     p.Likes,
			Comments:  p.Comments,
			Shares:    p.Shares,
			Upvotes:   p.Upvotes,
			Downvotes: p.Downvotes,
			Timestamp: p.Timestamp,
		}); err != nil {
			return fmt.Errorf("write post %s: %w", p.ID, err)
		}
	}
	return nil
}
