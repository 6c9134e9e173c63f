// Package model contains the post record scored by the ranking engine and
// the rules that normalize raw input into it.
package model

import (
	"math"
	"time"
)

// MillisecondThreshold separates second-scale from millisecond-scale
// timestamps. Values above it are treated as milliseconds.
const MillisecondThreshold = 1e12

// Base score weights for likes, comments and shares.
const (
	likeWeight    = 1
	commentWeight = 2
	shareWeight   = 3
)

// Counters groups the engagement counters of a post.
type Counters struct {
	Likes     int64
	Comments  int64
	Shares    int64
	Upvotes   int64
	Downvotes int64
}

// Post is a single social media post record. It is treated as immutable once
// it has been normalized and handed to the engine.
type Post struct {
	ID        string  // caller-assigned identifier, unique within one run
	Likes     int64   // number of likes
	Comments  int64   // number of comments
	Shares    int64   // number of shares
	Upvotes   int64   // number of upvotes
	Downvotes int64   // number of downvotes
	Timestamp float64 // seconds since the Unix epoch

	base      float64
	hasBase   bool
	normalize bool
}

// New builds a normalized post from counters and a timestamp.
// Timestamps in milliseconds are converted to seconds.
func New(id string, c Counters, timestamp float64, policy NegativePolicy) (Post, error) {
	p := Post{
		ID:        id,
		Likes:     c.Likes,
		Comments:  c.Comments,
		Shares:    c.Shares,
		Upvotes:   c.Upvotes,
		Downvotes: c.Downvotes,
		Timestamp: timestamp,
	}
	return Normalize(-1, p, policy)
}

// Normalize validates p according to policy, normalizes its timestamp and
// precomputes its base score. pos is the record position used in errors;
// pass -1 when unknown. Posts that are already normalized are returned as is.
func Normalize(pos int, p Post, policy NegativePolicy) (Post, error) {
	if p.normalize {
		return p, nil
	}

	fields := []struct {
		name string
		v    *int64
	}{
		{"likes", &p.Likes},
		{"comments", &p.Comments},
		{"shares", &p.Shares},
		{"upvotes", &p.Upvotes},
		{"downvotes", &p.Downvotes},
	}
	for _, f := range fields {
		if *f.v >= 0 {
			continue
		}
		if policy == RejectNegative {
			return Post{}, &MalformedRecordError{Position: pos, ID: p.ID, Field: f.name, Reason: "negative counter"}
		}
		*f.v = 0
	}

	if math.IsNaN(p.Timestamp) || math.IsInf(p.Timestamp, 0) {
		return Post{}, &MalformedRecordError{Position: pos, ID: p.ID, Field: "timestamp", Reason: "not a finite number"}
	}
	p.Timestamp = NormalizeTimestamp(p.Timestamp)

	p.base = p.baseScore()
	p.hasBase = true
	p.normalize = true
	return p, nil
}

// NormalizeTimestamp converts millisecond-scale values to seconds.
func NormalizeTimestamp(ts float64) float64 {
	if ts > MillisecondThreshold {
		return ts / 1000
	}
	return ts
}

// BaseScore returns likes + 2*comments + 3*shares.
func (p Post) BaseScore() float64 {
	if p.hasBase {
		return p.base
	}
	return p.baseScore()
}

// baseScore sums in float64 so that large counters cannot wrap.
func (p Post) baseScore() float64 {
	return float64(p.Likes)*likeWeight + float64(p.Comments)*commentWeight + float64(p.Shares)*shareWeight
}

// Normalized reports whether the post went through Normalize.
func (p Post) Normalized() bool { return p.normalize }

// Age returns the number of seconds between the post timestamp and now.
// It is negative for posts dated in the future.
func (p Post) Age(now float64) float64 {
	return now - p.Timestamp
}

// Counters returns the engagement counters of the post.
func (p Post) Counters() Counters {
	return Counters{
		Likes:     p.Likes,
		Comments:  p.Comments,
		Shares:    p.Shares,
		Upvotes:   p.Upvotes,
		Downvotes: p.Downvotes,
	}
}

// Seconds converts t into the float seconds representation used by Post.
func Seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
