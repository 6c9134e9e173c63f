// Package source defines the pull-based producer abstraction consumed by the
// ranking engine, plus the in-memory, channel and JSON-lines producers.
//
// A source hands out one post per Next call and reports exhaustion with
// ok == false. Sources are consumed by a single ranking run and are not safe
// for concurrent Next calls unless stated otherwise.
package source

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/rankstream/internal/domain/model"
)

// Source produces posts on demand.
type Source interface {
	// Next returns the next post. ok is false once the source is exhausted.
	Next(ctx context.Context) (p model.Post, ok bool, err error)
}

// Identity describes the content of a finite input.
type Identity struct {
	Count  int64  // number of records
	Digest uint64 // content hash over every record
}

// Identifier is implemented by sources that can describe their full input
// before it is consumed. Only identifiable inputs are eligible for caching.
type Identifier interface {
	Identity() (Identity, bool)
}

// Func adapts a function to a Source.
type Func func(ctx context.Context) (model.Post, bool, error)

// Next calls f.
func (f Func) Next(ctx context.Context) (model.Post, bool, error) {
	return f(ctx)
}

// SliceSource yields posts from an in-memory slice.
type SliceSource struct {
	posts []model.Post
	pos   int

	id     Identity
	hashed bool
}

// Slice returns a source over posts. The slice is not copied.
func Slice(posts []model.Post) *SliceSource {
	return &SliceSource{posts: posts}
}

// Next returns the next post of the slice.
func (s *SliceSource) Next(ctx context.Context) (model.Post, bool, error) {
	if s.pos >= len(s.posts) {
		return model.Post{}, false, nil
	}
	p := s.posts[s.pos]
	s.pos++
	return p, true, nil
}

// Len returns the total number of posts.
func (s *SliceSource) Len() int { return len(s.posts) }

// Identity hashes every post once and caches the result.
func (s *SliceSource) Identity() (Identity, bool) {
	if !s.hashed {
		s.id = Identity{Count: int64(len(s.posts)), Digest: Digest(s.posts)}
		s.hashed = true
	}
	return s.id, true
}

// Digest returns a content hash of posts. Order matters.
func Digest(posts []model.Post) uint64 {
	h := xxhash.New()
	var buf [8]byte
	for i := range posts {
		writePost(h, &buf, &posts[i])
	}
	return h.Sum64()
}

func writePost(h *xxhash.Digest, buf *[8]byte, p *model.Post) {
	_, _ = h.WriteString(p.ID)
	_, _ = h.Write([]byte{0})
	for _, v := range []int64{p.Likes, p.Comments, p.Shares, p.Upvotes, p.Downvotes} {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = h.Write(buf[:])
	}
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.Timestamp))
	_, _ = h.Write(buf[:])
}
