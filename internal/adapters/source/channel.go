package source

import (
	"context"
	"sync"

	"github.com/okian/rankstream/internal/domain/model"
	"github.com/okian/rankstream/pkg/metrics"
)

const defaultChannelCapacity = 100000

// ChannelSource is a push-fed source. Producers Enqueue posts and Close the
// source when done; the ranking run drains it until closed and empty.
// Enqueue and Close are safe for concurrent use.
type ChannelSource struct {
	posts    chan model.Post
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewChannel creates a buffered channel source.
func NewChannel(opts ...ChannelOption) *ChannelSource {
	c := &ChannelSource{capacity: defaultChannelCapacity}
	for _, opt := range opts {
		opt(c)
	}
	c.posts = make(chan model.Post, c.capacity)
	return c
}

// Enqueue adds a post without blocking. It returns false when the source is
// closed, full, or ctx is done.
func (c *ChannelSource) Enqueue(ctx context.Context, p model.Post) bool { //nolint:gocritic // hugeParam: Post must be passed by value for channel semantics
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		metrics.RecordSourceRejected("closed")
		return false
	}
	select {
	case <-ctx.Done():
		metrics.RecordSourceRejected("context_cancelled")
		return false
	default:
	}
	select {
	case c.posts <- p:
		return true
	default:
		metrics.RecordSourceRejected("full")
		return false
	}
}

// Next blocks until a post is available, the source is closed and drained,
// or ctx is done.
func (c *ChannelSource) Next(ctx context.Context) (model.Post, bool, error) {
	select {
	case p, ok := <-c.posts:
		return p, ok, nil
	case <-ctx.Done():
		return model.Post{}, false, ctx.Err()
	}
}

// Len returns the number of buffered posts.
func (c *ChannelSource) Len() int { return len(c.posts) }

// Close stops accepting posts. Buffered posts are still delivered.
func (c *ChannelSource) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	close(c.posts)
	c.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (c *ChannelSource) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
