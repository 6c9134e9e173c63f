package source

// ChannelOption applies a configuration option to a ChannelSource.
type ChannelOption func(*ChannelSource)

// WithCapacity sets the number of posts the channel buffers before Enqueue
// refuses new ones.
func WithCapacity(capacity int) ChannelOption {
	return func(c *ChannelSource) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// LinesOption applies a configuration option to a LinesSource.
type LinesOption func(*LinesSource)

// WithMaxLineBytes sets the longest accepted JSON line.
func WithMaxLineBytes(n int) LinesOption {
	return func(l *LinesSource) {
		if n > 0 {
			l.maxLine = n
		}
	}
}
