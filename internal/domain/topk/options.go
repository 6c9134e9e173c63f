package topk

// Option applies a configuration option to a Tracker.
type Option func(*Tracker)

// WithIDTieBreak breaks exact score ties by identifier: the lexicographically
// smaller id ranks higher.
func WithIDTieBreak() Option {
	return func(t *Tracker) {
		t.idTieBreak = true
	}
}
