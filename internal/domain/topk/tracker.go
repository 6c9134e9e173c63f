// Package topk implements the bounded top-K tracker: a fixed-capacity
// array-backed binary min-heap that keeps the K highest-scored posts seen.
//
// At capacity a candidate is admitted only when it strictly outranks the
// resident minimum, so on an exact score tie the entry admitted first stays.
// That makes the result depend on arrival order for tied scores. WithIDTieBreak
// adds the post identifier as a secondary key for a deterministic result.
//
// A Tracker is not safe for concurrent use; one ranking run owns it.
package topk

import (
	"math"
	"sort"

	"github.com/okian/rankstream/internal/domain/model"
)

// Entry is a scored post held by the tracker.
type Entry struct {
	Score float64
	ID    string
	Post  model.Post

	seq uint64 // admission order
}

// Tracker keeps the K highest-scored entries offered to it.
type Tracker struct {
	k          int
	heap       []Entry
	idTieBreak bool

	seq      uint64
	admitted uint64
	rejected uint64
	evicted  uint64
}

// New returns a tracker with capacity k.
func New(k int, opts ...Option) (*Tracker, error) {
	if k < 0 {
		return nil, ErrNegativeCapacity
	}
	t := &Tracker{k: k}
	for _, opt := range opts {
		opt(t)
	}
	// Capacity is preallocated up to a ceiling; very large K grows on demand.
	t.heap = make([]Entry, 0, min(k, maxPrealloc))
	return t, nil
}

const maxPrealloc = 1 << 16

// Offer scores a post into the tracker and reports whether it was admitted.
func (t *Tracker) Offer(score float64, id string, p model.Post) bool {
	if t.k == 0 {
		t.rejected++
		return false
	}

	e := Entry{Score: score, ID: id, Post: p}
	if len(t.heap) < t.k {
		t.seq++
		e.seq = t.seq
		t.heap = append(t.heap, e)
		t.up(len(t.heap) - 1)
		t.admitted++
		return true
	}

	if !t.less(&t.heap[0], &e) {
		t.rejected++
		return false
	}
	t.seq++
	e.seq = t.seq
	t.heap[0] = e
	t.down(0)
	t.admitted++
	t.evicted++
	return true
}

// Drain returns the resident entries ordered best first and empties the
// tracker.
func (t *Tracker) Drain() []Entry {
	out := t.heap
	t.heap = nil
	sort.Slice(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if t.less(b, a) {
			return true
		}
		if t.less(a, b) {
			return false
		}
		return a.seq < b.seq
	})
	return out
}

// Snapshot returns the resident entries ordered best first without changing
// the tracker.
func (t *Tracker) Snapshot() []Entry {
	cp := &Tracker{idTieBreak: t.idTieBreak, heap: append([]Entry(nil), t.heap...)}
	return cp.Drain()
}

// Min returns the lowest ranked resident entry.
func (t *Tracker) Min() (Entry, bool) {
	if len(t.heap) == 0 {
		return Entry{}, false
	}
	return t.heap[0], true
}

// Len returns the number of resident entries.
func (t *Tracker) Len() int { return len(t.heap) }

// Cap returns the tracker capacity K.
func (t *Tracker) Cap() int { return t.k }

// Stats returns admission counters since the tracker was created.
func (t *Tracker) Stats() Stats {
	return Stats{Admitted: t.admitted, Rejected: t.rejected, Evicted: t.evicted}
}

// Stats counts tracker decisions.
type Stats struct {
	Admitted uint64 // offers that entered the heap
	Rejected uint64 // offers that did not
	Evicted  uint64 // residents displaced by a better offer
}

// less reports whether a ranks strictly below b. NaN ranks below every number.
func (t *Tracker) less(a, b *Entry) bool {
	an, bn := math.IsNaN(a.Score), math.IsNaN(b.Score)
	switch {
	case an && !bn:
		return true
	case bn && !an:
		return false
	case !an && a.Score != b.Score:
		return a.Score < b.Score
	}
	if t.idTieBreak {
		return a.ID > b.ID
	}
	return false
}

func (t *Tracker) up(i int) {
	h := t.heap
	for i > 0 {
		parent := (i - 1) / 2
		if !t.less(&h[i], &h[parent]) {
			break
		}
		h[i], h[parent] = h[parent], h[i]
		i = parent
	}
}

func (t *Tracker) down(i int) {
	h := t.heap
	n := len(h)
	for {
		smallest := i
		l, r := 2*i+1, 2*i+2
		if l < n && t.less(&h[l], &h[smallest]) {
			smallest = l
		}
		if r < n && t.less(&h[r], &h[smallest]) {
			smallest = r
		}
		if smallest == i {
			return
		}
		h[i], h[smallest] = h[smallest], h[i]
		i = smallest
	}
}
