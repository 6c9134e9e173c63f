package cache

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/rankstream/internal/domain/scoring"
)

// Fingerprint is everything that determines a ranking result.
type Fingerprint struct {
	Algorithm scoring.Algorithm
	TopK      int
	Params    scoring.Params
	// Variant captures engine options that change results, such as the
	// tie-break or negative counter policy.
	Variant string

	// Input identity: either Count and Digest from an identifiable source or
	// a caller-supplied InputKey.
	Count    int64
	Digest   uint64
	InputKey string
}

// Key hashes the fingerprint.
func (f Fingerprint) Key() uint64 {
	h := xxhash.New()
	var buf [8]byte
	str := func(s string) {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
		_, _ = h.Write(buf[:])
		_, _ = h.WriteString(s)
	}
	u64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	f64 := func(v float64) { u64(math.Float64bits(v)) }

	str(string(f.Algorithm))
	u64(uint64(f.TopK))
	f64(f.Params.DecayRate)
	f64(f.Params.Weights.Hot)
	f64(f.Params.Weights.Engagement)
	f64(f.Params.Weights.TimeDecay)
	f64(f.Params.Epoch)
	f64(f.Params.HotDivisor)
	str(f.Variant)
	u64(uint64(f.Count))
	u64(f.Digest)
	str(f.InputKey)
	return h.Sum64()
}
