// Package scoring defines the ranking algorithms that map a post to a score.
//
// Every score function is pure: given the same post, reference time and
// parameters it returns the same value, in constant time.
package scoring

import (
	"math"
	"strings"

	"github.com/okian/rankstream/internal/domain/model"
)

// Algorithm names a scoring formula.
type Algorithm string

// Supported algorithms.
const (
	HotScore        Algorithm = "hot_score"
	EngagementScore Algorithm = "engagement_score"
	TimeDecay       Algorithm = "time_decay"
	Hybrid          Algorithm = "hybrid"
)

// Default parameter values.
const (
	DefaultDecayRate  = 0.01
	DefaultEpoch      = 1134028003
	DefaultHotDivisor = 45000
)

var algorithms = []Algorithm{HotScore, EngagementScore, TimeDecay, Hybrid}

// Algorithms returns the supported algorithm names.
func Algorithms() []Algorithm {
	out := make([]Algorithm, len(algorithms))
	copy(out, algorithms)
	return out
}

// ParseAlgorithm resolves name to a supported algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(strings.TrimSpace(name))
	for _, known := range algorithms {
		if a == known {
			return a, nil
		}
	}
	return "", &UnknownAlgorithmError{Name: name}
}

// Weights are the hybrid combination coefficients.
type Weights struct {
	Hot        float64 `json:"hot" koanf:"hot"`
	Engagement float64 `json:"engagement" koanf:"engagement"`
	TimeDecay  float64 `json:"time_decay" koanf:"time_decay"`
}

// DefaultWeights weighs the three base formulas equally.
func DefaultWeights() Weights {
	const third = 1.0 / 3
	return Weights{Hot: third, Engagement: third, TimeDecay: third}
}

// Params holds algorithm specific options.
type Params struct {
	// DecayRate is the exponential rate used by time_decay (and hybrid).
	DecayRate float64
	// Weights combine the three base formulas in hybrid.
	Weights Weights
	// Epoch is the reference instant subtracted by hot_score.
	Epoch float64
	// HotDivisor scales the recency term of hot_score.
	HotDivisor float64
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		DecayRate:  DefaultDecayRate,
		Weights:    DefaultWeights(),
		Epoch:      DefaultEpoch,
		HotDivisor: DefaultHotDivisor,
	}
}

// Validate rejects parameters that cannot produce a score.
func (p Params) Validate() error {
	switch {
	case math.IsNaN(p.DecayRate) || math.IsInf(p.DecayRate, 0):
		return paramError("decay rate must be finite")
	case p.HotDivisor <= 0 || math.IsInf(p.HotDivisor, 0):
		return paramError("hot divisor must be positive")
	case math.IsNaN(p.Epoch) || math.IsInf(p.Epoch, 0):
		return paramError("epoch must be finite")
	}
	for _, w := range []float64{p.Weights.Hot, p.Weights.Engagement, p.Weights.TimeDecay} {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return paramError("hybrid weights must be finite")
		}
	}
	return nil
}

// Hot computes the Reddit style hot score:
//
//	sign(v)*log10(max(|v|, 1)) + (now - ts - epoch) / divisor
//
// where v = upvotes - downvotes.
func Hot(p model.Post, now float64, prm Params) float64 {
	voteDiff := p.Upvotes - p.Downvotes
	order := math.Log10(math.Max(math.Abs(float64(voteDiff)), 1))
	var sign float64
	switch {
	case voteDiff > 0:
		sign = 1
	case voteDiff < 0:
		sign = -1
	}
	seconds := now - p.Timestamp - prm.Epoch
	return sign*order + seconds/prm.HotDivisor
}

// Engagement computes base score divided by (age + 1).
func Engagement(p model.Post, now float64) float64 {
	return p.BaseScore() / (p.Age(now) + 1)
}

// Decay computes base score * e^(-rate * age). Future posts score above their
// base score.
func Decay(p model.Post, now, rate float64) float64 {
	return p.BaseScore() * math.Exp(-rate*p.Age(now))
}

// Combined is the hybrid rule: a weighted sum of the hot, engagement and
// time decay scores.
func Combined(p model.Post, now float64, prm Params) float64 {
	w := prm.Weights
	return w.Hot*Hot(p, now, prm) +
		w.Engagement*Engagement(p, now) +
		w.TimeDecay*Decay(p, now, prm.DecayRate)
}
