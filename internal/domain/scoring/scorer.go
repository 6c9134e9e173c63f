package scoring

import "github.com/okian/rankstream/internal/domain/model"

// Func scores a post against a reference time in seconds.
type Func func(p model.Post, now float64) float64

// Option applies a configuration option to a Scorer.
type Option func(*Params)

// WithParams replaces all parameters at once.
func WithParams(p Params) Option {
	return func(dst *Params) {
		*dst = p
	}
}

// WithDecayRate sets the time decay rate. Zero disables decay.
func WithDecayRate(rate float64) Option {
	return func(p *Params) {
		p.DecayRate = rate
	}
}

// WithWeights sets the hybrid weights.
func WithWeights(w Weights) Option {
	return func(p *Params) {
		p.Weights = w
	}
}

// WithEpoch sets the hot score epoch.
func WithEpoch(epoch float64) Option {
	return func(p *Params) {
		p.Epoch = epoch
	}
}

// Scorer binds one algorithm to its parameters.
type Scorer struct {
	algorithm Algorithm
	params    Params
	fn        Func
}

// NewScorer resolves name and returns a Scorer. Unknown names fail with an
// *UnknownAlgorithmError.
func NewScorer(name string, opts ...Option) (*Scorer, error) {
	alg, err := ParseAlgorithm(name)
	if err != nil {
		return nil, err
	}

	params := DefaultParams()
	for _, opt := range opts {
		opt(&params)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	s := &Scorer{algorithm: alg, params: params}
	switch alg {
	case HotScore:
		s.fn = func(p model.Post, now float64) float64 { return Hot(p, now, params) }
	case EngagementScore:
		s.fn = Engagement
	case TimeDecay:
		rate := params.DecayRate
		s.fn = func(p model.Post, now float64) float64 { return Decay(p, now, rate) }
	case Hybrid:
		s.fn = func(p model.Post, now float64) float64 { return Combined(p, now, params) }
	}
	return s, nil
}

// Score computes the score of p at reference time now.
func (s *Scorer) Score(p model.Post, now float64) float64 {
	return s.fn(p, now)
}

// Algorithm returns the bound algorithm.
func (s *Scorer) Algorithm() Algorithm { return s.algorithm }

// Params returns the bound parameters.
func (s *Scorer) Params() Params { return s.params }
