package scoring_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/rankstream/internal/domain/model"
	scoring "github.com/okian/rankstream/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

const now = 1_700_000_000.0

var epochTerm = float64(scoring.DefaultEpoch) / float64(scoring.DefaultHotDivisor)

func mustPost(id string, c model.Counters, ts float64) model.Post {
	p, err := model.New(id, c, ts, model.ClampNegative)
	if err != nil {
		panic(err)
	}
	return p
}

func TestHotScore(t *testing.T) {
	Convey("Given the hot score formula", t, func() {
		prm := scoring.DefaultParams()

		Convey("When upvotes equal downvotes", func() {
			p := mustPost("b", model.Counters{}, now-3600)
			score := scoring.Hot(p, now, prm)

			Convey("Then the score reduces to the recency term", func() {
				So(score, ShouldEqual, (now-p.Timestamp-scoring.DefaultEpoch)/scoring.DefaultHotDivisor)
			})
		})

		Convey("When the vote difference is positive", func() {
			p := mustPost("up", model.Counters{Upvotes: 1010, Downvotes: 10}, now)
			score := scoring.Hot(p, now, prm)

			Convey("Then the log10 order is added", func() {
				So(score, ShouldAlmostEqual, 3-epochTerm, 1e-9)
			})
		})

		Convey("When the vote difference is negative", func() {
			p := mustPost("down", model.Counters{Upvotes: 0, Downvotes: 100}, now)
			score := scoring.Hot(p, now, prm)

			Convey("Then the log10 order is subtracted", func() {
				So(score, ShouldAlmostEqual, -2-epochTerm, 1e-9)
			})
		})

		Convey("When the vote difference is one", func() {
			p := mustPost("one", model.Counters{Upvotes: 1}, now)
			So(scoring.Hot(p, now, prm), ShouldAlmostEqual, -epochTerm, 1e-9)
		})
	})
}

func TestEngagementScore(t *testing.T) {
	Convey("Given the engagement formula", t, func() {
		Convey("When the post was created now", func() {
			p := mustPost("e", model.Counters{Likes: 10, Comments: 2, Shares: 1}, now)

			Convey("Then the score equals the base score", func() {
				So(scoring.Engagement(p, now), ShouldEqual, 17.0)
			})
		})

		Convey("When the post is 99 seconds old", func() {
			p := mustPost("e", model.Counters{Likes: 100}, now-99)
			So(scoring.Engagement(p, now), ShouldEqual, 1.0)
		})

		Convey("When all counters are zero", func() {
			p := mustPost("z", model.Counters{}, now-10)
			So(scoring.Engagement(p, now), ShouldEqual, 0.0)
		})
	})
}

func TestTimeDecay(t *testing.T) {
	Convey("Given the time decay formula", t, func() {
		p := mustPost("d", model.Counters{Likes: 40, Comments: 5, Shares: 10}, now-1000)

		Convey("When the decay rate is zero", func() {
			Convey("Then the score equals the base score exactly", func() {
				So(scoring.Decay(p, now, 0), ShouldEqual, p.BaseScore())
			})
		})

		Convey("When the decay rate is positive", func() {
			So(scoring.Decay(p, now, 0.001), ShouldAlmostEqual, p.BaseScore()*math.Exp(-1), 1e-9)
		})

		Convey("When the post is in the future", func() {
			future := mustPost("f", model.Counters{Likes: 10}, now+100)

			Convey("Then the score exceeds the base score", func() {
				So(scoring.Decay(future, now, 0.01), ShouldBeGreaterThan, future.BaseScore())
			})
		})
	})
}

func TestHybrid(t *testing.T) {
	Convey("Given the hybrid combination", t, func() {
		p := mustPost("h", model.Counters{Likes: 30, Comments: 3, Shares: 3, Upvotes: 50, Downvotes: 5}, now-600)
		prm := scoring.DefaultParams()

		Convey("When only one weight is set", func() {
			prm.Weights = scoring.Weights{Engagement: 1}

			Convey("Then it equals that formula", func() {
				So(scoring.Combined(p, now, prm), ShouldAlmostEqual, scoring.Engagement(p, now), 1e-12)
			})
		})

		Convey("When the default weights are used", func() {
			want := (scoring.Hot(p, now, prm) + scoring.Engagement(p, now) + scoring.Decay(p, now, prm.DecayRate)) / 3

			Convey("Then the three formulas are weighted equally", func() {
				So(scoring.Combined(p, now, prm), ShouldAlmostEqual, want, 1e-9)
			})
		})
	})
}

func TestNewScorer(t *testing.T) {
	Convey("Given algorithm names", t, func() {
		p := mustPost("s", model.Counters{Likes: 12}, now-5)

		Convey("When the name is known", func() {
			for _, alg := range scoring.Algorithms() {
				s, err := scoring.NewScorer(string(alg))
				So(err, ShouldBeNil)
				So(s.Algorithm(), ShouldEqual, alg)
			}
		})

		Convey("When a decay rate option is given", func() {
			s, err := scoring.NewScorer("time_decay", scoring.WithDecayRate(0))
			So(err, ShouldBeNil)
			So(s.Params().DecayRate, ShouldEqual, 0.0)
			So(s.Score(p, now), ShouldEqual, 12.0)
		})

		Convey("When hybrid weights are given", func() {
			s, err := scoring.NewScorer("hybrid", scoring.WithWeights(scoring.Weights{TimeDecay: 2}), scoring.WithDecayRate(0))
			So(err, ShouldBeNil)
			So(s.Score(p, now), ShouldEqual, 24.0)
		})

		Convey("When the epoch is overridden", func() {
			s, err := scoring.NewScorer("hot_score", scoring.WithEpoch(0))
			So(err, ShouldBeNil)
			So(s.Score(p, now), ShouldAlmostEqual, 5.0/scoring.DefaultHotDivisor, 1e-12)
		})

		Convey("When the name is unknown", func() {
			s, err := scoring.NewScorer("foo")

			Convey("Then it fails with the requested name", func() {
				So(s, ShouldBeNil)
				So(errors.Is(err, scoring.ErrUnknownAlgorithm), ShouldBeTrue)
				var uae *scoring.UnknownAlgorithmError
				So(errors.As(err, &uae), ShouldBeTrue)
				So(uae.Name, ShouldEqual, "foo")
				So(err.Error(), ShouldContainSubstring, `"foo"`)
				So(err.Error(), ShouldContainSubstring, "hot_score")
			})
		})

		Convey("When parameters are not finite", func() {
			_, err := scoring.NewScorer("time_decay", scoring.WithDecayRate(math.NaN()))
			So(errors.Is(err, scoring.ErrInvalidParams), ShouldBeTrue)
		})
	})
}

func TestAlgorithms(t *testing.T) {
	Convey("Given the list of algorithms", t, func() {
		list := scoring.Algorithms()
		list[0] = "mutated"

		Convey("Then callers cannot modify the package list", func() {
			So(scoring.Algorithms()[0], ShouldEqual, scoring.HotScore)
			So(len(scoring.Algorithms()), ShouldEqual, 4)
		})
	})
}
