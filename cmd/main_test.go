package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/rankstream/internal/config"
	"github.com/okian/rankstream/internal/domain/model"
	"github.com/okian/rankstream/internal/domain/types"
	"github.com/okian/rankstream/internal/testposts"
	"github.com/smartystreets/goconvey/convey"
)

const input = `{"post_id":"a","likes":10,"timestamp":1700000000}
{"post_id":"b","likes":1,"comments":1,"timestamp":1700000000}

{"postId":"c","share_count":5,"ts":1700000000000}
{"id":"d","comments":4,"created_at":"1700000000"}
`

func setEnv(kv map[string]string) func() {
	for k, v := range kv {
		_ = os.Setenv(k, v)
	}
	return func() {
		for k := range kv {
			_ = os.Unsetenv(k)
		}
	}
}

func decode(out *bytes.Buffer) types.Ranking {
	var r types.Ranking
	if err := json.Unmarshal(out.Bytes(), &r); err != nil {
		panic(err)
	}
	return r
}

func postIDs(r types.Ranking) []string {
	out := make([]string, len(r.Posts))
	for i, p := range r.Posts {
		out[i] = p.PostID
	}
	return out
}

func TestRun(t *testing.T) {
	convey.Convey("Given the rankstream command", t, func() {
		ctx := context.Background()
		restore := setEnv(map[string]string{
			"RANKSTREAM_ALGORITHM":       "engagement_score",
			"RANKSTREAM_TOP_K":           "2",
			"RANKSTREAM_SCORING_WORKERS": "1",
			"RANKSTREAM_LOG_LEVEL":       "error",
		})
		defer restore()

		var stdout, stderr bytes.Buffer

		convey.Convey("When ranking JSON lines from stdin", func() {
			err := run(ctx, nil, strings.NewReader(input), &stdout, &stderr)

			convey.Convey("Then it should print the top two posts", func() {
				convey.So(err, convey.ShouldBeNil)
				r := decode(&stdout)
				convey.So(postIDs(r), convey.ShouldResemble, []string{"c", "a"})
				convey.So(r.Posts[0].Rank, convey.ShouldEqual, 1)
				convey.So(r.Posts[0].Shares, convey.ShouldEqual, int64(5))
				convey.So(r.Posts[0].Timestamp, convey.ShouldEqual, 1700000000.0)
				convey.So(r.Summary.Algorithm, convey.ShouldEqual, "engagement_score")
				convey.So(r.Summary.TopK, convey.ShouldEqual, 2)
				convey.So(r.Summary.TotalProcessed, convey.ShouldEqual, int64(4))
				convey.So(r.Summary.RunID, convey.ShouldNotBeEmpty)
			})
		})

		convey.Convey("When ranking a file named on the command line", func() {
			path := filepath.Join(t.TempDir(), "posts.jsonl")
			var buf bytes.Buffer
			posts := testposts.Generate(300, 11, time.Now())
			convey.So(testposts.WriteJSONLines(&buf, posts), convey.ShouldBeNil)
			convey.So(os.WriteFile(path, buf.Bytes(), 0o600), convey.ShouldBeNil)

			err := run(ctx, []string{path}, strings.NewReader(""), &stdout, &stderr)

			convey.Convey("Then it should rank every record in the file", func() {
				convey.So(err, convey.ShouldBeNil)
				r := decode(&stdout)
				convey.So(r.Summary.TotalProcessed, convey.ShouldEqual, int64(300))
				convey.So(len(r.Posts), convey.ShouldEqual, 2)
				convey.So(r.Posts[0].Score, convey.ShouldBeGreaterThanOrEqualTo, r.Posts[1].Score)
			})
		})

		convey.Convey("When the input contains a malformed record", func() {
			bad := input + `{"post_id":"e","likes":"lots"}` + "\n"
			err := run(ctx, []string{"-"}, strings.NewReader(bad), &stdout, &stderr)

			convey.Convey("Then it should fail naming the record", func() {
				var mre *model.MalformedRecordError
				convey.So(errors.As(err, &mre), convey.ShouldBeTrue)
				convey.So(mre.Position, convey.ShouldEqual, 4)
				convey.So(mre.ID, convey.ShouldEqual, "e")
				convey.So(stdout.Len(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the input file does not exist", func() {
			err := run(ctx, []string{"/non/existent/posts.jsonl"}, nil, &stdout, &stderr)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(stdout.Len(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the configuration is invalid", func() {
			defer setEnv(map[string]string{"RANKSTREAM_ALGORITHM": "foo"})()

			err := run(ctx, nil, strings.NewReader(input), &stdout, &stderr)

			convey.Convey("Then it should fail before reading input", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(stdout.Len(), convey.ShouldEqual, 0)
			})
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.Convey("Then a single update should not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("Then the loop should stop with its context", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx)
				close(done)
			}()
			cancel()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("updater did not stop")
			}
		})
	})
}
