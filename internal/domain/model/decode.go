package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Recognized key spellings, checked in order.
var (
	idKeys        = []string{"post_id", "postId", "postID", "post-id", "id"}
	likeKeys      = []string{"likes", "like_count", "likeCount"}
	commentKeys   = []string{"comments", "comment_count", "commentCount"}
	shareKeys     = []string{"shares", "share_count", "shareCount"}
	upvoteKeys    = []string{"upvotes", "ups", "upvote_count"}
	downvoteKeys  = []string{"downvotes", "downs", "downvote_count"}
	timestampKeys = []string{"timestamp", "ts", "created_at", "createdAt"}
)

// Decoder turns raw key-value records into posts.
type Decoder struct {
	// Policy applies to negative counters.
	Policy NegativePolicy
	// Now supplies the timestamp for records that carry none. Defaults to time.Now.
	Now func() time.Time
}

// FromMap decodes a raw record. pos is the record's input position.
func (d Decoder) FromMap(pos int, m map[string]any) (Post, error) {
	if m == nil {
		return Post{}, &MalformedRecordError{Position: pos, Reason: "nil record"}
	}
	return d.decode(pos, func(key string) (any, bool) {
		v, ok := m[key]
		return v, ok
	})
}

// ParseJSON decodes one JSON object.
func (d Decoder) ParseJSON(pos int, raw []byte) (Post, error) {
	if !gjson.ValidBytes(raw) {
		return Post{}, &MalformedRecordError{Position: pos, Reason: "invalid json"}
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return Post{}, &MalformedRecordError{Position: pos, Reason: "json value is not an object"}
	}
	return d.decode(pos, func(key string) (any, bool) {
		r := doc.Get(gjson.Escape(key))
		if !r.Exists() {
			return nil, false
		}
		return jsonValue(r), true
	})
}

func (d Decoder) decode(pos int, get func(string) (any, bool)) (Post, error) {
	var p Post

	raw, key, ok := first(get, idKeys)
	if !ok {
		return Post{}, &MalformedRecordError{Position: pos, Field: "id", Reason: "missing identifier"}
	}
	id, err := toID(raw)
	if err != nil {
		return Post{}, &MalformedRecordError{Position: pos, Field: key, Reason: err.Error()}
	}
	p.ID = id

	counters := []struct {
		keys []string
		dst  *int64
	}{
		{likeKeys, &p.Likes},
		{commentKeys, &p.Comments},
		{shareKeys, &p.Shares},
		{upvoteKeys, &p.Upvotes},
		{downvoteKeys, &p.Downvotes},
	}
	for _, c := range counters {
		raw, key, ok := first(get, c.keys)
		if !ok {
			continue
		}
		n, err := toCounter(raw)
		if err != nil {
			return Post{}, &MalformedRecordError{Position: pos, ID: id, Field: key, Reason: err.Error()}
		}
		*c.dst = n
	}

	if raw, key, ok := first(get, timestampKeys); ok {
		ts, err := toFloat(raw)
		if err != nil {
			return Post{}, &MalformedRecordError{Position: pos, ID: id, Field: key, Reason: err.Error()}
		}
		p.Timestamp = ts
	} else {
		now := time.Now
		if d.Now != nil {
			now = d.Now
		}
		p.Timestamp = Seconds(now())
	}

	return Normalize(pos, p, d.Policy)
}

// first returns the first present, non-null value among keys.
func first(get func(string) (any, bool), keys []string) (any, string, bool) {
	for _, k := range keys {
		if v, ok := get(k); ok && v != nil {
			return v, k, true
		}
	}
	return nil, "", false
}

func jsonValue(r gjson.Result) any {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.Number:
		return json.Number(r.Raw)
	case gjson.String:
		return r.Str
	case gjson.True, gjson.False:
		return r.Bool()
	default:
		return r.Value()
	}
}

type decodeError string

func (e decodeError) Error() string { return string(e) }

const (
	errNotNumber  = decodeError("not a number")
	errNotFinite  = decodeError("not a finite number")
	errOutOfRange = decodeError("counter out of range")
	errBadID      = decodeError("identifier must be a string or integer")
	errEmptyID    = decodeError("empty identifier")
)

func toFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		parsed, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return 0, errNotNumber
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, errNotNumber
		}
		f = parsed
	default:
		return 0, errNotNumber
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	return f, nil
}

func toCounter(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, errOutOfRange
	}
	return int64(f), nil
}

func toID(v any) (string, error) {
	var id string
	switch x := v.(type) {
	case string:
		id = strings.TrimSpace(x)
	case json.Number:
		id = string(x)
		if strings.ContainsAny(id, ".eE") {
			f, err := x.Float64()
			if err != nil {
				return "", errBadID
			}
			return toID(f)
		}
	case int:
		id = strconv.Itoa(x)
	case int32:
		id = strconv.FormatInt(int64(x), 10)
	case int64:
		id = strconv.FormatInt(x, 10)
	case uint64:
		id = strconv.FormatUint(x, 10)
	case float64:
		// Fractional ids are rejected on every input path.
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return "", errBadID
		}
		id = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return "", errBadID
	}
	if id == "" {
		return "", errEmptyID
	}
	return id, nil
}
