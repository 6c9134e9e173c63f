package source

import (
	"context"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/rankstream/internal/domain/model"
)

// MapsSource decodes raw key-value records with the alternate key spellings
// understood by model.Decoder.
type MapsSource struct {
	records []map[string]any
	dec     model.Decoder
	pos     int
}

// Maps returns a source over raw records.
func Maps(records []map[string]any, dec model.Decoder) *MapsSource {
	return &MapsSource{records: records, dec: dec}
}

// Next decodes the next record.
func (s *MapsSource) Next(ctx context.Context) (model.Post, bool, error) {
	if s.pos >= len(s.records) {
		return model.Post{}, false, nil
	}
	pos := s.pos
	s.pos++
	p, err := s.dec.FromMap(pos, s.records[pos])
	if err != nil {
		return model.Post{}, false, err
	}
	return p, true, nil
}

// Identity hashes the decoder policy and every record with its keys in
// sorted order.
func (s *MapsSource) Identity() (Identity, bool) {
	h := xxhash.New()
	fmt.Fprintf(h, "policy=%s\n", s.dec.Policy)
	keys := make([]string, 0, 8)
	for _, m := range s.records {
		keys = keys[:0]
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(h, "%s=%v;", k, m[k])
		}
		_, _ = h.Write([]byte{'\n'})
	}
	return Identity{Count: int64(len(s.records)), Digest: h.Sum64()}, true
}
