package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/rankstream/internal/domain/model"
)

const defaultMaxLineBytes = 4 << 20

// LinesSource decodes one JSON object per line. Blank lines are skipped and
// do not count as records.
type LinesSource struct {
	dec     model.Decoder
	maxLine int

	scanner *bufio.Scanner
	r       io.Reader
	pos     int
}

// NewLines returns a source reading JSON lines from r.
func NewLines(r io.Reader, dec model.Decoder, opts ...LinesOption) *LinesSource {
	l := &LinesSource{dec: dec, maxLine: defaultMaxLineBytes, r: r}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Next decodes the next non-blank line.
func (l *LinesSource) Next(ctx context.Context) (model.Post, bool, error) {
	if l.scanner == nil {
		l.scanner = bufio.NewScanner(l.r)
		l.scanner.Buffer(make([]byte, 0, min(64*1024, l.maxLine)), l.maxLine)
	}
	for l.scanner.Scan() {
		line := bytes.TrimSpace(l.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		pos := l.pos
		l.pos++
		p, err := l.dec.ParseJSON(pos, line)
		if err != nil {
			return model.Post{}, false, err
		}
		return p, true, nil
	}
	if err := l.scanner.Err(); err != nil {
		return model.Post{}, false, fmt.Errorf("%w: record %d: %w", ErrRead, l.pos, err)
	}
	return model.Post{}, false, nil
}

// FileSource reads JSON lines from a file and can identify its content.
type FileSource struct {
	f     *os.File
	lines *LinesSource

	started bool
	id      *Identity
}

// Open opens path as a JSON-lines source. The caller must Close it.
func Open(path string, dec model.Decoder, opts ...LinesOption) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return &FileSource{f: f, lines: NewLines(f, dec, opts...)}, nil
}

// Next decodes the next record of the file.
func (s *FileSource) Next(ctx context.Context) (model.Post, bool, error) {
	s.started = true
	return s.lines.Next(ctx)
}

// Identity hashes the decoder policy and the file content. It is only
// available before the first call to Next.
func (s *FileSource) Identity() (Identity, bool) {
	if s.id != nil {
		return *s.id, true
	}
	if s.started {
		return Identity{}, false
	}

	h := xxhash.New()
	fmt.Fprintf(h, "policy=%s\n", s.lines.dec.Policy)
	var count int64
	sc := bufio.NewScanner(s.f)
	sc.Buffer(make([]byte, 0, min(64*1024, s.lines.maxLine)), s.lines.maxLine)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		count++
		_, _ = h.Write(line)
		_, _ = h.Write([]byte{'\n'})
	}
	if sc.Err() != nil {
		return Identity{}, false
	}
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return Identity{}, false
	}
	s.id = &Identity{Count: count, Digest: h.Sum64()}
	return *s.id, true
}

// Close closes the underlying file.
func (s *FileSource) Close() error {
	return s.f.Close()
}
