package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds for this package.
var (
	ErrMalformedRecord = errors.New("malformed record")
	ErrUnknownPolicy   = errors.New("unknown negative counter policy")
)

// MalformedRecordError identifies a record that could not be normalized.
type MalformedRecordError struct {
	Position int    // 0-based input position, -1 when unknown
	ID       string // record identifier when one could be read
	Field    string // offending field
	Reason   string
}

func (e *MalformedRecordError) Error() string {
	var b strings.Builder
	b.WriteString("malformed record")
	if e.Position >= 0 {
		fmt.Fprintf(&b, " at position %d", e.Position)
	}
	if e.ID != "" {
		fmt.Fprintf(&b, " (id %q)", e.ID)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %s", e.Field)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

// Unwrap allows errors.Is(err, ErrMalformedRecord).
func (e *MalformedRecordError) Unwrap() error { return ErrMalformedRecord }

// WithPosition returns err with its position set when err is a
// MalformedRecordError without one.
func WithPosition(err error, pos int) error {
	var mre *MalformedRecordError
	if errors.As(err, &mre) && mre.Position < 0 {
		cp := *mre
		cp.Position = pos
		return &cp
	}
	return err
}
