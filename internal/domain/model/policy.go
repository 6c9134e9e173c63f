package model

import (
	"fmt"
	"strings"
)

// NegativePolicy decides what happens to negative counters.
type NegativePolicy int

const (
	// ClampNegative replaces negative counters with zero.
	ClampNegative NegativePolicy = iota
	// RejectNegative treats a negative counter as a malformed record.
	RejectNegative
)

// String implements fmt.Stringer.
func (p NegativePolicy) String() string {
	switch p {
	case ClampNegative:
		return "clamp"
	case RejectNegative:
		return "reject"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseNegativePolicy parses "clamp" or "reject". An empty string means clamp.
func ParseNegativePolicy(s string) (NegativePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clamp":
		return ClampNegative, nil
	case "reject":
		return RejectNegative, nil
	default:
		return ClampNegative, fmt.Errorf("%w: %s", ErrUnknownPolicy, s)
	}
}
