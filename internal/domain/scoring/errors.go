package scoring

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds for this package.
var (
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
	ErrInvalidParams    = errors.New("invalid scoring parameters")
)

// UnknownAlgorithmError reports the requested algorithm name.
type UnknownAlgorithmError struct {
	Name string
}

func (e *UnknownAlgorithmError) Error() string {
	names := make([]string, len(algorithms))
	for i, a := range algorithms {
		names[i] = string(a)
	}
	return fmt.Sprintf("unknown algorithm %q (supported: %s)", e.Name, strings.Join(names, ", "))
}

// Unwrap allows errors.Is(err, ErrUnknownAlgorithm).
func (e *UnknownAlgorithmError) Unwrap() error { return ErrUnknownAlgorithm }

func paramError(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, msg)
}
