package engine

import "errors"

// Sentinel kinds for ranking run errors.
var (
	ErrInvalidTopK      = errors.New("invalid top-k")
	ErrInvalidBatchSize = errors.New("invalid batch size")
	ErrInvalidWorkers   = errors.New("invalid scoring worker count")
	ErrCancelled        = errors.New("ranking run cancelled")
	ErrNilSource        = errors.New("nil source")
	ErrClosed           = errors.New("engine closed")
)
