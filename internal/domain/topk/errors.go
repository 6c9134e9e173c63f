package topk

import "errors"

// ErrNegativeCapacity is returned for K < 0.
var ErrNegativeCapacity = errors.New("top-k capacity must not be negative")
