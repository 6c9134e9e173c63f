package source

import "errors"

// Sentinel kinds for source errors.
var (
	ErrRead = errors.New("source read failed")
)
