package service

import "errors"

// Sentinel errors for the service facade.
var (
	ErrNotStarted = errors.New("service not started")
)
