package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrRefreshPending = errors.New("a refresh is already pending")
	ErrUnavailable    = errors.New("service unavailable")
)
