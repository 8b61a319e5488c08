package backend

import "errors"

// Sentinel errors for backend fetches.
var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrDecode           = errors.New("decode payload")
	ErrPanic            = errors.New("fetch panicked")
)
