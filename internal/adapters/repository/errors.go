package repository

import "errors"

// ErrClosed is returned by Apply and Restore after Close.
var ErrClosed = errors.New("snapshot store closed")
