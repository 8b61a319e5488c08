package queue

import "errors"

// ErrClosed is returned by TryEnqueue once the queue has been closed.
var ErrClosed = errors.New("trigger queue closed")

// ErrPending is returned by TryEnqueue when a cycle is already waiting.
var ErrPending = errors.New("cycle already pending")
