package dirlock

import "errors"

// ErrBusy is returned by Acquire when the lock directory already exists and
// the recorded holder is either provably alive or could not be proven dead.
// It signals contention, not a fault; retry and backoff policy belongs to
// the caller.
var ErrBusy = errors.New("dirlock: lock busy")

// ErrAlreadyReleased is returned by Release when the metadata token is
// already gone: another process released or reclaimed the same lock first.
// Losing that race is harmless and callers usually ignore it.
var ErrAlreadyReleased = errors.New("dirlock: lock already released")
