package apperr

import "errors"

// ErrInvalid is returned when the input fails domain validation
// (mixed delivery modes in a batch, malformed coordinates, empty ids).
var ErrInvalid = errors.New("invalid input")

// ErrNotFound indicates that the requested resource does not exist,
// or that an assignment offer was already resolved by another caller.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a state conflict: a transition attempted from an
// incompatible stop status, e.g. starting a pickup that was cancelled.
var ErrConflict = errors.New("conflict")

// ErrOutOfRange is returned when the courier is too far from the stop
// to complete it.
var ErrOutOfRange = errors.New("out of range")

// ErrUnauthorized is returned when a courier acts on a task not assigned
// to them, or tries to accept an offer while inactive.
var ErrUnauthorized = errors.New("unauthorized")

// ErrUpstream wraps failures of external collaborators (routing, push).
var ErrUpstream = errors.New("upstream failure")
