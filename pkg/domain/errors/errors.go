package errors

import "errors"

// requested entity is not found.
var ErrMissing = errors.New("missing")

// entity to be created already exists, or is locked by others.
var ErrConflict = errors.New("conflict")

// status (of execution, agent or test) cannot be changed as requested.
var ErrInvalidTransition = errors.New("invalid status transition")
