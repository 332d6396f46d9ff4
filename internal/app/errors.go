package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidScope     = errors.New("invalid scope")
	ErrInvalidActorID   = errors.New("invalid actor id")
	ErrSprintMismatch   = errors.New("anchor task is not in the target sprint")
	ErrSelfAnchoredMove = errors.New("task cannot be placed after itself")
)
