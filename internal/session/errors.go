package session

import "errors"

var (
	// ErrRegistryFull is returned by Add when the registry is at capacity.
	ErrRegistryFull = errors.New("session registry is full")

	// ErrDuplicateHandle is returned by Add when the handle is already
	// registered to a live session.
	ErrDuplicateHandle = errors.New("handle already registered")
)
