// Package sentinel defines infrastructure-level sentinel errors.
//
// Stores and other infrastructure return these (optionally wrapped) so
// services can translate factual resource states into domain errors without
// inspecting driver-specific errors. For validation failures use
// pkg/domain-errors directly.
package sentinel

import "errors"

var (
	// ErrNotFound: entity does not exist in the store.
	ErrNotFound = errors.New("not found")
	// ErrConflict: write lost to a concurrent conflicting write.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyUsed: unique resource (email, TIN, name) already taken.
	ErrAlreadyUsed = errors.New("already used")
	// ErrInvalidState: entity in the wrong state for the requested operation.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnavailable: backing service temporarily unreachable.
	ErrUnavailable = errors.New("unavailable")
)
