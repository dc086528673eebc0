package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates user input that violates a business invariant.
	ErrValidation = errors.New("validation failed")
	// ErrComputation indicates an unexpected failure while aggregating discounts.
	ErrComputation = errors.New("computation failed")
	// ErrForbidden indicates the actor lacks a required capability.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated occurs when no actor is attached to the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidState occurs when an action violates the document workflow.
	ErrInvalidState = errors.New("invalid state transition")
)
