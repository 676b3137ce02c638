package workflow

import "errors"

var (
	// ErrUnknownStep is returned for a step name outside StepOrder.
	ErrUnknownStep = errors.New("unknown workflow step")
	// ErrNotNavigable is returned when navigating directly to generating or result.
	ErrNotNavigable = errors.New("step is only reachable through generation")
	// ErrNotReady is returned when an earlier step's requirements are unmet.
	ErrNotReady = errors.New("workflow step requirements not met")
	// ErrAlreadyGenerating is returned when a generation is already in flight.
	ErrAlreadyGenerating = errors.New("generation already in progress")
	// ErrSessionNotFound is returned by Registry for unknown or expired ids.
	ErrSessionNotFound = errors.New("session not found")
)
