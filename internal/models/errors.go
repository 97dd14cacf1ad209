package models

import "errors"

var (
	// ErrUnknownPlatform is returned for platforms other than youtube/instagram.
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrInvalidTarget is returned when a channel URL or handle fails validation.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrNotFound is returned for unknown analysis IDs.
	ErrNotFound = errors.New("analysis not found")

	// ErrNotReady is returned when an export is requested before the analysis completed.
	ErrNotReady = errors.New("analysis not completed")

	// ErrTerminal is returned for mutations on a job that already reached a terminal state.
	ErrTerminal = errors.New("analysis already in a terminal state")

	// ErrNotProcessing is returned when items or progress arrive for a job
	// that is not in the processing state.
	ErrNotProcessing = errors.New("analysis is not processing")
)
