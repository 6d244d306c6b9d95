package refresh

import "errors"

// Sentinel errors for refresh cycles.
//
// Every failed cycle leaves the published snapshot untouched; these errors
// only describe why no new snapshot was produced.
var (
	// ErrFetchFailed indicates the store could not be queried.
	ErrFetchFailed = errors.New("refresh: fetch failed")

	// ErrEmptyResult indicates the query succeeded but yielded no fields,
	// including responses that could not be parsed at all.
	ErrEmptyResult = errors.New("refresh: empty result")

	// ErrTransformFailed indicates the views could not be built.
	ErrTransformFailed = errors.New("refresh: transform failed")

	// ErrCycleAborted indicates a cycle panicked and was recovered.
	ErrCycleAborted = errors.New("refresh: cycle aborted")

	// ErrAlreadyStarted is returned by Start when the scheduler is running.
	ErrAlreadyStarted = errors.New("refresh: already started")

	// ErrShutdownTimeout indicates Close gave up waiting for an in-flight cycle.
	ErrShutdownTimeout = errors.New("refresh: shutdown timed out")
)
