package export

import "errors"

var (
	// ErrNoSnapshot is returned when there is nothing to export.
	ErrNoSnapshot = errors.New("export: no snapshot")

	// ErrWriteFailed wraps filesystem errors during an export.
	ErrWriteFailed = errors.New("export: write failed")
)
