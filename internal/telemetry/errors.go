package telemetry

import "errors"

// ErrUnknownCategory is returned for a category name with no transform.
var ErrUnknownCategory = errors.New("telemetry: unknown category")
