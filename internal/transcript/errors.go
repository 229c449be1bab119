package transcript

import "errors"

var (
	// ErrNotFound indicates the requested recording has no transcript or
	// summary yet, or the requested time point lies outside the recording.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRange indicates a range query whose end does not lie after
	// its start.
	ErrInvalidRange = errors.New("range end must be greater than start")
)
