// Package engine holds the error taxonomy shared by the scan pipeline.
package engine

import "errors"

var (
	// ErrSourceUnavailable marks a data source that could not be opened or failed mid-stream.
	// It only ever ends the worker that owns the source.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrChannelClosedPrematurely is returned when the observation channel closes before every
	// scheduled producer reported completion. It is fatal for the run.
	ErrChannelClosedPrematurely = errors.New("observation channel closed before all producers finished")
)
