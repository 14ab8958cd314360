package model

import "context"

// Writer defines a generic interface for delivering a finished report to an output or store.
type Writer interface {
	// Write takes a report and persists or renders it.
	Write(ctx context.Context, report *Report) error

	// Name returns the writer type, used in logs.
	Name() string

	// Close releases the writer's connections or files.
	Close() error
}
