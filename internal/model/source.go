package model

import (
	"context"
	"time"
)

// RecordStream is a sequential stream of RIB records.
// Next returns io.EOF once the stream is exhausted.
type RecordStream interface {
	Next() (*Record, error)
	Close() error
}

// StreamOpener opens the record stream of a data source.
type StreamOpener interface {
	Open(ctx context.Context, src DataSource) (RecordStream, error)
}

// Index lists the data sources available at a point in time.
type Index interface {
	Sources(ctx context.Context, ts time.Time) ([]DataSource, error)
}
