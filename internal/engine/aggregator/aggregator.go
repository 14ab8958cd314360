package aggregator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"IXScan/internal/engine"
	"IXScan/internal/model"
)

// Producers exposes the completion bookkeeping of the goroutines feeding the aggregator.
type Producers interface {
	Scheduled() int
	Finished() int
}

// Aggregator is the single consumer of the observation channel.
type Aggregator struct {
	input     <-chan model.Observation
	producers Producers
	state     *State
	received  uint64
}

// New creates an aggregator reading from input.
func New(input <-chan model.Observation, producers Producers) *Aggregator {
	return &Aggregator{
		input:     input,
		producers: producers,
		state:     NewState(),
	}
}

// Run drains the channel until it is closed and returns the finalized state.
// It must be called exactly once. On cancellation the partial state is discarded.
func (a *Aggregator) Run(ctx context.Context) (*State, error) {
	for {
		select {
		case <-ctx.Done():
			a.state = nil
			return nil, ctx.Err()
		case obs, ok := <-a.input:
			if !ok {
				return a.finalize()
			}
			if err := a.state.Add(obs); err != nil {
				return nil, err
			}
			a.received++
		}
	}
}

// Received returns the number of observations consumed, duplicates included.
func (a *Aggregator) Received() uint64 {
	return a.received
}

func (a *Aggregator) finalize() (*State, error) {
	scheduled, finished := a.producers.Scheduled(), a.producers.Finished()
	if finished < scheduled {
		return nil, fmt.Errorf("%w: %d of %d producers finished", engine.ErrChannelClosedPrematurely, finished, scheduled)
	}
	a.state.Finalize()
	zap.S().Infof("Aggregation finalized after %d observations.", a.received)
	return a.state, nil
}
