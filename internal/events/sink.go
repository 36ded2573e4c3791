// Package events delivers domain events to the external ingestion
// collaborator. Delivery is best-effort everywhere: callers log failures
// and move on, a failed emit never fails the transition that produced it.
package events

import (
	"context"

	"studiobook/pkg/model"
)

type Sink interface {
	Emit(ctx context.Context, event model.Event) error
	Close() error
}

// NoopSink drops all events. Used in tests and when event emission is
// disabled by configuration.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (*NoopSink) Emit(ctx context.Context, event model.Event) error {
	return nil
}

func (*NoopSink) Close() error {
	return nil
}
