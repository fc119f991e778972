// Package events publishes advisory signals from the orchestration loop for
// external collaborators. Nothing in the loop depends on a consumer acting.
package events

import (
	"context"

	"github.com/smartfriend/mortgage-advisor/internal/model"
)

// Publisher emits advisory events.
type Publisher interface {
	LeadEligible(ctx context.Context, evt model.LeadEligibleEvent) error
	Close()
}

// NoopPublisher discards all events. Used when no event bus is configured.
type NoopPublisher struct{}

// NewNoopPublisher creates a publisher that drops everything.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// LeadEligible discards the event.
func (*NoopPublisher) LeadEligible(context.Context, model.LeadEligibleEvent) error {
	return nil
}

// Close is a no-op.
func (*NoopPublisher) Close() {}
