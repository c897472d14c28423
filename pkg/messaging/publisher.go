package messaging

import (
	"context"
)

// SalesCompletedSubject carries one event per successfully paid sale.
const SalesCompletedSubject = "sales.completed"

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher drops every event. It is used when the broker is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
