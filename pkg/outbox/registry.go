package outbox

import (
	"errors"
	"fmt"
	"strings"

	"github.com/plantomart/plantomart-backend/pkg/db/models"
	"github.com/plantomart/plantomart-backend/pkg/enums"
)

// NonRetryableError marks publish failures that will never succeed on retry.
type NonRetryableError struct {
	err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{err: err}
}

func (e NonRetryableError) Error() string {
	if e.err == nil {
		return "non-retryable outbox error"
	}
	return e.err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.err }

// ResolvedEvent is a stored row with its decoded envelope and destination topic.
type ResolvedEvent struct {
	Topic    string
	Envelope PayloadEnvelope
}

// Registry routes event types to Pub/Sub topics.
type Registry struct {
	topics map[enums.OutboxEventType]string
}

// NewRegistry routes every order event to the orders topic.
func NewRegistry(ordersTopic string) (*Registry, error) {
	ordersTopic = strings.TrimSpace(ordersTopic)
	if ordersTopic == "" {
		return nil, errors.New("orders topic is required")
	}
	return &Registry{topics: map[enums.OutboxEventType]string{
		enums.EventOrderCreated:                ordersTopic,
		enums.EventOrderStatusChanged:          ordersTopic,
		enums.EventOrderReconciliationRequired: ordersTopic,
	}}, nil
}

func (r *Registry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	topic, ok := r.topics[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("no topic registered for %s", event.EventType))
	}
	envelope, err := DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope %s: %w", event.ID, err))
	}
	if envelope.Version != envelopeVersion {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported envelope version %d for %s", envelope.Version, event.EventType))
	}
	return &ResolvedEvent{Topic: topic, Envelope: envelope}, nil
}
