package enums

import (
	"fmt"
	"strings"
)

// EventType names outbox events emitted by the settlement flows.
type EventType string

const (
	EventTypeOrderCreated   EventType = "order.created"
	EventTypeOrderConfirmed EventType = "order.confirmed"
	EventTypeOrderCancelled EventType = "order.cancelled"
	EventTypeOrderCompleted EventType = "order.completed"
	EventTypePaymentFailed  EventType = "payment.failed"
)

func (t EventType) String() string {
	return string(t)
}

func (t EventType) IsValid() bool {
	switch t {
	case EventTypeOrderCreated, EventTypeOrderConfirmed, EventTypeOrderCancelled,
		EventTypeOrderCompleted, EventTypePaymentFailed:
		return true
	default:
		return false
	}
}

func ParseEventType(value string) (EventType, error) {
	t := EventType(strings.ToLower(strings.TrimSpace(value)))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid event type: %q", value)
	}
	return t, nil
}

type AggregateType string

const (
	AggregateTypeOrder AggregateType = "order"
)

func (t AggregateType) String() string {
	return string(t)
}
