package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/multierr"

	"github.com/bazario-dev/bazario-backend/pkg/db/models"
	"github.com/bazario-dev/bazario-backend/pkg/enums"
	"github.com/bazario-dev/bazario-backend/pkg/logger"
	"github.com/bazario-dev/bazario-backend/pkg/outbox"
)

// Message is a rendered notification ready for delivery.
type Message struct {
	EventType enums.EventType
	OrderID   string
	BuyerID   string
	Body      string
}

// Provider delivers messages over one channel. Providers are tried in
// order; the first success wins.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

type Service struct {
	providers []Provider
	logg      *logger.Logger
}

func NewService(logg *logger.Logger, providers ...Provider) (*Service, error) {
	if logg == nil {
		return nil, fmt.Errorf("notifications: logger is required")
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("notifications: at least one provider is required")
	}
	return &Service{providers: providers, logg: logg}, nil
}

// Dispatch renders the outbox event and walks the provider list until one
// delivers. All failures are combined into the returned error.
func (s *Service) Dispatch(ctx context.Context, event models.OutboxEvent) error {
	msg, err := render(event)
	if err != nil {
		return err
	}

	var errs error
	for _, provider := range s.providers {
		if err := provider.Send(ctx, msg); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "provider", provider.Name()), "notification provider failed")
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", provider.Name(), err))
			continue
		}
		return nil
	}
	return fmt.Errorf("all notification providers failed: %w", errs)
}

func render(event models.OutboxEvent) (Message, error) {
	var payload outbox.OrderEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return Message{}, fmt.Errorf("decoding payload for event %s: %w", event.ID, err)
	}

	msg := Message{
		EventType: event.EventType,
		OrderID:   payload.OrderID.String(),
		BuyerID:   payload.BuyerID.String(),
	}

	switch event.EventType {
	case enums.EventTypeOrderCreated:
		msg.Body = fmt.Sprintf("Order %s created, awaiting payment of %d %s.", payload.OrderID, payload.TotalAmount, payload.Currency)
	case enums.EventTypeOrderConfirmed:
		msg.Body = fmt.Sprintf("Payment received for order %s.", payload.OrderID)
	case enums.EventTypeOrderCancelled:
		msg.Body = fmt.Sprintf("Order %s was cancelled (%s).", payload.OrderID, payload.Reason)
	case enums.EventTypeOrderCompleted:
		msg.Body = fmt.Sprintf("Order %s is complete.", payload.OrderID)
	case enums.EventTypePaymentFailed:
		msg.Body = fmt.Sprintf("Payment for order %s failed.", payload.OrderID)
	default:
		msg.Body = fmt.Sprintf("Order %s changed state.", payload.OrderID)
	}
	return msg, nil
}
