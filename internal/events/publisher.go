package events

import (
	"context"
	"log"

	"document-access-service/internal/models"
)

// Publisher is the audit sink. Every state change in the grant engine and
// the revocation workflow is reported here; audit emission is best-effort
// and never blocks or fails the underlying operation.
type Publisher interface {
	PublishAuditEvent(ctx context.Context, event string, actor models.Actor, success bool, metadata map[string]any) error
	Close() error
}

type EventPublisher struct {
	rabbitMQ *RabbitMQClient
	enabled  bool
}

func NewEventPublisher(rabbitURI string) (*EventPublisher, error) {
	if rabbitURI == "" {
		log.Println("Warning: RabbitMQ URI is empty, event publishing is disabled")
		return &EventPublisher{
			rabbitMQ: nil,
			enabled:  false,
		}, nil
	}

	client, err := NewRabbitMQClient(rabbitURI)
	if err != nil {
		return nil, err
	}

	if err := client.setupExchange(); err != nil {
		client.Close()
		return nil, err
	}

	return &EventPublisher{
		rabbitMQ: client,
		enabled:  true,
	}, nil
}

func (p *EventPublisher) PublishAuditEvent(ctx context.Context, event string, actor models.Actor, success bool, metadata map[string]any) error {
	if !p.enabled {
		log.Printf("Event publishing is disabled, skipping %s", event)
		return nil
	}

	auditEvent := NewAuditEvent(event, string(actor.Kind), actor.ID.Hex(), success, metadata)

	body, err := auditEvent.ToJSON()
	if err != nil {
		return err
	}

	if err := p.rabbitMQ.PublishEvent(ctx, auditEvent.RoutingKey(), body); err != nil {
		return err
	}

	log.Printf("Published %s event for actor %s:%s", event, actor.Kind, actor.ID.Hex())
	return nil
}

func (p *EventPublisher) Close() error {
	if !p.enabled || p.rabbitMQ == nil {
		return nil
	}

	return p.rabbitMQ.Close()
}
