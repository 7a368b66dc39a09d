package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"catalog-worker/internal/catalog"

	amqp "github.com/rabbitmq/amqp091-go"
)

const contentTypeJSON = "application/json"

// Reply is the answer published for every handled command.
type Reply struct {
	RequestID string         `json:"requestId"`
	Operation string         `json:"operation"`
	Status    catalog.Status `json:"status"`
	Message   string         `json:"message"`
	Data      any            `json:"data,omitempty"`
}

func newReply(requestID, operation string, out catalog.Outcome) Reply {
	return Reply{
		RequestID: requestID,
		Operation: operation,
		Status:    out.Status,
		Message:   out.Message,
		Data:      out.Data,
	}
}

// RabbitPublisher sends replies to a durable queue through the default exchange.
type RabbitPublisher struct {
	channel Channel
	queue   string
}

func NewRabbitPublisher(ch Channel, queue string) (*RabbitPublisher, error) {
	_, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue %q: %w", queue, err)
	}

	return &RabbitPublisher{
		channel: ch,
		queue:   queue,
	}, nil
}

func (p *RabbitPublisher) Reply(ctx context.Context, reply Reply) error {
	payload, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}

	if err := p.channel.PublishWithContext(
		ctx,
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:   contentTypeJSON,
			DeliveryMode:  amqp.Persistent,
			CorrelationId: reply.RequestID,
			Timestamp:     time.Now().UTC(),
			Body:          payload,
		},
	); err != nil {
		return fmt.Errorf("publish to %q: %w", p.queue, err)
	}

	return nil
}
