package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

const consumerTagPrefix = "catalog-worker."

// Delivery dispositions, also used as metric label values.
const (
	dispositionAcked     = "acked"
	dispositionRequeued  = "requeued"
	dispositionDiscarded = "discarded"
)

// Channel is the subset of *amqp.Channel the worker needs.
type Channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

// Replier publishes the answer to a handled command.
type Replier interface {
	Reply(ctx context.Context, reply Reply) error
}

type Metrics struct {
	Deliveries *prometheus.CounterVec   // labels: queue, disposition
	Duration   *prometheus.HistogramVec // labels: queue
}

type Consumer struct {
	channel     Channel
	route       Route
	tag         string
	concurrency int
	replier     Replier
	metrics     Metrics
	logger      *slog.Logger
}

// Listen consumes the route's queue until ctx is cancelled or the broker
// closes the delivery channel. Up to concurrency deliveries are handled at
// once; handlers already running are allowed to finish.
func (c *Consumer) Listen(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.route.Queue,
		c.tag,
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume queue %q: %w", c.route.Queue, err)
	}

	var inflight errgroup.Group
	inflight.SetLimit(c.concurrency)
	defer inflight.Wait()

	work := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			if err := c.channel.Cancel(c.tag, false); err != nil {
				c.logger.Warn("cancel consumer", "queue", c.route.Queue, "error", err)
			}
			return nil
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("delivery channel for %q closed", c.route.Queue)
			}

			inflight.Go(func() error {
				c.deliver(work, msg)
				return nil
			})
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, msg amqp.Delivery) {
	start := time.Now()
	disposition := c.process(ctx, &msg)

	if c.metrics.Deliveries != nil {
		c.metrics.Deliveries.WithLabelValues(c.route.Queue, disposition).Inc()
	}
	if c.metrics.Duration != nil {
		c.metrics.Duration.WithLabelValues(c.route.Queue).Observe(time.Since(start).Seconds())
	}
}

// process applies the delivery contract: handled outcomes are acked,
// infrastructure failures are requeued and undecodable bodies are discarded.
func (c *Consumer) process(ctx context.Context, msg *amqp.Delivery) (disposition string) {
	logger := c.logger.With("queue", c.route.Queue, "delivery_tag", msg.DeliveryTag)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panicked", "panic", r)
			disposition = c.nack(logger, msg, true)
		}
	}()

	env, err := DecodeEnvelope(msg.Body)
	if err != nil {
		logger.Error("discarding undecodable delivery", "error", err, "redelivered", msg.Redelivered)
		return c.nack(logger, msg, false)
	}
	logger = logger.With("request_id", env.RequestID)

	out, err := c.route.Handler(ctx, env.Payload)
	if err != nil {
		logger.Error("discarding undecodable payload", "error", err, "action", env.Action)
		return c.nack(logger, msg, false)
	}

	if !out.Handled() {
		logger.Warn("requeueing delivery", "status", out.Status, "redelivered", msg.Redelivered)
		return c.nack(logger, msg, true)
	}

	if c.replier != nil {
		reply := newReply(env.RequestID, c.route.Operation, out)
		if err := c.replier.Reply(ctx, reply); err != nil {
			logger.Error("publish reply", "error", err)
		}
	}

	if err := msg.Ack(false); err != nil {
		logger.Error("ack delivery", "error", err)
	}
	return dispositionAcked
}

func (c *Consumer) nack(logger *slog.Logger, msg *amqp.Delivery, requeue bool) string {
	if err := msg.Nack(false, requeue); err != nil {
		logger.Error("nack delivery", "requeue", requeue, "error", err)
	}
	if requeue {
		return dispositionRequeued
	}
	return dispositionDiscarded
}
