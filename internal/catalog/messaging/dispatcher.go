package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

const deadLetterExchangeArg = "x-dead-letter-exchange"

type Options struct {
	// Prefetch bounds unacknowledged deliveries per consumer.
	Prefetch           int
	DeadLetterExchange string
	// ReplyQueue enables reply publishing when non-empty.
	ReplyQueue string
	Metrics    Metrics
}

// Dispatcher owns one broker channel and the consumers registered on it.
type Dispatcher struct {
	channel   Channel
	consumers []*Consumer
	closed    atomic.Pointer[amqp.Error]
	logger    *slog.Logger
}

// NewDispatcher sets the prefetch limit, declares every routed queue and
// registers a consumer per route. The channel is closed if setup fails.
func NewDispatcher(ch Channel, routes []Route, opts Options, logger *slog.Logger) (*Dispatcher, error) {
	if opts.Prefetch < 1 {
		opts.Prefetch = 1
	}

	if err := ch.Qos(opts.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set prefetch: %w", err)
	}

	var args amqp.Table
	if opts.DeadLetterExchange != "" {
		args = amqp.Table{deadLetterExchangeArg: opts.DeadLetterExchange}
	}

	var replier Replier
	if opts.ReplyQueue != "" {
		publisher, err := NewRabbitPublisher(ch, opts.ReplyQueue)
		if err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("init reply publisher: %w", err)
		}
		replier = publisher
	}

	d := &Dispatcher{channel: ch, logger: logger}
	for _, route := range routes {
		_, err := ch.QueueDeclare(
			route.Queue,
			true,
			false,
			false,
			false,
			args,
		)
		if err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("declare queue %q: %w", route.Queue, err)
		}

		d.consumers = append(d.consumers, &Consumer{
			channel:     ch,
			route:       route,
			tag:         consumerTagPrefix + route.Operation,
			concurrency: opts.Prefetch,
			replier:     replier,
			metrics:     opts.Metrics,
			logger:      logger.With("operation", route.Operation),
		})
	}

	go d.watch(ch.NotifyClose(make(chan *amqp.Error, 1)))
	return d, nil
}

// Run listens on every registered queue until ctx is cancelled. The first
// consumer failure stops the others.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range d.consumers {
		g.Go(func() error {
			return c.Listen(ctx)
		})
	}

	d.logger.Info("dispatcher listening", "queues", len(d.consumers))
	return g.Wait()
}

// watch records the reason the broker closed the channel. A clean close
// delivers no error and is recorded as amqp.ErrClosed.
func (d *Dispatcher) watch(notify <-chan *amqp.Error) {
	reason, ok := <-notify
	if !ok || reason == nil {
		reason = amqp.ErrClosed
	}
	d.closed.Store(reason)
	d.logger.Warn("broker channel closed", "error", reason)
}

// Health fails once the channel is closed, even if the connection is still up.
func (d *Dispatcher) Health() error {
	if reason := d.closed.Load(); reason != nil {
		return reason
	}
	return nil
}

func (d *Dispatcher) Close() error {
	return d.channel.Close()
}
