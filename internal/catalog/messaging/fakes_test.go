package messaging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"catalog-worker/internal/catalog"

	amqp "github.com/rabbitmq/amqp091-go"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type ackCall struct {
	ack     bool
	requeue bool
}

// recordingAck implements amqp.Acknowledger.
type recordingAck struct {
	mu    sync.Mutex
	calls []ackCall
	done  chan struct{}
	err   error
}

func newRecordingAck() *recordingAck {
	return &recordingAck{done: make(chan struct{}, 16)}
}

func (a *recordingAck) record(c ackCall) error {
	a.mu.Lock()
	a.calls = append(a.calls, c)
	a.mu.Unlock()
	a.done <- struct{}{}
	return a.err
}

func (a *recordingAck) Ack(tag uint64, multiple bool) error {
	return a.record(ackCall{ack: true})
}

func (a *recordingAck) Nack(tag uint64, multiple, requeue bool) error {
	return a.record(ackCall{requeue: requeue})
}

func (a *recordingAck) Reject(tag uint64, requeue bool) error {
	return a.record(ackCall{requeue: requeue})
}

func (a *recordingAck) only() (ackCall, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.calls) == 0 {
		return ackCall{}, 0
	}
	return a.calls[0], len(a.calls)
}

type fakeChannel struct {
	mu         sync.Mutex
	qos        []int
	declared   map[string]amqp.Table
	declareErr map[string]error
	deliveries map[string]chan amqp.Delivery
	consumeErr error
	cancelled  []string
	published  []amqp.Publishing
	publishErr error
	closed     bool
	notify     []chan *amqp.Error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		declared:   make(map[string]amqp.Table),
		declareErr: make(map[string]error),
		deliveries: make(map[string]chan amqp.Delivery),
	}
}

func (f *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qos = append(f.qos, prefetchCount)
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.declareErr[name]; err != nil {
		return amqp.Queue{}, err
	}
	if !durable {
		return amqp.Queue{}, errors.New("queue must be durable")
	}
	f.declared[name] = args
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) queue(name string) chan amqp.Delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.deliveries[name]
	if !ok {
		ch = make(chan amqp.Delivery, 16)
		f.deliveries[name] = ch
	}
	return ch
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	if autoAck {
		return nil, errors.New("consumers must ack manually")
	}
	return f.queue(queue), nil
}

func (f *fakeChannel) Cancel(consumer string, noWait bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, consumer)
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notify = append(f.notify, receiver)
	return receiver
}

// brokerClose mimics the broker closing the channel: listeners get reason,
// when non-nil, and then see their channel closed.
func (f *fakeChannel) brokerClose(reason *amqp.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.notify {
		if reason != nil {
			c <- reason
		}
		close(c)
	}
	f.notify = nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeChannel) publishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

// stubService records the last command per operation and answers with out.
type stubService struct {
	mu   sync.Mutex
	out  catalog.Outcome
	last map[string]any
}

func newStubService(out catalog.Outcome) *stubService {
	return &stubService{out: out, last: make(map[string]any)}
}

func (s *stubService) record(op string, cmd any) catalog.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[op] = cmd
	return s.out
}

func (s *stubService) CreateCategory(ctx context.Context, cmd catalog.CreateCategory) catalog.Outcome {
	return s.record("create_category", cmd)
}

func (s *stubService) UpdateCategory(ctx context.Context, cmd catalog.UpdateCategory) catalog.Outcome {
	return s.record("update_category", cmd)
}

func (s *stubService) DeleteCategory(ctx context.Context, cmd catalog.DeleteCategory) catalog.Outcome {
	return s.record("delete_category", cmd)
}

func (s *stubService) CreateSubcategory(ctx context.Context, cmd catalog.CreateSubcategory) catalog.Outcome {
	return s.record("create_subcategory", cmd)
}

func (s *stubService) UpdateSubcategory(ctx context.Context, cmd catalog.UpdateSubcategory) catalog.Outcome {
	return s.record("update_subcategory", cmd)
}

func (s *stubService) DeleteSubcategory(ctx context.Context, cmd catalog.DeleteSubcategory) catalog.Outcome {
	return s.record("delete_subcategory", cmd)
}
