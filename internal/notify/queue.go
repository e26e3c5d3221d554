package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueueSize is used when Options.Size is not positive.
const DefaultQueueSize = 256

// Notification is one status message.
type Notification struct {
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Sink accepts status messages.
type Sink interface {
	Push(message string)
}

// Consumer receives delivered notifications. Consume is called from the
// dispatcher goroutine only, one notification at a time.
type Consumer interface {
	Consume(n Notification)
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(n Notification)

// Consume calls f.
func (f ConsumerFunc) Consume(n Notification) { f(n) }

// Logger is the logging surface of the queue.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Options configures a Queue.
type Options struct {
	Size   int
	Logger Logger
	Now    func() time.Time
}

// Queue is a Sink that delivers to consumers from one goroutine.
type Queue struct {
	ch     chan Notification
	now    func() time.Time
	logger Logger

	consumersMu sync.RWMutex
	consumers   []Consumer

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewQueue creates a queue. Call Run to start delivery.
func NewQueue(opts Options) *Queue {
	size := opts.Size
	if size <= 0 {
		size = DefaultQueueSize
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Queue{
		ch:     make(chan Notification, size),
		now:    now,
		logger: logger,
	}
}

// AddConsumer registers c for every notification delivered from now on.
func (q *Queue) AddConsumer(c Consumer) {
	q.consumersMu.Lock()
	q.consumers = append(q.consumers, c)
	q.consumersMu.Unlock()
}

// Push enqueues message without blocking. A full queue drops the message.
func (q *Queue) Push(message string) {
	n := Notification{Message: message, Time: q.now()}
	select {
	case q.ch <- n:
	default:
		q.dropped.Add(1)
		q.logger.Warn("notification queue full, dropping", "message", message)
	}
}

// Run delivers notifications until ctx is cancelled, then flushes whatever
// is still buffered and returns.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case n := <-q.ch:
			q.deliver(n)
		case <-ctx.Done():
			q.flush()
			return
		}
	}
}

func (q *Queue) flush() {
	for {
		select {
		case n := <-q.ch:
			q.deliver(n)
		default:
			return
		}
	}
}

func (q *Queue) deliver(n Notification) {
	q.consumersMu.RLock()
	consumers := q.consumers
	q.consumersMu.RUnlock()

	for _, c := range consumers {
		c.Consume(n)
	}
	q.delivered.Add(1)
}

// Dropped returns the number of messages dropped because the queue was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Delivered returns the number of messages handed to consumers.
func (q *Queue) Delivered() uint64 {
	return q.delivered.Load()
}

// Pending returns the number of buffered messages.
func (q *Queue) Pending() int {
	return len(q.ch)
}
