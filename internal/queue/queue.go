// Package queue provides the typed, named job queues connecting the
// dispatcher to worker pools. A queue is an explicit message channel with
// FIFO ordering by construction; there are no callback chains and no
// implicit retries.
package queue

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lhartmann/scribeq/internal/pipeline"
	"github.com/lhartmann/scribeq/internal/router"
)

// JobMessage is the unit placed on a queue at dispatch time.
type JobMessage struct {
	JobID     string          `json:"job_id"`
	AudioPath string          `json:"audio_path"`
	Language  string          `json:"language"`
	Pipeline  pipeline.Config `json:"pipeline"`
}

// Sentinel errors.
var (
	ErrQueueFull    = errors.New("queue full")
	ErrQueueClosed  = errors.New("queue closed")
	ErrUnknownQueue = errors.New("unknown queue")
)

// Queue is a named, bounded FIFO channel of job messages.
type Queue struct {
	name string
	ch   chan JobMessage

	mu     sync.Mutex
	closed bool
}

// NewQueue creates a queue with the given capacity.
func NewQueue(name string, depth int) *Queue {
	return &Queue{
		name: name,
		ch:   make(chan JobMessage, depth),
	}
}

// Name returns the queue name (equal to the model family it serves).
func (q *Queue) Name() string { return q.name }

// Enqueue places a message on the queue without blocking. A full queue is
// an error surfaced to the submitter, not a silent wait.
func (q *Queue) Enqueue(msg JobMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("%w: %s", ErrQueueClosed, q.name)
	}
	select {
	case q.ch <- msg:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, q.name)
	}
}

// Dequeue returns the receive channel a worker blocks on. The channel is
// closed when the queue shuts down.
func (q *Queue) Dequeue() <-chan JobMessage { return q.ch }

// Len reports the number of queued messages.
func (q *Queue) Len() int { return len(q.ch) }

// Close shuts the queue; pending messages remain consumable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Broker owns the set of named queues and tracks which have a live
// consumer, which is what routing consults as queue health.
type Broker struct {
	mu     sync.RWMutex
	queues map[string]*Queue
	live   map[string]bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		queues: make(map[string]*Queue),
		live:   make(map[string]bool),
	}
}

// Register creates (or returns) the queue with the given name.
func (b *Broker) Register(name string, depth int) *Queue {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[name]; ok {
		return q
	}
	q := NewQueue(name, depth)
	b.queues[name] = q
	return q
}

// Get returns a registered queue.
func (b *Broker) Get(name string) (*Queue, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.queues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQueue, name)
	}
	return q, nil
}

// SetLive marks a queue's consumer as attached or detached. Worker pools
// call this from Start and Stop.
func (b *Broker) SetLive(name string, live bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live[name] = live
}

// Health snapshots consumer liveness for every registered queue.
func (b *Broker) Health() router.QueueHealth {
	b.mu.RLock()
	defer b.mu.RUnlock()
	health := make(router.QueueHealth, len(b.queues))
	for name := range b.queues {
		health[name] = b.live[name]
	}
	return health
}

// Close shuts down all queues.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range b.queues {
		q.Close()
	}
}
