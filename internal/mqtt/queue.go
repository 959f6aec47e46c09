package mqtt

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/blinkd/internal/logic"
)

// Queue hands events to a Publisher from a single worker goroutine, so
// callers on the firing and edge paths never block on the network.
type Queue struct {
	pub Publisher
	log logrus.FieldLogger

	mu      sync.Mutex
	closed  bool
	dropped uint64
	ch      chan logic.Event
	done    chan struct{}
}

// NewQueue starts a worker that publishes up to size pending events.
func NewQueue(pub Publisher, size int, log logrus.FieldLogger) *Queue {
	q := &Queue{
		pub:  pub,
		log:  log,
		ch:   make(chan logic.Event, size),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue adds event without blocking. It returns false if the queue is full
// or closed and the event was dropped.
func (q *Queue) Enqueue(event logic.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- event:
		return true
	default:
		q.dropped++
		if q.dropped == 1 || q.dropped%100 == 0 {
			q.log.WithField("dropped", q.dropped).Warn("event queue full")
		}
		return false
	}
}

// Dropped returns the number of events dropped because the queue was full.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close stops accepting events and waits for the pending ones to be published.
// It does not close the underlying Publisher.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for event := range q.ch {
		if err := q.pub.Publish(event); err != nil {
			q.log.WithError(err).WithField("event", event.Type).Warn("publish failed")
		}
	}
}
