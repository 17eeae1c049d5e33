package watcher

import (
	"context"
	"sync"
)

type queueItem struct {
	notification Notification
	err          error
}

// eventQueue is an unbounded FIFO with one producer and one consumer. The
// producer never blocks, so a slow relocation cannot stall the backend reader.
type eventQueue struct {
	mu     sync.Mutex
	items  []queueItem
	closed bool
	ready  chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

func (q *eventQueue) push(item queueItem) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.signal()
	return true
}

func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// next returns queued items before reporting ErrClosed.
func (q *eventQueue) next(ctx context.Context) (queueItem, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = queueItem{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return queueItem{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return queueItem{}, ctx.Err()
		case <-q.ready:
		}
	}
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// streamNext adapts a queue item to the Stream contract.
func streamNext(ctx context.Context, q *eventQueue) (Notification, error) {
	item, err := q.next(ctx)
	if err != nil {
		return Notification{}, err
	}
	if item.err != nil {
		return Notification{}, item.err
	}
	return item.notification, nil
}
