package testsupport

import (
	"context"
	"sync"

	"sorter/internal/watcher"
)

// Stream is a scripted watcher.Stream. Items are delivered in push order;
// once closed and drained, Next returns watcher.ErrClosed.
type Stream struct {
	mu     sync.Mutex
	items  []streamItem
	closed bool
	wake   chan struct{}
}

type streamItem struct {
	n   watcher.Notification
	err error
}

// NewStream returns a stream preloaded with notifications.
func NewStream(notifications ...watcher.Notification) *Stream {
	s := &Stream{wake: make(chan struct{}, 1)}
	for _, n := range notifications {
		s.Push(n)
	}
	return s
}

// Created builds a file creation notification.
func Created(path string) watcher.Notification {
	return watcher.Notification{Kind: watcher.KindCreated, Paths: []string{path}}
}

// Push appends a notification.
func (s *Stream) Push(n watcher.Notification) {
	s.append(streamItem{n: n})
}

// PushError appends an in-band error, usually a *watcher.NotifyError.
func (s *Stream) PushError(err error) {
	s.append(streamItem{err: err})
}

func (s *Stream) append(item streamItem) {
	s.mu.Lock()
	s.items = append(s.items, item)
	s.mu.Unlock()
	s.signal()
}

func (s *Stream) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending reports how many items have not been consumed yet.
func (s *Stream) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Stream) Next(ctx context.Context) (watcher.Notification, error) {
	for {
		s.mu.Lock()
		if len(s.items) > 0 {
			item := s.items[0]
			s.items = s.items[1:]
			s.mu.Unlock()
			return item.n, item.err
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return watcher.Notification{}, watcher.ErrClosed
		}
		select {
		case <-ctx.Done():
			return watcher.Notification{}, ctx.Err()
		case <-s.wake:
		}
	}
}

func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
	return nil
}
