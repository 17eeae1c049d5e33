package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestEventQueuePreservesOrder(t *testing.T) {
	q := newEventQueue()
	const total = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range total {
			q.push(queueItem{notification: Notification{Kind: KindCreated, Paths: []string{string(rune('a' + i%26))}}, err: indexErr(i)})
		}
		q.close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := range total {
		item, err := q.next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		var idx *orderErr
		if !errors.As(item.err, &idx) || idx.n != i {
			t.Fatalf("item %d out of order: %v", i, item.err)
		}
	}
	if _, err := q.next(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after drain, got %v", err)
	}
	wg.Wait()
}

func TestEventQueueDropsAfterClose(t *testing.T) {
	q := newEventQueue()
	q.close()
	if q.push(queueItem{}) {
		t.Fatal("push after close must be rejected")
	}
	if q.len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.len())
	}
}

func TestStreamNextSurfacesNotifyError(t *testing.T) {
	q := newEventQueue()
	q.push(queueItem{err: &NotifyError{Err: errors.New("queue overflow")}})
	q.push(queueItem{notification: Notification{Kind: KindCreated, Paths: []string{"/data/inbox/a.jpg"}}})

	ctx := context.Background()
	if _, err := streamNext(ctx, q); !isNotifyError(err) {
		t.Fatalf("expected NotifyError, got %v", err)
	}
	n, err := streamNext(ctx, q)
	if err != nil {
		t.Fatalf("stream must continue after a backend error: %v", err)
	}
	if n.Path() != "/data/inbox/a.jpg" {
		t.Fatalf("unexpected path %q", n.Path())
	}
}

type orderErr struct{ n int }

func (e *orderErr) Error() string { return "order" }

func indexErr(i int) error { return &orderErr{n: i} }
