package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rjeczalik/notify"

	"sorter/internal/logging"
)

const notifyBuffer = 256

// notifySource uses rjeczalik/notify, which installs recursive watches with
// the "root/..." pattern and tracks new subdirectories on its own.
type notifySource struct {
	events chan notify.EventInfo
	queue  *eventQueue
	logger *slog.Logger
	done   chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newNotifySource(roots []string, opts Options) (*notifySource, error) {
	source := &notifySource{
		events: make(chan notify.EventInfo, notifyBuffer),
		queue:  newEventQueue(),
		logger: opts.Logger,
		done:   make(chan struct{}),
	}

	targets := roots
	if opts.Recursive {
		targets = coveringRoots(roots)
	}
	for _, root := range targets {
		pattern := root
		if opts.Recursive {
			pattern = filepath.Join(root, "...")
		}
		if err := notify.Watch(pattern, source.events, notify.Create, notify.Write, notify.Remove, notify.Rename); err != nil {
			notify.Stop(source.events)
			return nil, classifyAddError(root, err)
		}
		if source.logger != nil {
			source.logger.Debug("watch added", logging.String(logging.FieldPath, pattern))
		}
	}

	source.wg.Add(1)
	go source.forward()
	return source, nil
}

func (s *notifySource) Next(ctx context.Context) (Notification, error) {
	return streamNext(ctx, s.queue)
}

func (s *notifySource) Close() error {
	s.closeOnce.Do(func() {
		notify.Stop(s.events)
		close(s.done)
		s.wg.Wait()
		s.queue.close()
	})
	return nil
}

func (s *notifySource) forward() {
	defer s.wg.Done()
	for {
		select {
		case info := <-s.events:
			s.queue.push(queueItem{notification: translateNotify(info)})
		case <-s.done:
			return
		}
	}
}

func translateNotify(info notify.EventInfo) Notification {
	path := filepath.Clean(info.Path())
	n := Notification{Kind: notifyKind(info.Event()), Paths: []string{path}}
	if n.Kind == KindCreated || n.Kind == KindModified {
		if fi, err := os.Lstat(path); err == nil {
			n.IsDir = fi.IsDir()
		}
	}
	return n
}

func notifyKind(event notify.Event) Kind {
	switch {
	case event&notify.Create != 0:
		return KindCreated
	case event&notify.Remove != 0:
		return KindRemoved
	case event&notify.Write != 0:
		return KindModified
	default:
		return KindOther
	}
}

// coveringRoots drops roots nested inside another root; a recursive watch on
// the outer root already reports their events.
func coveringRoots(roots []string) []string {
	sorted := append([]string(nil), roots...)
	sort.Strings(sorted)
	out := make([]string, 0, len(sorted))
	for _, root := range sorted {
		covered := false
		for _, kept := range out {
			if root == kept || isWithin(kept, root) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, root)
		}
	}
	return out
}

func isWithin(parent, path string) bool {
	if parent == string(filepath.Separator) {
		return strings.HasPrefix(path, parent)
	}
	return strings.HasPrefix(path, parent+string(filepath.Separator))
}
