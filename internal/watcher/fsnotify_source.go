package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"sorter/internal/logging"
)

// fsnotifySource emulates recursive watches on top of fsnotify by adding a
// watch for every directory found under a root, at startup and whenever a
// directory Create event arrives.
type fsnotifySource struct {
	watcher   *fsnotify.Watcher
	queue     *eventQueue
	logger    *slog.Logger
	recursive bool

	mu      sync.Mutex
	watched map[string]struct{}
	closed  bool

	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

func newFSNotifySource(roots []string, opts Options) (*fsnotifySource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &WatchError{Kind: ErrPlatformUnavailable, Err: err}
	}
	source := &fsnotifySource{
		watcher:   w,
		queue:     newEventQueue(),
		logger:    opts.Logger,
		recursive: opts.Recursive,
		watched:   make(map[string]struct{}),
	}
	for _, root := range roots {
		if err := source.addWatch(root); err != nil {
			_ = w.Close()
			return nil, classifyAddError(root, err)
		}
		if source.recursive {
			source.addSubdirectories(root)
		}
	}

	source.wg.Add(1)
	go source.forward()
	return source, nil
}

func (s *fsnotifySource) Next(ctx context.Context) (Notification, error) {
	return streamNext(ctx, s.queue)
}

func (s *fsnotifySource) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.closeErr = s.watcher.Close()
		s.wg.Wait()
		s.queue.close()
	})
	return s.closeErr
}

func (s *fsnotifySource) forward() {
	defer s.wg.Done()
	defer s.queue.close()
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			n := translateFSNotify(event)
			if n.Kind == KindCreated && n.IsDir && s.recursive {
				// Watch the new directory before anyone sees its notification so
				// files created inside it afterwards are not missed.
				if err := s.addWatch(n.Path()); err == nil {
					s.addSubdirectories(n.Path())
				}
			}
			s.queue.push(queueItem{notification: n})
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.queue.push(queueItem{err: &NotifyError{Err: err}})
		}
	}
}

func (s *fsnotifySource) addSubdirectories(root string) {
	for _, dir := range collectSubdirectories(root) {
		_ = s.addWatch(dir)
	}
}

func (s *fsnotifySource) addWatch(path string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if _, ok := s.watched[path]; ok {
		s.mu.Unlock()
		return nil
	}
	s.watched[path] = struct{}{}
	active := len(s.watched)
	s.mu.Unlock()

	if err := s.watcher.Add(path); err != nil {
		s.mu.Lock()
		delete(s.watched, path)
		s.mu.Unlock()
		if s.logger != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("watch add failed",
				logging.String(logging.FieldPath, path),
				logging.String(logging.FieldEventType, "watch_add_failed"),
				logging.String(logging.FieldErrorHint, "check inotify limits (fs.inotify.max_user_watches) and directory permissions"),
				logging.String(logging.FieldImpact, "new files in this directory will not be seen"),
				logging.Error(err),
			)
		}
		return err
	}
	if s.logger != nil {
		s.logger.Debug("watch added",
			logging.String(logging.FieldPath, path),
			logging.Int("active_watches", active),
		)
	}
	return nil
}

func translateFSNotify(event fsnotify.Event) Notification {
	path := filepath.Clean(event.Name)
	n := Notification{Kind: fsnotifyKind(event.Op), Paths: []string{path}}
	if n.Kind == KindCreated || n.Kind == KindModified {
		if info, err := os.Lstat(path); err == nil {
			n.IsDir = info.IsDir()
		}
	}
	return n
}

func fsnotifyKind(op fsnotify.Op) Kind {
	switch {
	case op.Has(fsnotify.Create):
		return KindCreated
	case op.Has(fsnotify.Remove):
		return KindRemoved
	case op.Has(fsnotify.Write), op.Has(fsnotify.Chmod):
		return KindModified
	default:
		return KindOther
	}
}

// collectSubdirectories returns every directory below root, excluding root.
// Unreadable entries are skipped.
func collectSubdirectories(root string) []string {
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !entry.IsDir() || path == root {
			return nil
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs
}
