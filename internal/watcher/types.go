package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Kind classifies a notification.
type Kind int

const (
	KindOther Kind = iota
	KindCreated
	KindModified
	KindRemoved
)

func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindModified:
		return "modified"
	case KindRemoved:
		return "removed"
	default:
		return "other"
	}
}

// Notification is one filesystem change reported by the backend. Paths is
// never empty; the first entry is the path the change applies to.
type Notification struct {
	Kind  Kind
	Paths []string
	IsDir bool
}

// Path returns the primary path of the notification.
func (n Notification) Path() string {
	if len(n.Paths) == 0 {
		return ""
	}
	return n.Paths[0]
}

// Stream delivers notifications to a single consumer.
//
// Next blocks until a notification is available. A *NotifyError result is
// recoverable and the caller should keep iterating. ErrClosed means the stream
// has ended. Context cancellation returns ctx.Err().
type Stream interface {
	Next(ctx context.Context) (Notification, error)
	Close() error
}

// Backend names accepted by Options.Backend.
const (
	BackendFSNotify = "fsnotify"
	BackendNotify   = "notify"
)

// Options configures Subscribe.
type Options struct {
	Backend   string
	Recursive bool
	Logger    *slog.Logger
}

var (
	// ErrClosed is returned by Next once the stream has been closed and drained.
	ErrClosed = errors.New("watch stream closed")
	// ErrPathNotFound marks a root that does not exist or is not a directory.
	ErrPathNotFound = errors.New("watch path not found")
	// ErrPlatformUnavailable marks a backend that could not be installed.
	ErrPlatformUnavailable = errors.New("native watch backend unavailable")
)

// WatchError reports a failure to subscribe. Kind is ErrPathNotFound or
// ErrPlatformUnavailable and can be matched with errors.Is.
type WatchError struct {
	Kind error
	Path string
	Err  error
}

func (e *WatchError) Error() string {
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Path)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return fmt.Sprint(e.Kind)
	}
}

func (e *WatchError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NotifyError is an in-band backend error. It does not terminate the stream.
type NotifyError struct {
	Err error
}

func (e *NotifyError) Error() string {
	return "watch backend: " + e.Err.Error()
}

func (e *NotifyError) Unwrap() error { return e.Err }
