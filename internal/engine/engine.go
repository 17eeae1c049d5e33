// Package engine drives the watch loop: it pulls one notification at a time
// from a watcher.Stream and runs filter, classify, and relocate on it before
// pulling the next. No error from a single notification stops the loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"sorter/internal/classify"
	"sorter/internal/history"
	"sorter/internal/logging"
	"sorter/internal/relocate"
	"sorter/internal/watcher"
	"sorter/internal/watchset"
)

// ErrStreamEnded is returned by Run when the stream closes while the context
// is still live, meaning the watch backend is gone.
var ErrStreamEnded = errors.New("notification stream ended")

// Recorder receives every successful relocation.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Stats is a point-in-time copy of the engine counters.
type Stats struct {
	Notifications    uint64    `json:"notifications"`
	Created          uint64    `json:"created"`
	Routed           uint64    `json:"routed"`
	Relocated        uint64    `json:"relocated"`
	Ignored          uint64    `json:"ignored"`
	Failures         uint64    `json:"failures"`
	BackendErrors    uint64    `json:"backend_errors"`
	LastRelocation   string    `json:"last_relocation,omitempty"`
	LastRelocationAt time.Time `json:"last_relocation_at,omitzero"`
	LastError        string    `json:"last_error,omitempty"`
	LastErrorAt      time.Time `json:"last_error_at,omitzero"`
}

// Outcome reports what Handle did with one notification.
type Outcome struct {
	Path     string
	Filtered bool
	Decision classify.Decision
	Result   relocate.Result
	Err      error
}

// Moved reports whether the file was relocated.
func (o Outcome) Moved() bool {
	return o.Err == nil && o.Decision.Routed()
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRecorder attaches a history recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithRunID tags recorded relocations with the agent run identifier.
func WithRunID(id string) Option {
	return func(e *Engine) { e.runID = id }
}

// Engine owns no goroutines; Run executes on the caller's goroutine.
type Engine struct {
	watchSet  *watchset.WatchSet
	relocator *relocate.Relocator
	logger    *slog.Logger
	recorder  Recorder
	runID     string
	now       func() time.Time

	notifications atomic.Uint64
	created       atomic.Uint64
	routed        atomic.Uint64
	relocated     atomic.Uint64
	ignored       atomic.Uint64
	failures      atomic.Uint64
	backendErrors atomic.Uint64

	mu               sync.Mutex
	lastRelocation   string
	lastRelocationAt time.Time
	lastError        string
	lastErrorAt      time.Time
}

func New(ws *watchset.WatchSet, r *relocate.Relocator, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		watchSet:  ws,
		relocator: r,
		logger:    logging.NewComponentLogger(logger, "engine"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run consumes s until ctx is cancelled (returns nil) or the stream ends on
// its own (returns ErrStreamEnded). Backend errors are logged and skipped.
func (e *Engine) Run(ctx context.Context, s watcher.Stream) error {
	for {
		n, err := s.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var notifyErr *watcher.NotifyError
			if errors.As(err, &notifyErr) {
				e.backendErrors.Add(1)
				e.noteError(err)
				logging.WarnWithContext(e.logger, "watch backend reported an error", "watch_backend_error",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "transient backend issue; raise fs.inotify.max_queued_events if this repeats"),
					logging.String(logging.FieldImpact, "some file creations may have been missed"),
				)
				continue
			}
			if errors.Is(err, watcher.ErrClosed) {
				return ErrStreamEnded
			}
			return fmt.Errorf("next notification: %w", err)
		}
		e.Handle(ctx, n)
	}
}

// Handle processes one notification synchronously.
func (e *Engine) Handle(ctx context.Context, n watcher.Notification) Outcome {
	e.notifications.Add(1)
	path, ok := classify.Filter(n)
	if !ok {
		return Outcome{Path: n.Path(), Filtered: true}
	}
	e.created.Add(1)

	decision := classify.Classify(path, e.watchSet)
	outcome := Outcome{Path: path, Decision: decision}
	if !decision.Routed() {
		e.ignored.Add(1)
		attrs := append(logging.DecisionAttrs("routing", "ignore", decision.Reason),
			logging.String(logging.FieldPath, path),
		)
		e.logger.Debug("file left in place", logging.Args(attrs...)...)
		return outcome
	}
	e.routed.Add(1)

	result, err := e.relocator.Relocate(decision)
	outcome.Result = result
	if result.CreatedDir {
		e.logger.Info("category directory created",
			logging.String(logging.FieldPath, decision.DestinationDir),
			logging.String(logging.FieldCategory, decision.Category),
		)
	}
	if err != nil {
		outcome.Err = err
		e.failures.Add(1)
		e.noteError(err)
		logging.WarnWithContext(e.logger, "relocation failed", "relocation_failed",
			logging.String(logging.FieldPath, path),
			logging.String("destination", decision.DestinationPath),
			logging.String(logging.FieldCategory, decision.Category),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, relocate.Hint(err)),
			logging.String(logging.FieldImpact, "file left at its original path; it will not be retried"),
		)
		return outcome
	}

	e.relocated.Add(1)
	movedAt := e.now()
	e.mu.Lock()
	e.lastRelocation = result.Destination
	e.lastRelocationAt = movedAt
	e.mu.Unlock()

	attrs := append(logging.DecisionAttrs("routing", "move", decision.Category),
		logging.String(logging.FieldPath, path),
		logging.String("destination", result.Destination),
		logging.String(logging.FieldCategory, decision.Category),
	)
	if result.Renamed {
		attrs = append(attrs, logging.Bool("renamed", true))
	}
	if result.Copied {
		attrs = append(attrs, logging.Bool("copied", true))
	}
	e.logger.Info("file relocated", logging.Args(attrs...)...)

	if e.recorder != nil {
		entry := history.Entry{
			RunID:       e.runID,
			Source:      path,
			Destination: result.Destination,
			Category:    decision.Category,
			Extension:   decision.Extension,
			Renamed:     result.Renamed,
			Copied:      result.Copied,
			CreatedDir:  result.CreatedDir,
			MovedAt:     movedAt,
		}
		if err := e.recorder.Record(ctx, entry); err != nil {
			logging.WarnWithContext(e.logger, "history record failed", "history_record_failed",
				logging.String(logging.FieldPath, result.Destination),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the history database in the state directory"),
				logging.String(logging.FieldImpact, "relocation succeeded but is missing from history"),
			)
		}
	}
	return outcome
}

func (e *Engine) noteError(err error) {
	e.mu.Lock()
	e.lastError = err.Error()
	e.lastErrorAt = e.now()
	e.mu.Unlock()
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	if e == nil {
		return Stats{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Notifications:    e.notifications.Load(),
		Created:          e.created.Load(),
		Routed:           e.routed.Load(),
		Relocated:        e.relocated.Load(),
		Ignored:          e.ignored.Load(),
		Failures:         e.failures.Load(),
		BackendErrors:    e.backendErrors.Load(),
		LastRelocation:   e.lastRelocation,
		LastRelocationAt: e.lastRelocationAt,
		LastError:        e.lastError,
		LastErrorAt:      e.lastErrorAt,
	}
}
